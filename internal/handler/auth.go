package handler

import (
	"errors"
	"net/http"

	"boxtrack/internal/apierror"
	"boxtrack/internal/dto"
	"boxtrack/internal/middleware"
	"boxtrack/internal/repository"
	"boxtrack/internal/service"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct{ svc service.AuthService }

func NewAuthHandler(svc service.AuthService) *AuthHandler { return &AuthHandler{svc: svc} }

// Login godoc
// @Summary Store admin login
// @Tags auth
// @Accept json
// @Produce json
// @Param body body dto.LoginRequest true "Credentials"
// @Success 200 {object} dto.LoginResponse
// @Failure 401 {object} apierror.APIError
// @Router /v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) || errors.Is(err, service.ErrTOTPRequired) || errors.Is(err, service.ErrInvalidTOTP) {
			c.JSON(http.StatusUnauthorized, apierror.New(err.Error()))
			return
		}
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SetupTOTP issues a fresh TOTP secret for the caller's store. 2FA stays
// off until EnableTOTP verifies a code.
func (h *AuthHandler) SetupTOTP(c *gin.Context) {
	claims := middleware.GetClaims(c)
	resp, err := h.svc.SetupTOTP(c.Request.Context(), claims.StoreID)
	if err != nil {
		h.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) EnableTOTP(c *gin.Context) {
	var req dto.EnableTOTPRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	if err := h.svc.EnableTOTP(c.Request.Context(), claims.StoreID, req.Code); err != nil {
		h.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"twoFactorEnabled": true})
}

func (h *AuthHandler) SetPassword(c *gin.Context) {
	var req dto.SetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	if err := h.svc.SetPassword(c.Request.Context(), claims.StoreID, req); err != nil {
		h.respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) respond(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, apierror.New(err.Error()))
	case errors.Is(err, service.ErrInvalidTOTP), errors.Is(err, service.ErrTOTPNotSetup):
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
	case repository.IsNotFound(err):
		c.JSON(http.StatusNotFound, apierror.New("store has no credentials"))
	default:
		_ = c.Error(err)
	}
}
