package service

import (
	"context"
	"errors"
	"time"

	"boxtrack/internal/config"
	"boxtrack/internal/dto"
	"boxtrack/internal/model"
	"boxtrack/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTOTPRequired       = errors.New("two-factor code required")
	ErrInvalidTOTP        = errors.New("invalid two-factor code")
	ErrTOTPNotSetup       = errors.New("two-factor authentication is not set up")
)

const (
	roleAdmin   = "admin"
	totpIssuer  = "boxtrack"
	defaultCost = 12
)

type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	SetupTOTP(ctx context.Context, storeID string) (*dto.TOTPSetupResponse, error)
	EnableTOTP(ctx context.Context, storeID, code string) error
	SetPassword(ctx context.Context, storeID string, req dto.SetPasswordRequest) error
}

type authService struct {
	repo       repository.SecretRepository
	cfg        *config.Config
	catalog    config.Catalog
	bcryptCost int
	now        func() time.Time
}

func NewAuthService(repo repository.SecretRepository, cfg *config.Config) AuthService {
	return &authService{repo: repo, cfg: cfg, catalog: cfg.Catalog(), bcryptCost: defaultCost, now: time.Now}
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	if !s.catalog.HasStore(req.StoreID) {
		return nil, ErrInvalidCredentials
	}
	secret, err := s.findOrBootstrap(ctx, req.StoreID, req.Password)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(secret.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if secret.TwoFactorEnabled && secret.TOTPSecret != nil {
		if req.TOTPCode == "" {
			return nil, ErrTOTPRequired
		}
		if !totp.Validate(req.TOTPCode, *secret.TOTPSecret) {
			return nil, ErrInvalidTOTP
		}
	}

	token, err := s.generateToken(req.StoreID, time.Duration(s.cfg.JWTExpirationHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		AccessToken:      token,
		TokenType:        "bearer",
		ExpiresIn:        s.cfg.JWTExpirationHours * 3600,
		StoreID:          req.StoreID,
		TwoFactorEnabled: secret.TwoFactorEnabled,
	}, nil
}

// findOrBootstrap loads the store secret. A store without one accepts the
// bootstrap password once and gets a secret row created from it.
func (s *authService) findOrBootstrap(ctx context.Context, storeID, password string) (*model.StoreSecret, error) {
	secret, err := s.repo.Find(ctx, storeID)
	if err == nil {
		return secret, nil
	}
	if !repository.IsNotFound(err) {
		return nil, err
	}
	if s.cfg.BootstrapPassword == "" || password != s.cfg.BootstrapPassword {
		return nil, ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, err
	}
	secret = &model.StoreSecret{StoreID: storeID, PasswordHash: string(hash)}
	if err := s.repo.Save(ctx, secret); err != nil {
		return nil, err
	}
	return secret, nil
}

func (s *authService) SetupTOTP(ctx context.Context, storeID string) (*dto.TOTPSetupResponse, error) {
	secret, err := s.repo.Find(ctx, storeID)
	if err != nil {
		return nil, err
	}
	key, err := totp.Generate(totp.GenerateOpts{Issuer: totpIssuer, AccountName: storeID})
	if err != nil {
		return nil, err
	}
	raw := key.Secret()
	secret.TOTPSecret = &raw
	secret.TwoFactorEnabled = false
	if err := s.repo.Save(ctx, secret); err != nil {
		return nil, err
	}
	return &dto.TOTPSetupResponse{Secret: raw, OTPAuthURL: key.URL()}, nil
}

func (s *authService) EnableTOTP(ctx context.Context, storeID, code string) error {
	secret, err := s.repo.Find(ctx, storeID)
	if err != nil {
		return err
	}
	if secret.TOTPSecret == nil {
		return ErrTOTPNotSetup
	}
	if !totp.Validate(code, *secret.TOTPSecret) {
		return ErrInvalidTOTP
	}
	secret.TwoFactorEnabled = true
	return s.repo.Save(ctx, secret)
}

func (s *authService) SetPassword(ctx context.Context, storeID string, req dto.SetPasswordRequest) error {
	secret, err := s.repo.Find(ctx, storeID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(secret.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.bcryptCost)
	if err != nil {
		return err
	}
	secret.PasswordHash = string(hash)
	return s.repo.Save(ctx, secret)
}

func (s *authService) generateToken(storeID string, duration time.Duration) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"store_id": storeID,
		"role":     roleAdmin,
		"exp":      now.Add(duration).Unix(),
		"iat":      now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}
