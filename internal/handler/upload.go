package handler

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"boxtrack/internal/config"
	"boxtrack/internal/dto"
	"boxtrack/internal/infra"
	"boxtrack/internal/middleware"
	"boxtrack/internal/model"
	"boxtrack/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const maxUploadBytes = 10 << 20

// UploadHandler stores product photos on disk under the conventional path
// and points the product's imagem at it.
type UploadHandler struct {
	svc       service.ProductService
	catalog   config.Catalog
	imagesDir string
}

func NewUploadHandler(svc service.ProductService, catalog config.Catalog, imagesDir string) *UploadHandler {
	return &UploadHandler{svc: svc, catalog: catalog, imagesDir: imagesDir}
}

// UploadPhoto godoc
// @Summary Upload a product photo
// @Tags media
// @Accept multipart/form-data
// @Produce json
// @Param fileName formData string false "Original file name"
// @Param category formData string true "oculos or cintos"
// @Param sku formData string true "Product SKU"
// @Param storeId formData string true "Store id"
// @Param productId formData string false "Product id"
// @Param photo formData file true "Image"
// @Success 200 {object} dto.UploadPhotoResponse
// @Failure 400 {object} dto.UploadPhotoResponse
// @Router /api/upload-photo [post]
func (h *UploadHandler) UploadPhoto(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	var req dto.UploadPhotoRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid form: "+err.Error())
		return
	}
	req.SKU = strings.TrimSpace(req.SKU)
	if err := validate.Struct(&req); err != nil {
		fail(c, http.StatusBadRequest, "category, sku and storeId are required")
		return
	}
	if filepath.Base(req.SKU) != req.SKU || strings.Contains(req.SKU, "..") {
		fail(c, http.StatusBadRequest, "invalid sku")
		return
	}
	if !h.catalog.HasStore(req.StoreID) {
		fail(c, http.StatusBadRequest, "unknown store")
		return
	}
	if claims := middleware.GetClaims(c); claims != nil && claims.StoreID != req.StoreID {
		fail(c, http.StatusForbidden, "token not valid for this store")
		return
	}

	fh, err := c.FormFile("photo")
	if err != nil {
		if fh, err = c.FormFile("file"); err != nil {
			fail(c, http.StatusBadRequest, "no file uploaded")
			return
		}
	}
	src, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, "could not read upload")
		return
	}
	defer src.Close()

	head := make([]byte, 512)
	n, _ := io.ReadFull(src, head)
	if !strings.HasPrefix(http.DetectContentType(head[:n]), "image/") {
		fail(c, http.StatusBadRequest, "file is not an image")
		return
	}

	cat := model.Categoria(req.Category)
	imagePath := infra.ConventionalImagePath(cat, req.SKU)
	dest := filepath.Join(h.imagesDir, string(cat), req.SKU+"."+cat.ImageExt())
	if err := writeFile(dest, io.MultiReader(strings.NewReader(string(head[:n])), src)); err != nil {
		log.Error().Err(err).Str("dest", dest).Msg("upload: write failed")
		fail(c, http.StatusInternalServerError, "could not store file")
		return
	}

	msg := "photo uploaded"
	if _, err := h.svc.AttachImage(c.Request.Context(), req.StoreID, req.SKU, cat, imagePath); err != nil {
		if !errors.Is(err, service.ErrNotFound) {
			log.Error().Err(err).Str("sku", req.SKU).Msg("upload: could not patch product image")
			fail(c, http.StatusInternalServerError, "file stored but product could not be updated")
			return
		}
		msg = "photo uploaded; product not found, image will be picked up by convention"
	}

	c.JSON(http.StatusOK, dto.UploadPhotoResponse{Success: true, Message: msg, ImagePath: imagePath})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, dto.UploadPhotoResponse{Success: false, Message: msg})
}

// writeFile writes through a temp file so a half-written image is never served.
func writeFile(dest string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
