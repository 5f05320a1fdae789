package handler

import (
	"path/filepath"
	"time"

	"boxtrack/internal/infra"
	"boxtrack/internal/service"

	"github.com/gin-gonic/gin"
)

type ReportsHandler struct {
	svc        service.ProductService
	reportsDir string
}

func NewReportsHandler(svc service.ProductService, reportsDir string) *ReportsHandler {
	return &ReportsHandler{svc: svc, reportsDir: reportsDir}
}

// BoxesPDF godoc
// @Summary Box inventory sheet of a store
// @Tags reports
// @Produce application/pdf
// @Router /v1/stores/{store}/reports/boxes.pdf [get]
func (h *ReportsHandler) BoxesPDF(c *gin.Context) {
	store := c.Param("store")
	products, err := h.svc.GetAll(c.Request.Context(), store)
	if err != nil {
		respondError(c, err)
		return
	}
	path, err := infra.GenerateBoxReportPDF(store, products, h.reportsDir, time.Now())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}
