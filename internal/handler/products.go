package handler

import (
	"net/http"
	"strconv"
	"strings"

	"boxtrack/internal/apierror"
	"boxtrack/internal/dto"
	"boxtrack/internal/model"
	"boxtrack/internal/service"

	"github.com/gin-gonic/gin"
)

type ProductsHandler struct{ svc service.ProductService }

func NewProductsHandler(svc service.ProductService) *ProductsHandler {
	return &ProductsHandler{svc: svc}
}

// List godoc
// @Summary List the products of a store
// @Description Served from the store cache; ?fresh=true reads the remote store first.
// @Tags products
// @Produce json
// @Param store path string true "Store id"
// @Param fresh query bool false "Bypass the cache"
// @Success 200 {object} dto.ProductListResponse
// @Router /v1/stores/{store}/products [get]
func (h *ProductsHandler) List(c *gin.Context) {
	store := c.Param("store")
	var (
		products []model.Product
		err      error
	)
	if fresh, _ := strconv.ParseBool(c.Query("fresh")); fresh {
		products, err = h.svc.GetAllFresh(c.Request.Context(), store)
	} else {
		products, err = h.svc.GetAll(c.Request.Context(), store)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ProductListResponse{Data: service.ToProductResponses(products), Total: len(products)})
}

// Get godoc
// @Summary Look up a product by SKU (case-insensitive)
// @Tags products
// @Produce json
// @Success 200 {object} dto.ProductResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/stores/{store}/products/{sku} [get]
func (h *ProductsHandler) Get(c *gin.Context) {
	p, err := h.svc.GetBySKU(c.Request.Context(), c.Param("store"), c.Param("sku"))
	if err != nil {
		respondError(c, err)
		return
	}
	if p == nil {
		c.JSON(http.StatusNotFound, apierror.New("product not found"))
		return
	}
	c.JSON(http.StatusOK, service.ToProductResponse(*p))
}

// Add godoc
// @Summary Add or replace a product
// @Tags products
// @Accept json
// @Produce json
// @Param body body dto.AddProductRequest true "Product"
// @Success 201 {object} dto.ProductResponse
// @Router /v1/stores/{store}/products [post]
func (h *ProductsHandler) Add(c *gin.Context) {
	var req dto.AddProductRequest
	if !bindAndValidate(c, &req) {
		return
	}
	p := model.Product{
		SKU:       req.SKU,
		Categoria: model.Categoria(req.Categoria),
		Caixa:     req.Caixa,
		Imagem:    req.Imagem,
		Link:      req.Link,
		OnSale:    req.OnSale,
		SalePrice: req.SalePrice,
	}
	if req.Gender != "" {
		g := model.Gender(req.Gender)
		p.Gender = &g
	}
	saved, err := h.svc.Add(c.Request.Context(), c.Param("store"), p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, service.ToProductResponse(*saved))
}

// Remove godoc
// @Summary Remove several products by SKU
// @Tags products
// @Accept json
// @Produce json
// @Param body body dto.RemoveProductsRequest true "SKUs"
// @Success 200 {object} dto.RemoveProductsResponse
// @Router /v1/stores/{store}/products [delete]
func (h *ProductsHandler) Remove(c *gin.Context) {
	var req dto.RemoveProductsRequest
	if !bindAndValidate(c, &req) {
		return
	}
	n, err := h.svc.RemoveMany(c.Request.Context(), c.Param("store"), req.SKUs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.RemoveProductsResponse{Removed: n})
}

// Update godoc
// @Summary Patch product fields
// @Tags products
// @Accept json
// @Produce json
// @Param body body dto.UpdateFieldsRequest true "Fields"
// @Success 200 {object} dto.ProductResponse
// @Router /v1/stores/{store}/products/{sku} [patch]
func (h *ProductsHandler) Update(c *gin.Context) {
	var req dto.UpdateFieldsRequest
	if !bindAndValidate(c, &req) {
		return
	}
	patch := model.ProductPatch{
		Caixa:     req.Caixa,
		Imagem:    req.Imagem,
		Link:      req.Link,
		OnSale:    req.OnSale,
		SalePrice: req.SalePrice,
	}
	if req.Gender != nil {
		g := model.Gender(strings.TrimSpace(*req.Gender))
		patch.Gender = &g
	}
	p, err := h.svc.UpdateFields(c.Request.Context(), c.Param("store"), c.Param("sku"), model.Categoria(req.Categoria), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.ToProductResponse(*p))
}

// Move godoc
// @Summary Move a product to another box
// @Tags products
// @Accept json
// @Produce json
// @Param body body dto.MoveBoxRequest true "Target box"
// @Success 200 {object} dto.ProductResponse
// @Router /v1/stores/{store}/products/{sku}/move [post]
func (h *ProductsHandler) Move(c *gin.Context) {
	var req dto.MoveBoxRequest
	if !bindAndValidate(c, &req) {
		return
	}
	store := c.Param("store")
	current, err := h.svc.GetBySKU(c.Request.Context(), store, c.Param("sku"))
	if err != nil {
		respondError(c, err)
		return
	}
	if current == nil {
		c.JSON(http.StatusNotFound, apierror.New("product not found"))
		return
	}
	moved, err := h.svc.MoveBox(c.Request.Context(), store, *current, req.Caixa)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.ToProductResponse(*moved))
}

// Promotion godoc
// @Summary Put a product on sale or take it off
// @Tags products
// @Accept json
// @Produce json
// @Param body body dto.PromotionRequest true "Promotion"
// @Success 200 {object} dto.ProductResponse
// @Router /v1/stores/{store}/products/{sku}/promotion [post]
func (h *ProductsHandler) Promotion(c *gin.Context) {
	var req dto.PromotionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if req.SalePrice != nil && req.SalePrice.IsNegative() {
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(map[string]string{"SalePrice": "min"}))
		return
	}
	p, err := h.svc.SetPromotion(c.Request.Context(), c.Param("store"), c.Param("sku"),
		model.Categoria(req.Categoria), *req.OnSale, req.SalePrice)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.ToProductResponse(*p))
}

func (h *ProductsHandler) Gender(c *gin.Context) {
	var req dto.GenderRequest
	if !bindAndValidate(c, &req) {
		return
	}
	var g *model.Gender
	if req.Gender != "" {
		v := model.Gender(req.Gender)
		g = &v
	}
	p, err := h.svc.SetGender(c.Request.Context(), c.Param("store"), c.Param("sku"), model.Categoria(req.Categoria), g)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.ToProductResponse(*p))
}

// Boxes godoc
// @Summary List the boxes of a store with product counts
// @Tags boxes
// @Produce json
// @Success 200 {object} dto.BoxListResponse
// @Router /v1/stores/{store}/boxes [get]
func (h *ProductsHandler) Boxes(c *gin.Context) {
	boxes, err := h.svc.ListBoxes(c.Request.Context(), c.Param("store"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.BoxListResponse{Data: boxes})
}

func (h *ProductsHandler) Box(c *gin.Context) {
	products, err := h.svc.ListByBox(c.Request.Context(), c.Param("store"), c.Param("caixa"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ProductListResponse{Data: service.ToProductResponses(products), Total: len(products)})
}

func (h *ProductsHandler) Deletions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	rows, err := h.svc.RecentDeletions(c.Request.Context(), c.Param("store"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

// Search godoc
// @Summary Find a SKU in every store
// @Tags products
// @Produce json
// @Success 200 {object} dto.SearchResponse
// @Router /v1/search/{sku} [get]
func (h *ProductsHandler) Search(c *gin.Context) {
	sku := c.Param("sku")
	hits := h.svc.SearchAcrossStores(c.Request.Context(), sku)
	c.JSON(http.StatusOK, dto.SearchResponse{SKU: sku, Hits: hits})
}
