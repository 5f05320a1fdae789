package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AddProductRequest struct {
	SKU       string           `json:"sku"       validate:"required,max=64"`
	Categoria string           `json:"categoria" validate:"required,oneof=oculos cintos"`
	Caixa     string           `json:"caixa"     validate:"required,max=32"`
	Gender    string           `json:"gender"    validate:"omitempty,oneof=male female"`
	Imagem    *string          `json:"imagem"    validate:"omitempty,max=512"`
	Link      *string          `json:"link"      validate:"omitempty,url"`
	OnSale    bool             `json:"onSale"`
	SalePrice *decimal.Decimal `json:"salePrice"`
}

type RemoveProductsRequest struct {
	SKUs []string `json:"skus" validate:"required,min=1,max=500,dive,required,max=64"`
}

// UpdateFieldsRequest patches a product. Categoria routes the write and is
// mandatory; an empty string in gender, imagem or link clears the field.
type UpdateFieldsRequest struct {
	Categoria string           `json:"categoria" validate:"required,oneof=oculos cintos"`
	Caixa     *string          `json:"caixa"     validate:"omitempty,min=1,max=32"`
	Gender    *string          `json:"gender"`
	Imagem    *string          `json:"imagem"    validate:"omitempty,max=512"`
	Link      *string          `json:"link"      validate:"omitempty,max=512"`
	OnSale    *bool            `json:"onSale"`
	SalePrice *decimal.Decimal `json:"salePrice"`
}

type MoveBoxRequest struct {
	Caixa string `json:"caixa" validate:"required,max=32"`
}

type PromotionRequest struct {
	Categoria string           `json:"categoria" validate:"required,oneof=oculos cintos"`
	OnSale    *bool            `json:"onSale"    validate:"required"`
	SalePrice *decimal.Decimal `json:"salePrice"`
}

type GenderRequest struct {
	Categoria string `json:"categoria" validate:"required,oneof=oculos cintos"`
	// Empty clears the classification.
	Gender string `json:"gender" validate:"omitempty,oneof=male female"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ProductResponse struct {
	ID            string           `json:"id"`
	StoreID       string           `json:"storeId"`
	SKU           string           `json:"sku"`
	Categoria     string           `json:"categoria"`
	Caixa         string           `json:"caixa"`
	Gender        *string          `json:"gender,omitempty"`
	Imagem        *string          `json:"imagem,omitempty"`
	Link          *string          `json:"link,omitempty"`
	OnSale        bool             `json:"onSale"`
	SalePrice     *decimal.Decimal `json:"salePrice,omitempty"`
	SaleUpdatedAt *time.Time       `json:"saleUpdatedAt,omitempty"`
	Version       int64            `json:"version"`
	SyncStatus    string           `json:"syncStatus"`
	CreatedAt     time.Time        `json:"createdAt"`
	LastModified  time.Time        `json:"lastModified"`
}

type ProductListResponse struct {
	Data  []ProductResponse `json:"data"`
	Total int               `json:"total"`
}

type RemoveProductsResponse struct {
	Removed int `json:"removed"`
}

type BoxSummary struct {
	Caixa string `json:"caixa"`
	Count int    `json:"count"`
}

type BoxListResponse struct {
	Data []BoxSummary `json:"data"`
}

// SearchHit is one cross-store match.
type SearchHit struct {
	StoreID string          `json:"storeId"`
	Product ProductResponse `json:"product"`
}

type SearchResponse struct {
	SKU  string      `json:"sku"`
	Hits []SearchHit `json:"hits"`
}

type DeletedProductResponse struct {
	ID        string    `json:"id"`
	SKU       string    `json:"sku"`
	Categoria string    `json:"categoria"`
	Caixa     string    `json:"caixa"`
	DeletedAt time.Time `json:"deletedAt"`
}
