package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Categoria partitions products inside a store. Each categoria has its own
// document collection and image extension convention.
type Categoria string

const (
	CategoriaOculos Categoria = "oculos" // glasses
	CategoriaCintos Categoria = "cintos" // belts
)

// AllCategorias lists the categorias known to the system, in lookup order.
var AllCategorias = []Categoria{CategoriaOculos, CategoriaCintos}

// Valid reports whether c is a known categoria.
func (c Categoria) Valid() bool {
	return c == CategoriaOculos || c == CategoriaCintos
}

// ImageExt returns the file extension used by images of this categoria.
func (c Categoria) ImageExt() string {
	if c == CategoriaCintos {
		return "webp"
	}
	return "jpg"
}

// Gender is an optional classification; nil on a Product means unclassified.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

func (g Gender) Valid() bool { return g == GenderMale || g == GenderFemale }

// SyncStatus tracks whether a cached record has reached the remote store.
// It only lives in the local cache and is never persisted remotely.
type SyncStatus string

const (
	SyncPending   SyncStatus = "pending"
	SyncConfirmed SyncStatus = "confirmed"
	SyncFailed    SyncStatus = "failed"
)

// Product is both the remote document (one row per store/categoria/sku)
// and the element type of the per-store cache blob.
type Product struct {
	ID            string           `gorm:"-" json:"id"`
	StoreID       string           `gorm:"primaryKey;size:64" json:"storeId"`
	Categoria     Categoria        `gorm:"primaryKey;size:16" json:"categoria"`
	SKU           string           `gorm:"primaryKey;size:64" json:"sku"`
	Caixa         string           `gorm:"index;not null" json:"caixa"`
	Gender        *Gender          `gorm:"size:16" json:"gender,omitempty"`
	Imagem        *string          `json:"imagem,omitempty"`
	Link          *string          `json:"link,omitempty"`
	OnSale        bool             `gorm:"not null;default:false" json:"onSale"`
	SalePrice     *decimal.Decimal `gorm:"type:decimal(10,2)" json:"salePrice,omitempty"`
	SaleUpdatedAt *time.Time       `json:"saleUpdatedAt,omitempty"`
	// Version increases on every write; the remote store refuses writes
	// carrying a version lower than or equal to the stored one.
	Version      int64      `gorm:"not null;default:1" json:"version"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastModified time.Time  `json:"lastModified"`
	SyncStatus   SyncStatus `gorm:"-" json:"syncStatus,omitempty"`
}

func (Product) TableName() string { return "products" }

// Key identifies a product document.
func (p Product) Key() ProductKey {
	return ProductKey{StoreID: p.StoreID, Categoria: p.Categoria, SKU: p.SKU}
}

// ProductKey is the remote document address {store}/{categoria}/products/{sku}.
type ProductKey struct {
	StoreID   string    `json:"storeId"`
	Categoria Categoria `json:"categoria"`
	SKU       string    `json:"sku"`
}

func (k ProductKey) String() string {
	return k.StoreID + "/" + string(k.Categoria) + "/products/" + k.SKU
}

// SameSKU compares SKUs the way lookups do: case-insensitive, trimmed.
func SameSKU(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// ProductPatch carries a partial update. A nil field is left untouched;
// a pointer to an empty string clears Gender, Imagem or Link.
type ProductPatch struct {
	Caixa          *string          `json:"caixa,omitempty"`
	Gender         *Gender          `json:"gender,omitempty"`
	Imagem         *string          `json:"imagem,omitempty"`
	Link           *string          `json:"link,omitempty"`
	OnSale         *bool            `json:"onSale,omitempty"`
	SalePrice      *decimal.Decimal `json:"salePrice,omitempty"`
	ClearSalePrice bool             `json:"clearSalePrice,omitempty"`
	SaleUpdatedAt  *time.Time       `json:"saleUpdatedAt,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (pp ProductPatch) Empty() bool {
	return pp.Caixa == nil && pp.Gender == nil && pp.Imagem == nil && pp.Link == nil &&
		pp.OnSale == nil && pp.SalePrice == nil && !pp.ClearSalePrice && pp.SaleUpdatedAt == nil
}

// Apply mutates p in place. Version and timestamps are the caller's job.
func (pp ProductPatch) Apply(p *Product) {
	if pp.Caixa != nil {
		p.Caixa = *pp.Caixa
	}
	if pp.Gender != nil {
		if *pp.Gender == "" {
			p.Gender = nil
		} else {
			g := *pp.Gender
			p.Gender = &g
		}
	}
	if pp.Imagem != nil {
		p.Imagem = optionalString(*pp.Imagem)
	}
	if pp.Link != nil {
		p.Link = optionalString(*pp.Link)
	}
	if pp.OnSale != nil {
		p.OnSale = *pp.OnSale
	}
	if pp.ClearSalePrice {
		p.SalePrice = nil
	} else if pp.SalePrice != nil {
		price := *pp.SalePrice
		p.SalePrice = &price
	}
	if pp.SaleUpdatedAt != nil {
		t := *pp.SaleUpdatedAt
		p.SaleUpdatedAt = &t
	}
}

// Columns maps the patch onto remote column names.
func (pp ProductPatch) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if pp.Caixa != nil {
		cols["caixa"] = *pp.Caixa
	}
	if pp.Gender != nil {
		if *pp.Gender == "" {
			cols["gender"] = nil
		} else {
			cols["gender"] = string(*pp.Gender)
		}
	}
	if pp.Imagem != nil {
		cols["imagem"] = optionalString(*pp.Imagem)
	}
	if pp.Link != nil {
		cols["link"] = optionalString(*pp.Link)
	}
	if pp.OnSale != nil {
		cols["on_sale"] = *pp.OnSale
	}
	if pp.ClearSalePrice {
		cols["sale_price"] = nil
	} else if pp.SalePrice != nil {
		cols["sale_price"] = *pp.SalePrice
	}
	if pp.SaleUpdatedAt != nil {
		cols["sale_updated_at"] = *pp.SaleUpdatedAt
	}
	return cols
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// BoxLess orders box labels: numeric labels ascending first, then the rest
// lexically. A label is numeric when it is plain digits with at most one
// decimal point, so "NaN", "1e3" or "0x1F" sort as text.
func BoxLess(a, b string) bool {
	na, okA := boxNumber(a)
	nb, okB := boxNumber(b)
	switch {
	case okA && okB:
		return na < nb
	case okA:
		return true
	case okB:
		return false
	default:
		return a < b
	}
}

func boxNumber(label string) (float64, bool) {
	label = strings.TrimSpace(label)
	digits, dots := 0, 0
	for _, r := range label {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return 0, false
		}
	}
	if digits == 0 || dots > 1 {
		return 0, false
	}
	n, err := strconv.ParseFloat(label, 64)
	return n, err == nil
}
