package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSortByBox_NumericBeforeLexical(t *testing.T) {
	var ps []Product
	for _, box := range []string{"B", "2", "10", "A", "1"} {
		ps = append(ps, Product{SKU: "x" + box, Caixa: box})
	}
	SortByBox(ps)

	var got []string
	for _, p := range ps {
		got = append(got, p.Caixa)
	}
	assert.Equal(t, []string{"1", "2", "10", "A", "B"}, got)
}

func TestSortByBox_TiesBySKU(t *testing.T) {
	ps := []Product{
		{SKU: "300", Caixa: "7"},
		{SKU: "100", Caixa: "7"},
		{SKU: "200", Caixa: "3"},
		{SKU: "050", Caixa: "C"},
		{SKU: "010", Caixa: "C"},
	}
	SortByBox(ps)

	var got []string
	for _, p := range ps {
		got = append(got, p.Caixa+":"+p.SKU)
	}
	assert.Equal(t, []string{"3:200", "7:100", "7:300", "C:010", "C:050"}, got)
}

func TestBoxLess_DecimalLabels(t *testing.T) {
	assert.True(t, BoxLess("2.5", "10"))
	assert.True(t, BoxLess("9", "A1"))
	assert.False(t, BoxLess("A1", "9"))
	assert.False(t, BoxLess("5", "5"))
}

func TestBoxLess_OnlyPlainNumbersAreNumeric(t *testing.T) {
	for _, label := range []string{"NaN", "Inf", "1e3", "0x1F", "1.2.3", "."} {
		assert.True(t, BoxLess("1", label), label)
		assert.False(t, BoxLess(label, "1"), label)
	}
	assert.True(t, BoxLess(" 3 ", "10"))
	assert.True(t, BoxLess("2.", "2.5"))
}

func TestSameSKU(t *testing.T) {
	assert.True(t, SameSKU("ab12", "AB12"))
	assert.True(t, SameSKU(" 774419 ", "774419"))
	assert.False(t, SameSKU("774419", "774418"))
}

func TestCategoria_ImageExt(t *testing.T) {
	assert.Equal(t, "jpg", CategoriaOculos.ImageExt())
	assert.Equal(t, "webp", CategoriaCintos.ImageExt())
	assert.False(t, Categoria("bolsas").Valid())
}

func TestProductPatch_ApplyAndClear(t *testing.T) {
	g := GenderFemale
	img := "/images/oculos/1.jpg"
	price := decimal.RequireFromString("99.90")
	p := Product{SKU: "1", Caixa: "A", Gender: &g, Imagem: &img, SalePrice: &price}

	empty := ""
	clearGender := Gender("")
	on := true
	box := "B"
	ProductPatch{Caixa: &box, Gender: &clearGender, Imagem: &empty, OnSale: &on, ClearSalePrice: true}.Apply(&p)

	assert.Equal(t, "B", p.Caixa)
	assert.Nil(t, p.Gender)
	assert.Nil(t, p.Imagem)
	assert.True(t, p.OnSale)
	assert.Nil(t, p.SalePrice)
}

func TestProductPatch_Columns(t *testing.T) {
	on := false
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	link := ""
	cols := ProductPatch{OnSale: &on, SaleUpdatedAt: &at, Link: &link, ClearSalePrice: true}.Columns()

	assert.Equal(t, false, cols["on_sale"])
	assert.Equal(t, at, cols["sale_updated_at"])
	assert.Nil(t, cols["sale_price"])
	assert.Contains(t, cols, "sale_price")
	assert.Contains(t, cols, "link")
	assert.NotContains(t, cols, "caixa")
}

func TestProductPatch_Empty(t *testing.T) {
	assert.True(t, ProductPatch{}.Empty())
	box := "C"
	assert.False(t, ProductPatch{Caixa: &box}.Empty())
	assert.False(t, ProductPatch{ClearSalePrice: true}.Empty())
}

func TestProductKey_String(t *testing.T) {
	p := Product{StoreID: "patiobatel", Categoria: CategoriaOculos, SKU: "774419"}
	assert.Equal(t, "patiobatel/oculos/products/774419", p.Key().String())
}
