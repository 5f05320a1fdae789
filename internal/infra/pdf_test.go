package infra

import (
	"os"
	"strings"
	"testing"
	"time"

	"boxtrack/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBoxReportPDF(t *testing.T) {
	g := model.GenderFemale
	price := decimal.NewFromFloat(199.9)
	products := []model.Product{
		{StoreID: "patiobatel", Categoria: model.CategoriaOculos, SKU: "774419", Caixa: "1", Gender: &g},
		{StoreID: "patiobatel", Categoria: model.CategoriaOculos, SKU: "774420", Caixa: "1", OnSale: true, SalePrice: &price},
		{StoreID: "patiobatel", Categoria: model.CategoriaCintos, SKU: "C-12", Caixa: "B"},
	}
	at := time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)

	path, err := GenerateBoxReportPDF("patiobatel", products, t.TempDir(), at)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "boxes_patiobatel_20260304_103000.pdf"))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "%PDF"))
}

func TestGenerateBoxReportPDF_EmptyStore(t *testing.T) {
	path, err := GenerateBoxReportPDF("barigui", nil, t.TempDir(), time.Now())
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
