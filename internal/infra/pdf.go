package infra

// pdf.go renders the box inventory sheet of a store: one section per box,
// listing SKU, categoria, gender and promotion flag, in box order. Staff
// print it to audit physical boxes against the system.

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"boxtrack/internal/model"

	"github.com/go-pdf/fpdf"
)

// GenerateBoxReportPDF writes boxes_{store}_{timestamp}.pdf under storagePath
// and returns its path. products must already be sorted by box.
func GenerateBoxReportPDF(storeID string, products []model.Product, storagePath string, at time.Time) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}
	filePath := filepath.Join(storagePath, fmt.Sprintf("boxes_%s_%s.pdf", storeID, at.Format("20060102_150405")))

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont("Helvetica", "I", 7)
		pdf.CellFormat(0, 4, fmt.Sprintf("%s  -  page %d/{nb}", storeID, pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 24

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(contentW, 8, "Box inventory - "+storeID, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 5, fmt.Sprintf("%s  |  %d products", at.Format("02/01/2006 15:04"), len(products)), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	colSKU := contentW * 0.35
	colCat := contentW * 0.25
	colGender := contentW * 0.2
	colSale := contentW * 0.2

	current := ""
	first := true
	for _, p := range products {
		if first || p.Caixa != current {
			current, first = p.Caixa, false
			pdf.Ln(2)
			pdf.SetFont("Helvetica", "B", 10)
			pdf.SetFillColor(230, 230, 230)
			pdf.CellFormat(contentW, 6, "Box "+current, "", 1, "L", true, 0, "")
			pdf.SetFont("Helvetica", "B", 8)
			pdf.CellFormat(colSKU, 5, "SKU", "B", 0, "L", false, 0, "")
			pdf.CellFormat(colCat, 5, "Categoria", "B", 0, "L", false, 0, "")
			pdf.CellFormat(colGender, 5, "Gender", "B", 0, "L", false, 0, "")
			pdf.CellFormat(colSale, 5, "On sale", "B", 1, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 8)
		}
		gender := "-"
		if p.Gender != nil {
			gender = string(*p.Gender)
		}
		sale := ""
		if p.OnSale {
			sale = "yes"
			if p.SalePrice != nil {
				sale += " (" + p.SalePrice.StringFixed(2) + ")"
			}
		}
		pdf.CellFormat(colSKU, 5, p.SKU, "", 0, "L", false, 0, "")
		pdf.CellFormat(colCat, 5, string(p.Categoria), "", 0, "L", false, 0, "")
		pdf.CellFormat(colGender, 5, gender, "", 0, "L", false, 0, "")
		pdf.CellFormat(colSale, 5, sale, "", 1, "L", false, 0, "")
	}

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}
