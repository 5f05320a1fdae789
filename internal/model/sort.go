package model

import "sort"

// SortByBox orders products by box label (see BoxLess) and breaks ties on
// ascending SKU.
func SortByBox(products []Product) {
	sort.SliceStable(products, func(i, j int) bool {
		a, b := products[i], products[j]
		if BoxLess(a.Caixa, b.Caixa) {
			return true
		}
		if BoxLess(b.Caixa, a.Caixa) {
			return false
		}
		return a.SKU < b.SKU
	})
}
