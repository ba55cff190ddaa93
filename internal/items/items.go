// Package items flattens extracted table rows into invoice line items.
package items

import (
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
)

// Separator joins the non-empty cells of a row.
const Separator = ", "

// FromTables builds the item list. Tables are read in discovery order; the
// first row of every table is a header and is skipped. Empty cells are
// dropped, and rows with nothing left are dropped too.
func FromTables(tables []extract.Table) []string {
	items := []string{}
	for _, table := range tables {
		if len(table) < 2 {
			continue
		}
		for _, row := range table[1:] {
			if item := joinRow(row); item != "" {
				items = append(items, item)
			}
		}
	}
	return items
}

func joinRow(row []string) string {
	cells := make([]string, 0, len(row))
	for _, c := range row {
		if c != "" {
			cells = append(cells, c)
		}
	}
	return strings.Join(cells, Separator)
}
