// Package export writes pipeline results as XLSX workbooks and JSON documents.
package export

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
)

const (
	InvoicesSheet = "Invoices"
	ItemsSheet    = "Items"
)

// Entry is one processed file in a batch.
type Entry struct {
	Filename string
	Output   string // where the rendered PDF was written, if anywhere
	Result   pipeline.Result
	Err      error // render failure, if any
}

// Service produces XLSX bytes for batch summaries.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// InvoicesXLSX returns a workbook with one row per file on the Invoices sheet
// (canonical fields as columns) and one row per line item on the Items sheet.
func (s *Service) InvoicesXLSX(entries []Entry) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("failed to close workbook", "error", err)
		}
	}()

	// the default sheet becomes the invoices sheet
	if err := f.SetSheetName(f.GetSheetName(0), InvoicesSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(ItemsSheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(InvoicesSheet)
	f.SetActiveSheet(activeIndex)

	canonical := constants.CanonicalFields()
	headers := append([]string{"File", "Status"}, canonical...)
	headers = append(headers, "Other Fields", "Item Count", "Output")
	writeRow(f, InvoicesSheet, 1, headers)
	writeRow(f, ItemsSheet, 1, []string{"File", "Item #", "Item"})

	row, itemRow := 2, 2
	for _, e := range entries {
		values := []any{e.Filename, status(e)}
		for _, name := range canonical {
			v, _ := e.Result.Fields.Get(name)
			values = append(values, v)
		}
		values = append(values, otherFields(e), len(e.Result.Items), e.Output)
		writeRow(f, InvoicesSheet, row, values)
		row++

		for i, item := range e.Result.Items {
			writeRow(f, ItemsSheet, itemRow, []any{e.Filename, i + 1, item})
			itemRow++
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(InvoicesSheet, "A", "A", 28) // file
	_ = f.SetColWidth(InvoicesSheet, "B", "B", 40) // status
	_ = f.SetColWidth(InvoicesSheet, "C", "L", 20) // canonical fields
	_ = f.SetColWidth(InvoicesSheet, "M", "M", 48) // other fields
	_ = f.SetColWidth(InvoicesSheet, "O", "O", 60) // output
	_ = f.SetColWidth(ItemsSheet, "A", "A", 28)
	_ = f.SetColWidth(ItemsSheet, "C", "C", 80)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"files", len(entries),
		"items", itemRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeRow[T any](f *excelize.File, sheet string, row int, values []T) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func status(e Entry) string {
	switch {
	case e.Err != nil:
		return "FAILED: " + e.Err.Error()
	case e.Result.Err != nil:
		return e.Result.Err.Error()
	default:
		return "OK"
	}
}

// otherFields lists the non-canonical fields as "key: value; ...".
func otherFields(e Entry) string {
	var parts []string
	for k, v := range e.Result.Fields.All() {
		if !constants.IsCanonical(k) {
			parts = append(parts, k+": "+v)
		}
	}
	return truncate(strings.Join(parts, "; "), 1000)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
