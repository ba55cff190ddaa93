package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
)

const (
	// a horizontal gap wider than this many em starts a new table cell
	cellGapEm = 1.5
	// a gap wider than this many em between runs of the same cell becomes a space
	wordGapEm = 0.2

	defaultFontSize = 10.0
)

// ScannedPDFReader OCRs a PDF that has no text layer.
type ScannedPDFReader interface {
	ExtractScannedPDF(ctx context.Context, content []byte) (ocr.Result, error)
}

// PDFExtractor reads the text layer of a PDF and finds tables in its row layout.
type PDFExtractor struct {
	fallback ScannedPDFReader
	logger   *slog.Logger
}

// NewPDFExtractor builds a PDF extractor. fallback may be nil; when set it is
// used for documents whose text layer is empty.
func NewPDFExtractor(fallback ScannedPDFReader, logger *slog.Logger) *PDFExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFExtractor{fallback: fallback, logger: logger}
}

func (x *PDFExtractor) Extract(ctx context.Context, content []byte, _ string) (Extraction, error) {
	start := time.Now()
	res, err := x.readTextLayer(content)
	if err != nil {
		return Extraction{Method: "pdf-text"}, err
	}
	res.Duration = time.Since(start)

	if strings.TrimSpace(res.Text) != "" || x.fallback == nil {
		return res, nil
	}

	x.logger.Info("extract.pdf.no_text_layer", "pages", res.Pages)
	o, err := x.fallback.ExtractScannedPDF(ctx, content)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("ocr fallback: %v", err))
		return res, nil
	}
	return Extraction{
		Text:     o.Text,
		Pages:    o.Pages,
		Method:   o.Method,
		Duration: time.Since(start),
		Warnings: append(res.Warnings, o.Warnings...),
	}, nil
}

func (x *PDFExtractor) readTextLayer(content []byte) (res Extraction, err error) {
	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf: malformed document: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return Extraction{}, fmt.Errorf("pdf: open: %w", err)
	}

	res.Method = "pdf-text"
	res.Pages = reader.NumPage()
	lines := make([]string, 0, res.Pages*32)
	for i := 1; i <= res.Pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			res.Warnings = append(res.Warnings, fmt.Sprintf("page %d: empty", i))
			continue
		}

		rows := rowsFromText(page.Content().Text)
		for _, r := range rows {
			lines = append(lines, r.text())
		}
		res.Tables = append(res.Tables, tablesFromRows(rows)...)
	}
	res.Text = strings.Join(lines, "\n")
	x.logger.Debug("extract.pdf.ok", "pages", res.Pages, "lines", len(lines), "tables", len(res.Tables))
	return res, nil
}

type textRun struct {
	X, W     float64
	FontSize float64
	S        string
}

type cell struct {
	Text   string
	X0, X1 float64
}

type row []cell

// text joins the cells of a row with single spaces.
func (r row) text() string {
	parts := make([]string, len(r))
	for i, c := range r {
		parts[i] = c.Text
	}
	return strings.Join(parts, " ")
}

// rowsFromText groups positioned glyphs into visual rows, top to bottom.
// Glyphs whose baselines round to the same point share a row.
func rowsFromText(glyphs []pdf.Text) []row {
	byLine := map[int64][]textRun{}
	for _, g := range glyphs {
		if g.S == "" || g.S == "\n" {
			continue
		}
		y := int64(math.Round(g.Y))
		byLine[y] = append(byLine[y], textRun{X: g.X, W: g.W, FontSize: g.FontSize, S: g.S})
	}
	ys := make([]int64, 0, len(byLine))
	for y := range byLine {
		ys = append(ys, y)
	}
	sort.Slice(ys, func(i, j int) bool { return ys[i] > ys[j] })

	rows := make([]row, 0, len(ys))
	for _, y := range ys {
		if r := cellsFromRuns(byLine[y]); len(r) > 0 {
			rows = append(rows, r)
		}
	}
	return rows
}

// cellsFromRuns merges the text runs of one visual row into cells, splitting
// wherever the horizontal gap between runs is wider than cellGapEm. Runs at
// the same X keep their input order.
func cellsFromRuns(runs []textRun) row {
	if len(runs) == 0 {
		return nil
	}
	sorted := make([]textRun, len(runs))
	copy(sorted, runs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	var cells row
	var cur strings.Builder
	x0 := sorted[0].X
	end := sorted[0].X
	for i, r := range sorted {
		size := r.FontSize
		if size <= 0 {
			size = defaultFontSize
		}
		gap := r.X - end
		if i > 0 && gap > cellGapEm*size {
			cells = appendCell(cells, cur.String(), x0, end)
			cur.Reset()
			x0 = r.X
		} else if i > 0 && gap > wordGapEm*size && !strings.HasSuffix(cur.String(), " ") {
			cur.WriteByte(' ')
		}
		cur.WriteString(r.S)
		if e := r.X + r.W; e > end || i == 0 {
			end = e
		}
	}
	return appendCell(cells, cur.String(), x0, end)
}

func appendCell(cells row, s string, x0, x1 float64) row {
	if s = strings.TrimSpace(s); s != "" {
		cells = append(cells, cell{Text: s, X0: x0, X1: x1})
	}
	return cells
}

// tablesFromRows groups consecutive rows into tables. A table needs at least
// two rows with the same number of cells (two or more), each column lining up
// with the first row's. Rows holding "label:" or "key: value" cells belong to
// invoice headers and end a table.
func tablesFromRows(rows []row) []Table {
	var tables []Table
	var head row
	var cur Table
	flush := func() {
		if len(cur) >= 2 {
			tables = append(tables, cur)
		}
		head, cur = nil, nil
	}
	for _, r := range rows {
		if len(r) < 2 || isLabelRow(r) {
			flush()
			continue
		}
		if head != nil && !alignedWith(head, r) {
			flush()
		}
		if head == nil {
			head = r
		}
		cur = append(cur, cellTexts(r))
	}
	flush()
	return tables
}

func isLabelRow(r row) bool {
	for _, c := range r {
		if strings.HasSuffix(c.Text, ":") || strings.Contains(c.Text, ": ") {
			return true
		}
	}
	return false
}

// alignedWith reports whether every cell of r overlaps the matching column of
// head, allowing one column gap of slack.
func alignedWith(head, r row) bool {
	if len(head) != len(r) {
		return false
	}
	slack := cellGapEm * defaultFontSize
	for i := range r {
		a, b := head[i], r[i]
		if a.X0 > b.X1+slack || b.X0 > a.X1+slack {
			return false
		}
	}
	return true
}

func cellTexts(r row) []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = c.Text
	}
	return out
}
