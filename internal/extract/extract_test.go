package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/fields"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
	"github.com/joseph-ayodele/invoice-extractor/internal/render"
)

const documentXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Invoice Number: </w:t></w:r><w:r><w:t>INV-9</w:t></w:r></w:p>
    <w:p><w:r><w:t>Sold By:</w:t><w:tab/><w:t>Acme</w:t></w:r></w:p>
    <w:tbl>
      <w:tr>
        <w:tc><w:p><w:r><w:t>Item</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>Qty</w:t></w:r></w:p></w:tc>
      </w:tr>
      <w:tr>
        <w:tc><w:p><w:r><w:t>Widget</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>2</w:t></w:r></w:p></w:tc>
      </w:tr>
      <w:tr>
        <w:tc><w:p><w:r><w:t>Gadget</w:t></w:r></w:p><w:p><w:r><w:t>blue</w:t></w:r></w:p></w:tc>
        <w:tc>
          <w:tbl><w:tr><w:tc><w:p><w:r><w:t>nested</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
          <w:p/>
        </w:tc>
      </w:tr>
    </w:tbl>
    <w:p><w:r><w:t>Order Date: 2024-01-02</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestParseDocumentXML(t *testing.T) {
	res, err := parseDocumentXML(strings.NewReader(documentXML))
	require.NoError(t, err)

	assert.Equal(t, "Invoice Number: INV-9\nSold By:\tAcme\nOrder Date: 2024-01-02", res.Text)
	require.Len(t, res.Tables, 1)
	assert.Equal(t, Table{
		{"Item", "Qty"},
		{"Widget", "2"},
		{"Gadget\nblue", ""},
	}, res.Tables[0])
}

func TestParseDocumentXML_Malformed(t *testing.T) {
	_, err := parseDocumentXML(strings.NewReader(`<w:document xmlns:w="x"><w:body>`))
	assert.Error(t, err)
}

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"[Content_Types].xml":           `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"/>`,
		"word/document.xml":            body,
	}
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDocxExtractor(t *testing.T) {
	x := NewDocxExtractor(nil)
	res, err := x.Extract(context.Background(), buildDocx(t, documentXML), constants.MIMEDocx)
	require.NoError(t, err)
	assert.Contains(t, res.Text, "Invoice Number: INV-9")
	assert.Len(t, res.Tables, 1)
	assert.Equal(t, "docx", res.Method)
}

func TestDocxExtractor_LegacyDoc(t *testing.T) {
	x := NewDocxExtractor(nil)
	legacy := []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0, 0, 0, 0}
	_, err := x.Extract(context.Background(), legacy, constants.MIMEMSWord)
	assert.Error(t, err)
}

func TestPDFExtractor_Invalid(t *testing.T) {
	x := NewPDFExtractor(nil, nil)
	_, err := x.Extract(context.Background(), []byte("definitely not a pdf"), constants.MIMEPDF)
	assert.Error(t, err)
}

func TestCellsFromRuns(t *testing.T) {
	tests := []struct {
		name string
		runs []textRun
		want []string
	}{
		{name: "empty", runs: nil, want: []string{}},
		{
			name: "glyphs of one word",
			runs: []textRun{{X: 0, W: 5, FontSize: 10, S: "H"}, {X: 5, W: 5, FontSize: 10, S: "i"}},
			want: []string{"Hi"},
		},
		{
			name: "word gap becomes a space",
			runs: []textRun{{X: 0, W: 20, FontSize: 10, S: "Blue"}, {X: 23, W: 20, FontSize: 10, S: "Pen"}},
			want: []string{"Blue Pen"},
		},
		{
			name: "column gap splits cells, unsorted input",
			runs: []textRun{{X: 200, W: 10, FontSize: 10, S: "2"}, {X: 0, W: 40, FontSize: 10, S: "Widget"}},
			want: []string{"Widget", "2"},
		},
		{
			name: "blank runs dropped",
			runs: []textRun{{X: 0, W: 10, S: "A"}, {X: 100, W: 5, S: "  "}, {X: 300, W: 10, S: "B"}},
			want: []string{"A", "B"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cellTexts(cellsFromRuns(tt.runs)))
		})
	}
}

func TestCellsFromRuns_Positions(t *testing.T) {
	got := cellsFromRuns([]textRun{
		{X: 50, W: 30, FontSize: 10, S: "Widget"},
		{X: 300, W: 5, FontSize: 10, S: "2"},
	})
	assert.Equal(t, row{{Text: "Widget", X0: 50, X1: 80}, {Text: "2", X0: 300, X1: 305}}, got)
}

// at places cells at the given left edges, each 40pt wide.
func at(xs []float64, texts ...string) row {
	r := make(row, len(texts))
	for i, s := range texts {
		r[i] = cell{Text: s, X0: xs[i], X1: xs[i] + 40}
	}
	return r
}

func TestTablesFromRows(t *testing.T) {
	two := []float64{50, 300}
	three := []float64{50, 200, 400}

	tests := []struct {
		name string
		rows []row
		want []Table
	}{
		{
			name: "item table between header lines",
			rows: []row{
				at(two[:1], "Invoice Number: 1"),
				at(two, "Item", "Qty"),
				at(two, "Widget", "2"),
				at(two[:1], "Total: 5"),
			},
			want: []Table{{{"Item", "Qty"}, {"Widget", "2"}}},
		},
		{
			name: "single row is not a table",
			rows: []row{at(two, "lonely", "row"), nil},
		},
		{
			name: "label and value columns",
			rows: []row{
				at(two, "Order Number:", "OD-1"),
				at(two, "Order Date:", "2024-01-02"),
			},
		},
		{
			name: "two column address header",
			rows: []row{
				at(two, "Sold By", "Invoice Details"),
				at(two, "Acme Corp", "Invoice Number: 1"),
			},
		},
		{
			name: "columns that do not line up",
			rows: []row{
				at(two, "A", "B"),
				at([]float64{50, 480}, "C", "D"),
			},
		},
		{
			name: "cell count change starts a new table",
			rows: []row{
				at(three, "A", "B", "C"),
				at(three, "D", "E", "F"),
				at(two, "G", "H"),
				at(two, "I", "J"),
			},
			want: []Table{
				{{"A", "B", "C"}, {"D", "E", "F"}},
				{{"G", "H"}, {"I", "J"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tablesFromRows(tt.rows))
		})
	}
}

func TestRowsFromText(t *testing.T) {
	glyphs := []pdf.Text{
		{X: 50, Y: 700.2, FontSize: 12, S: "B"},
		{X: 50, Y: 742, FontSize: 14, S: "A"},
		{X: 50, Y: 742, FontSize: 14, S: ":"},
		{X: 50, Y: 742, FontSize: 14, S: " "},
		{X: 50, Y: 742, FontSize: 14, S: "1"},
		{X: 50, Y: 742, FontSize: 14, S: "\n"},
		{X: 300, Y: 699.9, FontSize: 12, S: "C"},
	}
	rows := rowsFromText(glyphs)
	require.Len(t, rows, 2)
	assert.Equal(t, "A: 1", rows[0].text())
	assert.Equal(t, []string{"B", "C"}, cellTexts(rows[1]))
	assert.Equal(t, "B C", rows[1].text())
}

func TestPDFExtractor_RenderedInvoice(t *testing.T) {
	f := fields.New()
	f.Set("Invoice Number", "12345")
	f.Set("Sold By", "Acme Corp")
	f.Set("Order Date", "2024-01-02")
	f.Set("GST Rate", "18%")
	doc, err := render.NewRenderer("", nil).Render(context.Background(), f, []string{"Widget, 2, 180.00"})
	require.NoError(t, err)

	res, err := NewPDFExtractor(nil, nil).Extract(context.Background(), doc.Bytes(), constants.MIMEPDF)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, "pdf-text", res.Method)
	assert.Empty(t, res.Tables)
	assert.Equal(t, []string{
		"Invoice Number: 12345",
		"Sold By: Acme Corp",
		"Order Date: 2024-01-02",
		"GST Rate: 18%",
		"Invoice Items:",
		"Widget, 2, 180.00",
	}, strings.Split(res.Text, "\n"))

	parsed := fields.Parse(res.Text)
	for _, key := range []string{"Invoice Number", "Sold By", "Order Date", "GST Rate"} {
		want, _ := f.Get(key)
		got, ok := parsed.Get(key)
		assert.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}
}

type stubImageReader struct {
	ext string
	err error
}

func (s *stubImageReader) ExtractImage(_ context.Context, _ []byte, ext string) (ocr.Result, error) {
	s.ext = ext
	if s.err != nil {
		return ocr.Result{Warnings: []string{"bad"}}, s.err
	}
	return ocr.Result{Text: "Invoice Number: 42", Pages: 1, Method: "image-ocr"}, nil
}

func TestImageExtractor(t *testing.T) {
	r := &stubImageReader{}
	x := NewImageExtractor(r, nil)

	res, err := x.Extract(context.Background(), []byte("img"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "png", r.ext)
	assert.Equal(t, "Invoice Number: 42", res.Text)
	assert.Empty(t, res.Tables)

	_, err = x.Extract(context.Background(), []byte("img"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "jpg", r.ext)

	r.err = errors.New("tesseract: exit status 1")
	res, err = x.Extract(context.Background(), []byte("img"), "image/jpg")
	assert.Error(t, err)
	assert.Equal(t, []string{"bad"}, res.Warnings)
}

func TestRegistry(t *testing.T) {
	r := NewDefaultRegistry(nil, nil)

	tests := []struct {
		mime  string
		found bool
	}{
		{constants.MIMEPDF, true},
		{"Application/PDF; charset=binary", true},
		{constants.MIMEDocx, true},
		{constants.MIMEMSWord, true},
		{constants.MIMEPNG, false},
		{"text/plain", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			_, ok := r.Lookup(tt.mime)
			assert.Equal(t, tt.found, ok)
		})
	}

	withOCR := NewDefaultRegistry(ocr.NewExtractor(ocr.Config{}, nil), nil)
	e, ok := withOCR.Lookup(constants.MIMEJPEG)
	require.True(t, ok)
	assert.IsType(t, &ImageExtractor{}, e)
}
