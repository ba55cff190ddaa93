package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/create"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/fields"
)

const unboundedWidth = 1 << 20

// Document is a rendered PDF held in memory.
type Document struct {
	Name string
	data []byte
}

// Bytes returns the PDF bytes.
func (d *Document) Bytes() []byte { return d.data }

// Len returns the size in bytes.
func (d *Document) Len() int { return len(d.data) }

// Reader returns a fresh seekable reader positioned at offset 0.
func (d *Document) Reader() *bytes.Reader { return bytes.NewReader(d.data) }

// WriteTo implements io.WriterTo.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(d.data)
	return int64(n), err
}

// Renderer draws plans onto a single page with pdfcpu's text writer.
type Renderer struct {
	name   string
	conf   *model.Configuration
	logger *slog.Logger
}

// NewRenderer returns a Renderer naming its documents outputName
// (constants.DefaultOutputFilename when empty).
func NewRenderer(outputName string, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	if outputName == "" {
		outputName = constants.DefaultOutputFilename
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.Cmd = model.CREATE
	return &Renderer{name: outputName, conf: conf, logger: logger}
}

// Render lays out fields and items and produces the PDF.
func (r *Renderer) Render(ctx context.Context, f *fields.Fields, items []string) (*Document, error) {
	return r.RenderPlan(ctx, Layout(f, items))
}

// RenderPlan serializes a precomputed layout.
func (r *Renderer) RenderPlan(ctx context.Context, p Plan) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	pctx, err := pdfcpu.CreateContextWithXRefTable(r.conf, &types.Dim{Width: p.Width, Height: p.Height})
	if err != nil {
		return nil, fmt.Errorf("create pdf: %w", err)
	}

	mediaBox := types.RectForDim(p.Width, p.Height)
	page := model.NewPage(mediaBox, mediaBox)
	// the writer shifts columns back inside its bounds; long lines must run off the right edge instead
	bounds := types.NewRectangle(0, 0, unboundedWidth, p.Height)
	fonts := model.FontMap{}
	drawn := 0
	for _, l := range visibleLines(p) {
		fonts.EnsureKey(l.Font)
		model.WriteColumn(pctx.XRefTable, page.Buf, bounds, nil, model.TextDescriptor{
			Text:     l.Text,
			FontName: l.Font,
			FontKey:  page.Fm.EnsureKey(l.Font),
			FontSize: l.Size,
			X:        l.X,
			Y:        l.Y,
			ScaleAbs: true,
			Scale:    1,
		}, 0)
		drawn++
	}

	if _, _, err := create.UpdatePageTree(pctx, []*model.Page{&page}, fonts); err != nil {
		return nil, fmt.Errorf("create pdf: %w", err)
	}
	var out bytes.Buffer
	if err := api.WriteContext(pctx, &out); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}

	if n := p.Overflow(); n > 0 {
		r.logger.Warn("render.overflow", "lines", len(p.Lines), "below_margin", n)
	}
	r.logger.Debug("render.ok",
		"lines", len(p.Lines),
		"drawn", drawn,
		"bytes", out.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &Document{Name: r.name, data: out.Bytes()}, nil
}

// visibleLines drops blank lines and lines that fall entirely below the page
// edge. The rest are drawn with their baseline at Line.Y. Text goes straight
// to the content stream, so characters such as % are written as given.
func visibleLines(p Plan) []Line {
	out := make([]Line, 0, len(p.Lines))
	for _, l := range p.Lines {
		if l.Y < 0 || strings.TrimSpace(l.Text) == "" {
			continue
		}
		out = append(out, splitEscapes(l)...)
	}
	return out
}

// splitEscapes cuts a line after every literal backslash that precedes an n.
// The column writer treats that pair as a line break; drawing the pieces side
// by side keeps them on one line.
func splitEscapes(l Line) []Line {
	if !strings.Contains(l.Text, `\n`) {
		return []Line{l}
	}
	var out []Line
	rest := l.Text
	for {
		i := strings.Index(rest, `\n`)
		if i < 0 {
			break
		}
		seg := l
		seg.Text = rest[:i+1]
		out = append(out, seg)
		l.X += font.TextWidth(seg.Text, l.Font, l.Size)
		rest = rest[i+1:]
	}
	l.Text = rest
	return append(out, l)
}
