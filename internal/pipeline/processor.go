// Package pipeline runs one document through extraction, field parsing,
// default filling and rendering.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/fields"
	"github.com/joseph-ayodele/invoice-extractor/internal/items"
	"github.com/joseph-ayodele/invoice-extractor/internal/render"
)

// Renderer turns fields and items into a document.
type Renderer interface {
	Render(ctx context.Context, f *fields.Fields, items []string) (*render.Document, error)
}

// Processor handles one document per call and keeps no per-document state,
// so a single instance may be shared across goroutines.
type Processor struct {
	logger   *slog.Logger
	registry *extract.Registry
	renderer Renderer
}

func NewProcessor(logger *slog.Logger, registry *extract.Registry, renderer Renderer) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{logger: logger, registry: registry, renderer: renderer}
}

// Process extracts fields and items from content and renders them.
// Extraction problems are reported on Result.Err and processing continues
// with whatever was extracted. Only a render failure returns an error.
func (p *Processor) Process(ctx context.Context, content []byte, mimeType string) (Result, error) {
	start := time.Now()
	ctx, reqID := common.EnsureRequestID(ctx)
	mimeType = constants.NormalizeMIME(mimeType)
	log := p.logger.With("request_id", reqID, "mime_type", mimeType)
	if name := common.FilenameFromContext(ctx); name != "" {
		log = log.With("filename", name)
	}

	res := Result{MIMEType: mimeType}

	// 1) extract text + tables (collaborator per format)
	ext, xerr := p.extract(ctx, content, mimeType)
	if xerr != nil {
		res.Err = xerr
		log.Warn("pipeline.extract.failed", "error_kind", xerr.Kind, "error", xerr.Error())
	}
	res.Method = ext.Method
	res.Warnings = ext.Warnings

	// 2) parse fields + items, then guarantee canonical fields
	res.Fields = fields.Parse(ext.Text)
	parsed := res.Fields.Len()
	res.Items = items.FromTables(ext.Tables)
	fields.FillDefaults(res.Fields)

	// 3) render whatever we have
	doc, err := p.renderer.Render(ctx, res.Fields, res.Items)
	res.Duration = time.Since(start)
	if err != nil {
		log.Error("pipeline.render.failed", "err", err)
		return res, fmt.Errorf("render: %w", err)
	}
	res.Document = doc

	log.Info("pipeline.ok",
		"method", res.Method,
		"parsed_fields", parsed,
		"items", len(res.Items),
		"error_kind", res.ErrorKind(),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (p *Processor) extract(ctx context.Context, content []byte, mimeType string) (ext extract.Extraction, xerr *common.ExtractionError) {
	x, ok := p.registry.Lookup(mimeType)
	if !ok {
		return extract.Extraction{}, common.NewUnsupportedFormat(mimeType)
	}

	defer func() {
		if r := recover(); r != nil {
			xerr = common.NewExtractionFailed(mimeType, fmt.Errorf("extractor panic: %v", r))
		}
	}()
	ext, err := x.Extract(ctx, content, mimeType)
	if err != nil {
		return ext, common.NewExtractionFailed(mimeType, err)
	}
	return ext, nil
}
