// Package extract turns uploaded documents into plain text and table rows.
// One Extractor exists per document format; the Registry picks one by MIME type.
package extract

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
)

// Table is a list of rows of cell strings, header row first.
type Table [][]string

// Extraction is the raw output of a format extractor.
type Extraction struct {
	Text     string
	Tables   []Table
	Pages    int
	Method   string // "pdf-text" | "pdf-ocr" | "docx" | "image-ocr"
	Duration time.Duration
	Warnings []string
}

// Extractor reads one document held in memory.
type Extractor interface {
	Extract(ctx context.Context, content []byte, mimeType string) (Extraction, error)
}

// Registry maps document formats to extractors.
type Registry struct {
	byFormat map[string]Extractor
	logger   *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{byFormat: make(map[string]Extractor), logger: logger}
}

// Register installs e for a format (constants.PDF, constants.WORD, constants.IMAGE).
func (r *Registry) Register(format string, e Extractor) *Registry {
	r.byFormat[format] = e
	return r
}

// Lookup returns the extractor for a MIME type.
func (r *Registry) Lookup(mimeType string) (Extractor, bool) {
	format := constants.MapMIMEToFormat(mimeType)
	if format == "" {
		r.logger.Debug("extract.lookup.unsupported", "mime_type", mimeType)
		return nil, false
	}
	e, ok := r.byFormat[format]
	return e, ok
}

// NewDefaultRegistry wires the PDF, Word and image extractors. o may be nil,
// which leaves images unsupported and disables the scanned-PDF fallback.
func NewDefaultRegistry(o *ocr.Extractor, logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	var fallback ScannedPDFReader
	if o != nil {
		fallback = o
		r.Register(constants.IMAGE, NewImageExtractor(o, logger))
	}
	r.Register(constants.PDF, NewPDFExtractor(fallback, logger))
	r.Register(constants.WORD, NewDocxExtractor(logger))
	return r
}
