package extract

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
)

// ImageReader OCRs a single image.
type ImageReader interface {
	ExtractImage(ctx context.Context, content []byte, ext string) (ocr.Result, error)
}

// ImageExtractor reads PNG and JPEG invoices through OCR. Images never yield tables.
type ImageExtractor struct {
	ocr    ImageReader
	logger *slog.Logger
}

func NewImageExtractor(r ImageReader, logger *slog.Logger) *ImageExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageExtractor{ocr: r, logger: logger}
}

func (x *ImageExtractor) Extract(ctx context.Context, content []byte, mimeType string) (Extraction, error) {
	ext := "png"
	if constants.NormalizeMIME(mimeType) != constants.MIMEPNG {
		ext = "jpg"
	}
	r, err := x.ocr.ExtractImage(ctx, content, ext)
	if err != nil {
		return Extraction{Method: "image-ocr", Warnings: r.Warnings}, err
	}
	return Extraction{
		Text:     r.Text,
		Pages:    r.Pages,
		Method:   r.Method,
		Duration: r.Duration,
		Warnings: r.Warnings,
	}, nil
}
