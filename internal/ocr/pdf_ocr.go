package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ExtractScannedPDF rasterizes every page with pdftoppm and OCRs each image.
// Used when a PDF carries no text layer.
func (e *Extractor) ExtractScannedPDF(ctx context.Context, content []byte) (Result, error) {
	start := time.Now()
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	tmpDir, err := os.MkdirTemp("", "inv-pp-*")
	if err != nil {
		return Result{Method: "pdf-ocr"}, err
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			e.logger.Warn("failed to remove temp dir", "dir", path, "error", err)
		}
	}(tmpDir)

	in := filepath.Join(tmpDir, "in.pdf")
	if err := os.WriteFile(in, content, 0o600); err != nil {
		return Result{Method: "pdf-ocr"}, fmt.Errorf("spool pdf: %w", err)
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, e.logger, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", in, prefix)
	if err != nil {
		return Result{Method: "pdf-ocr", Warnings: []string{string(errb)}}, fmt.Errorf("pdftoppm: %w", err)
	}

	// collect generated pngs (page-1.png, page-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return Result{Method: "pdf-ocr", Warnings: []string{"pdftoppm produced no images"}}, fmt.Errorf("no pages rendered")
	}

	var pages []string
	var warns []string
	for _, img := range matches {
		txt, w, err := e.tesseractOCR(ctx, img)
		if err != nil {
			warns = append(warns, err.Error())
			continue
		}
		pages = append(pages, txt)
		warns = append(warns, w...)
	}

	res := Result{
		Text:     strings.Join(pages, "\n"),
		Pages:    len(matches),
		Method:   "pdf-ocr",
		Language: e.cfg.TesseractLang,
		Duration: time.Since(start),
		Warnings: warns,
	}
	e.logger.Debug("ocr.pdf.ok", "pages", res.Pages, "chars", len(res.Text), "elapsed_ms", res.Duration.Milliseconds())
	return res, nil
}
