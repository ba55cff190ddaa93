package ocr

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ExtractImage runs tesseract over an in-memory PNG or JPEG.
// ext is the file extension used for the temporary file ("png", "jpg").
func (e *Extractor) ExtractImage(ctx context.Context, content []byte, ext string) (Result, error) {
	start := time.Now()
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	if ext == "" {
		ext = "png"
	}
	path, cleanup, err := writeTemp(content, "inv-img-*."+strings.TrimPrefix(ext, "."))
	if err != nil {
		return Result{Method: "image-ocr"}, fmt.Errorf("spool image: %w", err)
	}
	defer cleanup()

	txt, warn, err := e.tesseractOCR(ctx, path)
	if err != nil {
		return Result{Method: "image-ocr", Warnings: warn, Duration: time.Since(start)}, err
	}

	var conf float32
	if e.cfg.EnableTSVConfidence {
		c, err2 := e.tesseractTSVConfidence(ctx, path)
		if err2 != nil {
			warn = append(warn, err2.Error())
		} else {
			conf = c
		}
	}

	res := Result{
		Text:       txt,
		Pages:      1,
		Method:     "image-ocr",
		Language:   e.cfg.TesseractLang,
		Duration:   time.Since(start),
		Warnings:   warn,
		Confidence: conf,
	}
	e.logger.Debug("ocr.image.ok", "chars", len(txt), "confidence", conf, "elapsed_ms", res.Duration.Milliseconds())
	return res, nil
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, e.logger, e.tesseractArgs(path)...)
	if err != nil {
		return "", []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}
	return Normalize(string(out)), nil, nil
}

// tesseractTSVConfidence runs tesseract in TSV mode and returns mean word conf in 0..1.
func (e *Extractor) tesseractTSVConfidence(ctx context.Context, path string) (float32, error) {
	args := append(e.tesseractArgs(path), "tsv")
	out, _, err := e.runner.Run(ctx, e.cfg.Tesseract, e.logger, args...)
	if err != nil {
		return 0, fmt.Errorf("tesseract TSV: %w", err)
	}
	return meanTSVConfidence(string(out)), nil
}

// meanTSVConfidence averages the conf column (11th of 12) of tesseract TSV output,
// skipping the header and non-word rows (conf -1).
func meanTSVConfidence(tsv string) float32 {
	var sum, n float64
	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || ln == "" {
			continue
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := strings.TrimSpace(cols[10])
		if confStr == "" || confStr == "-1" {
			continue
		}
		if v, err := strconv.ParseFloat(confStr, 64); err == nil && v >= 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float32(sum / n / 100.0)
}
