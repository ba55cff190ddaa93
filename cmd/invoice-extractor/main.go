package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/export"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/ingest"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	"github.com/joseph-ayodele/invoice-extractor/internal/render"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		file     = flag.String("file", "", "invoice file to process (required)")
		mimeType = flag.String("mime", "", "MIME type override; sniffed from content when empty")
		out      = flag.String("out", "", "output PDF path (defaults to OUTPUT_FILENAME)")
		asJSON   = flag.Bool("json", false, "print the result as JSON instead of text")
		xlsxOut  = flag.String("xlsx", "", "also write a one-row XLSX summary to this path")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *file == "" {
		printError("Error: --file is required\n")
		os.Exit(1)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if *out != "" {
		cfg.Render.OutputFilename = *out
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f, err := ingest.Loader{MaxBytes: int64(cfg.Server.MaxUploadBytes)}.Load(ctx, *file)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	if *mimeType != "" {
		f.MIMEType = *mimeType
	}

	ocrx := ocr.NewExtractor(ocr.Config{
		Tesseract:     cfg.OCR.TesseractBin,
		TesseractLang: cfg.OCR.TesseractLang,
		TessdataDir:   cfg.OCR.TessdataDir,
		PSM:           cfg.OCR.PSM,
		Timeout:       cfg.OCR.Timeout,
	}, logger)
	registry := extract.NewDefaultRegistry(ocrx, logger)
	renderer := render.NewRenderer(cfg.Render.OutputFilename, logger)
	processor := pipeline.NewProcessor(logger, registry, renderer)

	res, err := processor.Process(ctx, f.Content, f.MIMEType)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		b, err := export.MarshalResult(f.Filename, res)
		if err != nil {
			printError("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(b))
	} else if err := res.Display(os.Stdout); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(cfg.Render.OutputFilename, res.Document.Bytes(), 0644); err != nil {
		printError("Error: write %s: %v\n", cfg.Render.OutputFilename, err)
		os.Exit(1)
	}

	if *xlsxOut != "" {
		xlsx, err := export.NewService(logger).InvoicesXLSX([]export.Entry{{
			Filename: f.Filename,
			Output:   cfg.Render.OutputFilename,
			Result:   res,
		}})
		if err != nil {
			printError("Error: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*xlsxOut, xlsx, 0644); err != nil {
			printError("Error: write %s: %v\n", *xlsxOut, err)
			os.Exit(1)
		}
	}

	if !*asJSON {
		fmt.Printf("\nSaved %s\n", cfg.Render.OutputFilename)
	}
	if res.Err != nil {
		os.Exit(2)
	}
}
