package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/export"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/ingest"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	"github.com/joseph-ayodele/invoice-extractor/internal/render"
	repo "github.com/joseph-ayodele/invoice-extractor/internal/repository"
	"github.com/joseph-ayodele/invoice-extractor/internal/sink"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir        = flag.String("dir", "", "directory to process invoices from (required)")
		outTarget  = flag.String("out", "", "where rendered PDFs go: a directory or gs://bucket/prefix (defaults to OUTPUT_DIR / GCS_BUCKET)")
		xlsxOut    = flag.String("xlsx", "", "summary XLSX path (optional, defaults to parent directory)")
		workers    = flag.Int("workers", 4, "files processed in parallel")
		watchMode  = flag.Bool("watch", false, "keep running and process new files until interrupted")
		withHidden = flag.Bool("hidden", false, "include hidden files and directories")
		inmem      = flag.Bool("inmem", false, "record jobs in an in-memory SQLite ledger")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	root, err := filepath.Abs(*dir)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	if *xlsxOut == "" {
		*xlsxOut = filepath.Join(filepath.Dir(root), "invoices.xlsx")
	}
	if *workers < 1 {
		*workers = 1
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if *inmem {
		cfg.Database.Driver = "sqlite"
		cfg.Database.DSN = ":memory:"
	}
	if *outTarget != "" {
		st, err := sink.ParseTarget(*outTarget)
		if err != nil {
			printError("Error: invalid --out: %v\n", err)
			os.Exit(1)
		}
		cfg.Storage = st
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var jobs repo.ExtractJobRepository
	if cfg.LedgerEnabled() {
		db, err := repo.Open(ctx, repo.Config{
			Driver:           cfg.Database.Driver,
			DSN:              cfg.Database.DSN,
			MaxConns:         cfg.Database.MaxConns,
			MinConns:         cfg.Database.MinConns,
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
			DialTimeout:      cfg.Database.DialTimeout,
			StatementTimeout: cfg.Database.StatementTimeout,
		}, logger)
		if err != nil {
			logger.Error("failed to open job ledger", "error", err)
			os.Exit(1)
		}
		defer db.Close(logger)
		if err := repo.Migrate(ctx, db); err != nil {
			logger.Error("failed to migrate job ledger", "error", err)
			os.Exit(1)
		}
		jobs = repo.NewExtractJobRepository(db, logger)
	}

	out, err := sink.Open(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Error("failed to open output sink", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := out.Close(); err != nil {
			logger.Warn("failed to close output sink", "error", err)
		}
	}()

	ocrx := ocr.NewExtractor(ocr.Config{
		Tesseract:     cfg.OCR.TesseractBin,
		TesseractLang: cfg.OCR.TesseractLang,
		TessdataDir:   cfg.OCR.TessdataDir,
		PSM:           cfg.OCR.PSM,
		Timeout:       cfg.OCR.Timeout,
	}, logger)
	processor := pipeline.NewProcessor(logger,
		extract.NewDefaultRegistry(ocrx, logger),
		render.NewRenderer(cfg.Render.OutputFilename, logger),
	)

	b := &batch{
		root:    root,
		loader:  ingest.Loader{MaxBytes: int64(cfg.Server.MaxUploadBytes)},
		tracker: pipeline.NewTracker(processor, jobs, logger),
		sink:    out,
		workers: *workers,
		timeout: 2*cfg.OCR.Timeout + time.Minute,
		logger:  logger,
	}

	start := time.Now()
	var (
		entries []export.Entry
		stats   ingest.DirStats
	)
	if *watchMode {
		logger.Info("watching directory", "dir", root)
		paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       []string{root},
			InitialScan: true,
			SkipHidden:  !*withHidden,
			Debounce:    500 * time.Millisecond,
		}, logger)
		if err != nil {
			logger.Error("failed to start watcher", "error", err)
			os.Exit(1)
		}
		go func() {
			for err := range errs {
				logger.Warn("watcher error", "error", err)
			}
		}()
		entries = b.watch(ctx, paths)
		// the summary is written after interruption, on a fresh context
		ctx = context.Background()
	} else {
		results, st, err := ingest.ScanDirectory(root, !*withHidden)
		if err != nil {
			logger.Error("failed to scan directory", "error", err)
			os.Exit(1)
		}
		stats = st
		var paths []string
		for _, r := range results {
			if r.Err != "" {
				logger.Warn("skipping unreadable path", "path", r.SourcePath, "error", r.Err)
				continue
			}
			paths = append(paths, r.SourcePath)
		}
		logger.Info("scan complete", "scanned", stats.Scanned, "matched", stats.Matched, "skipped", stats.Skipped, "failed", stats.Failed)
		entries = b.run(ctx, paths)
	}

	xlsx, err := export.NewService(logger).InvoicesXLSX(entries)
	if err != nil {
		logger.Error("failed to build summary workbook", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*xlsxOut, xlsx, 0644); err != nil {
		logger.Error("failed to write summary workbook", "error", err)
		os.Exit(1)
	}

	var rendered, partial, failures int
	for _, e := range entries {
		switch {
		case e.Err != nil:
			failures++
		case e.Result.Err != nil:
			partial++
			rendered++
		default:
			rendered++
		}
	}

	recorded := 0
	if jobs != nil {
		if list, err := jobs.List(ctx, len(entries)); err == nil {
			recorded = len(list)
		} else {
			logger.Warn("failed to list recorded jobs", "error", err)
		}
	}

	logger.Info("batch processing complete",
		"files", len(entries),
		"rendered", rendered,
		"partial", partial,
		"failures", failures,
		"elapsed_ms", time.Since(start).Milliseconds(),
		"output_file", *xlsxOut)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files processed: %d\n", len(entries))
	fmt.Printf("- Documents rendered: %d\n", rendered)
	fmt.Printf("- With extraction errors: %d\n", partial)
	fmt.Printf("- Failures: %d\n", failures)
	if jobs != nil {
		fmt.Printf("- Jobs recorded: %d\n", recorded)
	}
	fmt.Printf("- Summary: %s\n", *xlsxOut)
	if failures > 0 {
		os.Exit(1)
	}
}
