package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/invoice-extractor/internal/async"
	"github.com/joseph-ayodele/invoice-extractor/internal/export"
	"github.com/joseph-ayodele/invoice-extractor/internal/ingest"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	"github.com/joseph-ayodele/invoice-extractor/internal/sink"
)

// batch processes files under root and stores one rendered PDF per input.
type batch struct {
	root    string
	loader  ingest.Loader
	tracker *pipeline.Tracker
	sink    sink.Sink
	workers int
	timeout time.Duration // per file in watch mode; 0 = queue default
	logger  *slog.Logger
}

// run processes paths with at most b.workers files in flight. Entries keep
// the order of paths.
func (b *batch) run(ctx context.Context, paths []string) []export.Entry {
	entries := make([]export.Entry, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, p := range paths {
		g.Go(func() error {
			entries[i] = b.processFile(gctx, p)
			return nil
		})
	}
	_ = g.Wait()
	return entries
}

// watch processes every path received on paths until the channel closes,
// then drains the queue.
func (b *batch) watch(ctx context.Context, paths <-chan string) []export.Entry {
	var (
		mu      sync.Mutex
		entries []export.Entry
	)
	q := async.NewQueue(func(ctx context.Context, job async.Job) {
		e := b.processFile(ctx, job.Path)
		mu.Lock()
		entries = append(entries, e)
		mu.Unlock()
	}, b.logger,
		async.WithWorkers(b.workers),
		async.WithProcessTimeout(b.timeout),
	)
	for p := range paths {
		if err := q.Enqueue(ctx, async.Job{Path: p}); err != nil {
			b.logger.Warn("batch.enqueue.failed", "path", p, "err", err)
		}
	}
	q.Shutdown(context.Background())

	mu.Lock()
	defer mu.Unlock()
	return entries
}

func (b *batch) processFile(ctx context.Context, path string) export.Entry {
	f, err := b.loader.Load(ctx, path)
	if err != nil {
		b.logger.Error("batch.load.failed", "path", path, "err", err)
		return export.Entry{Filename: filepath.Base(path), Err: err}
	}

	res, jobID, err := b.tracker.Process(ctx, pipeline.Document{
		Filename: f.Filename,
		MIMEType: f.MIMEType,
		Content:  f.Content,
	})
	entry := export.Entry{Filename: f.Filename, Result: res, Err: err}
	if err != nil {
		b.logger.Error("batch.process.failed", "path", path, "err", err)
		return entry
	}
	if res.Err != nil {
		b.logger.Warn("batch.extract.partial", "path", path, "error_kind", string(res.ErrorKind()), "err", res.Err)
	}

	name := outputName(b.root, f.SourcePath)
	uri, err := b.sink.Put(ctx, name, "application/pdf", res.Document.Reader())
	if err != nil {
		b.logger.Error("batch.store.failed", "path", path, "name", name, "err", err)
		entry.Err = fmt.Errorf("store output: %w", err)
		return entry
	}
	entry.Output = uri
	b.tracker.RecordOutput(ctx, jobID, uri)
	b.logger.Info("batch.file.ok", "path", path, "output", uri, "fields", res.Fields.Len(), "items", len(res.Items))
	return entry
}

// outputName derives a flat, collision-free object name from path relative
// to root: "q1/acme.pdf" becomes "q1_acme_pdf.pdf".
func outputName(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(path)
	}
	rel = filepath.ToSlash(rel)
	r := strings.NewReplacer("/", "_", ".", "_", " ", "_")
	return r.Replace(rel) + ".pdf"
}
