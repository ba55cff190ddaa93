// Package sink stores rendered documents on local disk or in Google Cloud Storage.
package sink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// Sink stores one named object and returns its URI.
type Sink interface {
	Put(ctx context.Context, name, contentType string, r io.Reader) (string, error)
	Close() error
}

// Open picks the sink for cfg: GCS when a bucket is set, the local directory otherwise.
func Open(ctx context.Context, cfg common.StorageConfig, logger *slog.Logger) (Sink, error) {
	if cfg.GCSBucket != "" {
		return NewGCSSink(ctx, cfg.GCSBucket, cfg.GCSPrefix, logger)
	}
	return NewLocalSink(cfg.LocalDir, logger)
}

// ParseTarget splits an output target into a storage config. "gs://bucket/prefix"
// selects GCS; anything else is a local directory.
func ParseTarget(target string) (common.StorageConfig, error) {
	if !strings.HasPrefix(target, "gs://") {
		return common.StorageConfig{LocalDir: target}, nil
	}
	u, err := url.Parse(target)
	if err != nil {
		return common.StorageConfig{}, fmt.Errorf("parse %q: %w", target, err)
	}
	if u.Host == "" {
		return common.StorageConfig{}, fmt.Errorf("missing bucket in %q", target)
	}
	return common.StorageConfig{GCSBucket: u.Host, GCSPrefix: strings.Trim(u.Path, "/")}, nil
}

// LocalSink writes files under a directory.
type LocalSink struct {
	dir    string
	logger *slog.Logger
}

func NewLocalSink(dir string, logger *slog.Logger) (*LocalSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &LocalSink{dir: abs, logger: logger}, nil
}

// Put writes r to dir/name through a temp file and rename, replacing any existing file.
func (s *LocalSink) Put(ctx context.Context, name, _ string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dst := filepath.Join(s.dir, filepath.Base(name))
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	s.logger.Debug("sink.local.ok", "path", dst)
	return dst, nil
}

func (s *LocalSink) Close() error { return nil }
