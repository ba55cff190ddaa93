package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GCSSink writes objects to a bucket. Objects are created only if absent, so
// reruns over the same inputs leave existing outputs untouched.
type GCSSink struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
	prefix string
	logger *slog.Logger
}

func NewGCSSink(ctx context.Context, bucket, prefix string, logger *slog.Logger) (*GCSSink, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	s := NewGCSSinkFromClient(client, bucket, prefix, logger)
	return s, nil
}

// NewGCSSinkFromClient wraps an existing client; Close closes it.
func NewGCSSinkFromClient(client *storage.Client, bucket, prefix string, logger *slog.Logger) *GCSSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &GCSSink{
		client: client,
		bucket: client.Bucket(bucket),
		name:   bucket,
		prefix: prefix,
		logger: logger,
	}
}

// ObjectName joins the sink prefix and name.
func (s *GCSSink) ObjectName(name string) string {
	return objectName(s.prefix, name)
}

func objectName(prefix, name string) string {
	if prefix == "" {
		return path.Base(name)
	}
	return path.Join(prefix, path.Base(name))
}

func (s *GCSSink) Put(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	obj := s.ObjectName(name)
	uri := fmt.Sprintf("gs://%s/%s", s.name, obj)

	w := s.bucket.Object(obj).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		if alreadyExists(err) {
			s.logger.Info("sink.gcs.exists", "object", uri)
			return uri, nil
		}
		s.logger.Error("sink.gcs.write_failed", "object", uri, "error", err)
		return "", fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		if alreadyExists(err) {
			s.logger.Info("sink.gcs.exists", "object", uri)
			return uri, nil
		}
		s.logger.Error("sink.gcs.close_failed", "object", uri, "error", err)
		return "", fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	s.logger.Debug("sink.gcs.ok", "object", uri)
	return uri, nil
}

func (s *GCSSink) Close() error {
	return s.client.Close()
}

// alreadyExists reports a failed DoesNotExist precondition.
func alreadyExists(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
