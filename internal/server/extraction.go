package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/ingest"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
)

type ExtractionService struct {
	tracker  *pipeline.Tracker
	maxBytes int
	logger   *slog.Logger
}

// NewExtractionService serves Extract over tracker. maxUploadBytes <= 0
// disables the size check.
func NewExtractionService(tracker *pipeline.Tracker, maxUploadBytes int, logger *slog.Logger) *ExtractionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractionService{tracker: tracker, maxBytes: maxUploadBytes, logger: logger}
}

// Extract implements ExtractionServer.
func (s *ExtractionService) Extract(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx, rid := common.EnsureRequestID(ctx)
	start := time.Now()

	in, err := decodeRequest(req)
	if err != nil {
		s.logger.Warn("extract.request.invalid", "request_id", rid, "err", err)
		return nil, common.InvalidArgumentError(err.Error())
	}
	if s.maxBytes > 0 && len(in.Content) > s.maxBytes {
		s.logger.Warn("extract.request.too_large", "request_id", rid, "size", len(in.Content), "max", s.maxBytes)
		return nil, common.InvalidArgumentErrorf("content is %d bytes, limit is %d", len(in.Content), s.maxBytes)
	}

	mimeType := in.MIMEType
	if mimeType == "" {
		mimeType = ingest.DetectMIME(in.Content, in.Filename)
	}
	s.logger.Info("extract.request", "request_id", rid, "filename", in.Filename, "mime_type", mimeType, "size", len(in.Content))

	res, jobID, err := s.tracker.Process(ctx, pipeline.Document{
		Filename: in.Filename,
		MIMEType: mimeType,
		Content:  in.Content,
	})
	if err != nil {
		s.logger.Error("extract.render.failed", "request_id", rid, "err", err)
		return nil, common.InternalErrorf("output document: %v", err)
	}

	out, err := encodeResponse(res, jobID)
	if err != nil {
		s.logger.Error("extract.response.encode_failed", "request_id", rid, "err", err)
		return nil, common.InternalError("encode response")
	}
	s.logger.Info("extract.ok",
		"request_id", rid,
		"error_kind", string(res.ErrorKind()),
		"fields", res.Fields.Len(),
		"items", len(res.Items),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
