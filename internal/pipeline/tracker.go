package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

// Document is an uploaded file waiting to be processed.
type Document struct {
	Filename string
	MIMEType string
	Content  []byte
}

// Tracker records every processed document in the extract_jobs ledger.
// A nil repository turns it into a plain pass-through.
type Tracker struct {
	processor *Processor
	jobs      repository.ExtractJobRepository
	logger    *slog.Logger
}

func NewTracker(p *Processor, jobs repository.ExtractJobRepository, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{processor: p, jobs: jobs, logger: logger}
}

// Process runs the pipeline over doc and returns the result with its job ID
// (uuid.Nil when no ledger is configured). Ledger write failures are logged,
// never returned.
func (t *Tracker) Process(ctx context.Context, doc Document) (Result, uuid.UUID, error) {
	ctx = common.WithFilename(ctx, doc.Filename)
	if t.jobs == nil {
		res, err := t.processor.Process(ctx, doc.Content, doc.MIMEType)
		return res, uuid.Nil, err
	}

	sum := sha256.Sum256(doc.Content)
	job, err := t.jobs.Start(ctx, repository.StartJob{
		Filename:    doc.Filename,
		MIMEType:    doc.MIMEType,
		ContentHash: hex.EncodeToString(sum[:]),
	})
	jobID := uuid.Nil
	if err != nil {
		t.logger.Warn("pipeline.ledger.start_failed", "filename", doc.Filename, "err", err)
	} else {
		jobID = job.ID
	}

	res, perr := t.processor.Process(ctx, doc.Content, doc.MIMEType)
	if jobID == uuid.Nil {
		return res, jobID, perr
	}

	out := repository.JobOutcome{
		ErrorKind:    string(res.ErrorKind()),
		ErrorMessage: res.ErrorMessage(),
		Method:       res.Method,
		FieldCount:   res.Fields.Len(),
		ItemCount:    len(res.Items),
		Failed:       perr != nil,
	}
	if perr != nil {
		out.ErrorMessage = perr.Error()
	}
	if b, err := json.Marshal(res.Fields); err == nil {
		out.Fields = b
	}
	if err := t.jobs.Finish(ctx, jobID, out); err != nil {
		t.logger.Warn("pipeline.ledger.finish_failed", "job_id", jobID, "err", err)
	}
	return res, jobID, perr
}

// RecordOutput stores where the rendered document was written.
func (t *Tracker) RecordOutput(ctx context.Context, jobID uuid.UUID, uri string) {
	if t.jobs == nil || jobID == uuid.Nil {
		return
	}
	if err := t.jobs.SetOutputURI(ctx, jobID, uri); err != nil {
		t.logger.Warn("pipeline.ledger.output_failed", "job_id", jobID, "err", err)
	}
}
