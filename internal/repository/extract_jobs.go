package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

const (
	jobsTable = "extract_jobs"

	// fixed width so lexical order matches time order
	timeLayout = "2006-01-02T15:04:05.000000Z07:00"
)

var jobColumns = []string{
	"id", "filename", "mime_type", "format", "content_hash", "status",
	"started_at", "finished_at", "error_kind", "error_message", "method",
	"field_count", "item_count", "output_uri", "fields_json",
}

// StartJob describes a document entering the pipeline.
type StartJob struct {
	Filename    string
	MIMEType    string
	ContentHash string
}

// JobOutcome is what the pipeline reports when a document is done.
type JobOutcome struct {
	ErrorKind    string
	ErrorMessage string
	Method       string
	FieldCount   int
	ItemCount    int
	OutputURI    string
	Fields       json.RawMessage
	Failed       bool // the document could not be rendered at all
}

type ExtractJobRepository interface {
	Start(ctx context.Context, in StartJob) (*entity.ExtractJob, error)
	Finish(ctx context.Context, jobID uuid.UUID, out JobOutcome) error
	SetOutputURI(ctx context.Context, jobID uuid.UUID, uri string) error
	Get(ctx context.Context, jobID uuid.UUID) (*entity.ExtractJob, error)
	List(ctx context.Context, limit int) ([]*entity.ExtractJob, error)
}

type extractJobRepo struct {
	db  *DB
	log *slog.Logger
	now func() time.Time
}

func NewExtractJobRepository(db *DB, log *slog.Logger) ExtractJobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &extractJobRepo{db: db, log: log, now: time.Now}
}

// createJobsTable is plain DDL accepted by both SQLite and Postgres.
const createJobsTable = `CREATE TABLE IF NOT EXISTS extract_jobs (
	id            TEXT PRIMARY KEY,
	filename      TEXT NOT NULL,
	mime_type     TEXT NOT NULL,
	format        TEXT NOT NULL,
	content_hash  TEXT NOT NULL,
	status        TEXT NOT NULL,
	started_at    TEXT NOT NULL,
	finished_at   TEXT,
	error_kind    TEXT,
	error_message TEXT,
	method        TEXT,
	field_count   INTEGER NOT NULL DEFAULT 0,
	item_count    INTEGER NOT NULL DEFAULT 0,
	output_uri    TEXT,
	fields_json   TEXT
)`

const createJobsStartedIndex = `CREATE INDEX IF NOT EXISTS extract_jobs_started_at_idx ON extract_jobs (started_at)`

// Migrate creates the extract_jobs table and its index when they do not exist.
func Migrate(ctx context.Context, db *DB) error {
	for _, stmt := range []string{createJobsTable, createJobsStartedIndex} {
		if err := db.Driver.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("migrate %s: %w", jobsTable, err)
		}
	}
	return nil
}

func (r *extractJobRepo) Start(ctx context.Context, in StartJob) (*entity.ExtractJob, error) {
	job := &entity.ExtractJob{
		ID:          uuid.New(),
		Filename:    in.Filename,
		MIMEType:    in.MIMEType,
		Format:      constants.MapMIMEToFormat(in.MIMEType),
		ContentHash: in.ContentHash,
		Status:      string(constants.JobStatusRunning),
		StartedAt:   r.now().UTC(),
	}
	q, args := entsql.Dialect(r.db.Dialect).
		Insert(jobsTable).
		Columns("id", "filename", "mime_type", "format", "content_hash", "status", "started_at").
		Values(job.ID.String(), job.Filename, job.MIMEType, job.Format, job.ContentHash, job.Status, job.StartedAt.Format(timeLayout)).
		Query()
	if err := r.db.Driver.Exec(ctx, q, args, nil); err != nil {
		r.log.Error("extract_job start failed", "filename", in.Filename, "err", err)
		return nil, common.NewAppError("DB_ERROR", "start extract job", err)
	}
	r.log.Info("extract_job started", "job_id", job.ID, "filename", in.Filename, "format", job.Format)
	return job, nil
}

func (r *extractJobRepo) Finish(ctx context.Context, jobID uuid.UUID, out JobOutcome) error {
	status := constants.JobStatusRendered
	if out.Failed {
		status = constants.JobStatusFailed
	}
	u := entsql.Dialect(r.db.Dialect).
		Update(jobsTable).
		Set("status", string(status)).
		Set("finished_at", r.now().UTC().Format(timeLayout)).
		Set("field_count", out.FieldCount).
		Set("item_count", out.ItemCount).
		Set("error_kind", nullable(out.ErrorKind)).
		Set("error_message", nullable(out.ErrorMessage)).
		Set("method", nullable(out.Method)).
		Set("fields_json", nullable(string(out.Fields))).
		Where(entsql.EQ("id", jobID.String()))
	if out.OutputURI != "" {
		u.Set("output_uri", out.OutputURI)
	}
	if err := r.execOne(ctx, u); err != nil {
		r.log.Error("extract_job finish failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Info("extract_job finished", "job_id", jobID, "status", status, "error_kind", out.ErrorKind)
	return nil
}

func (r *extractJobRepo) SetOutputURI(ctx context.Context, jobID uuid.UUID, uri string) error {
	u := entsql.Dialect(r.db.Dialect).
		Update(jobsTable).
		Set("output_uri", uri).
		Where(entsql.EQ("id", jobID.String()))
	return r.execOne(ctx, u)
}

func (r *extractJobRepo) execOne(ctx context.Context, u *entsql.UpdateBuilder) error {
	q, args := u.Query()
	var res sql.Result
	if err := r.db.Driver.Exec(ctx, q, args, &res); err != nil {
		return common.NewAppError("DB_ERROR", "update extract job", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.NewAppError("DB_ERROR", "update extract job", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *extractJobRepo) Get(ctx context.Context, jobID uuid.UUID) (*entity.ExtractJob, error) {
	b := entsql.Dialect(r.db.Dialect)
	q, args := b.Select(jobColumns...).
		From(b.Table(jobsTable)).
		Where(entsql.EQ("id", jobID.String())).
		Query()
	jobs, err := r.query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, common.ErrNotFound
	}
	return jobs[0], nil
}

// List returns the most recently started jobs first.
func (r *extractJobRepo) List(ctx context.Context, limit int) ([]*entity.ExtractJob, error) {
	if limit <= 0 {
		limit = 50
	}
	b := entsql.Dialect(r.db.Dialect)
	q, args := b.Select(jobColumns...).
		From(b.Table(jobsTable)).
		OrderBy(entsql.Desc("started_at")).
		Limit(limit).
		Query()
	return r.query(ctx, q, args)
}

func (r *extractJobRepo) query(ctx context.Context, q string, args []any) ([]*entity.ExtractJob, error) {
	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, q, args, &rows); err != nil {
		return nil, common.NewAppError("DB_ERROR", "query extract jobs", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*entity.ExtractJob
	for rows.Next() {
		job, err := scanJob(&rows)
		if err != nil {
			return nil, common.NewAppError("DB_ERROR", "scan extract job", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("DB_ERROR", "iterate extract jobs", err)
	}
	return out, nil
}

func scanJob(rows *entsql.Rows) (*entity.ExtractJob, error) {
	var (
		id, startedAt                       string
		finishedAt, errKind, errMsg, method sql.NullString
		outputURI, fieldsJSON               sql.NullString
		job                                 entity.ExtractJob
	)
	if err := rows.Scan(
		&id, &job.Filename, &job.MIMEType, &job.Format, &job.ContentHash, &job.Status,
		&startedAt, &finishedAt, &errKind, &errMsg, &method,
		&job.FieldCount, &job.ItemCount, &outputURI, &fieldsJSON,
	); err != nil {
		return nil, err
	}

	var err error
	if job.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if job.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		t, err := time.Parse(timeLayout, finishedAt.String)
		if err != nil {
			return nil, err
		}
		job.FinishedAt = &t
	}
	job.ErrorKind = stringPtr(errKind)
	job.ErrorMessage = stringPtr(errMsg)
	job.Method = stringPtr(method)
	job.OutputURI = stringPtr(outputURI)
	if fieldsJSON.Valid && fieldsJSON.String != "" {
		job.FieldsJSON = json.RawMessage(fieldsJSON.String)
	}
	return &job, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// IsNotFound reports whether err means the job does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}
