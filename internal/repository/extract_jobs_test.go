package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, Config{Driver: "sqlite", DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })
	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, Migrate(ctx, db), "migrate should be idempotent")
	return db
}

func newTestRepo(t *testing.T) *extractJobRepo {
	t.Helper()
	repo := NewExtractJobRepository(openTestDB(t), nil).(*extractJobRepo)
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return repo
}

func TestExtractJobRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	job, err := repo.Start(ctx, StartJob{Filename: "inv.pdf", MIMEType: constants.MIMEPDF, ContentHash: "abc"})
	require.NoError(t, err)
	assert.Equal(t, constants.PDF, job.Format)
	assert.Equal(t, string(constants.JobStatusRunning), job.Status)

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, "inv.pdf", got.Filename)
	assert.True(t, job.StartedAt.Equal(got.StartedAt))
	assert.Nil(t, got.FinishedAt)
	assert.Nil(t, got.ErrorKind)

	err = repo.Finish(ctx, job.ID, JobOutcome{
		ErrorKind:    "ExtractionFailed",
		ErrorMessage: "An error occurred: boom",
		Method:       "pdf-text",
		FieldCount:   10,
		ItemCount:    2,
		Fields:       json.RawMessage(`{"Invoice Number":"1"}`),
	})
	require.NoError(t, err)
	require.NoError(t, repo.SetOutputURI(ctx, job.ID, "file:///out/inv.pdf"))

	got, err = repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusRendered), got.Status)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, got.FinishedAt.After(got.StartedAt))
	require.NotNil(t, got.ErrorKind)
	assert.Equal(t, "ExtractionFailed", *got.ErrorKind)
	require.NotNil(t, got.Method)
	assert.Equal(t, "pdf-text", *got.Method)
	assert.Equal(t, 10, got.FieldCount)
	assert.Equal(t, 2, got.ItemCount)
	require.NotNil(t, got.OutputURI)
	assert.Equal(t, "file:///out/inv.pdf", *got.OutputURI)
	assert.JSONEq(t, `{"Invoice Number":"1"}`, string(got.FieldsJSON))
}

func TestExtractJobRepository_Failed(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	job, err := repo.Start(ctx, StartJob{Filename: "notes.txt", MIMEType: "text/plain"})
	require.NoError(t, err)
	assert.Empty(t, job.Format)

	require.NoError(t, repo.Finish(ctx, job.ID, JobOutcome{Failed: true, ErrorMessage: "render failed"}))
	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusFailed), got.Status)
	assert.Nil(t, got.OutputURI)
	assert.Nil(t, got.FieldsJSON)
}

func TestExtractJobRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.Get(ctx, uuid.New())
	assert.True(t, IsNotFound(err))

	err = repo.Finish(ctx, uuid.New(), JobOutcome{})
	assert.True(t, IsNotFound(err))
}

func TestExtractJobRepository_List(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	var ids []uuid.UUID
	for _, name := range []string{"a.pdf", "b.docx", "c.png"} {
		job, err := repo.Start(ctx, StartJob{Filename: name, MIMEType: constants.MIMEForExt(name[2:])})
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}

	jobs, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, ids[2], jobs[0].ID)
	assert.Equal(t, ids[1], jobs[1].ID)
	assert.Equal(t, constants.IMAGE, jobs[0].Format)

	all, err := repo.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql"}, nil)
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, db.HealthCheck(context.Background(), time.Second, nil))
}
