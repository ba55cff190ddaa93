package pipeline

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/fields"
	"github.com/joseph-ayodele/invoice-extractor/internal/render"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

type stubExtractor struct {
	out   extract.Extraction
	err   error
	panic bool
}

func (s stubExtractor) Extract(context.Context, []byte, string) (extract.Extraction, error) {
	if s.panic {
		panic("corrupt xref")
	}
	return s.out, s.err
}

type failingRenderer struct{}

func (failingRenderer) Render(context.Context, *fields.Fields, []string) (*render.Document, error) {
	return nil, errors.New("disk full")
}

func newProcessor(x extract.Extractor) *Processor {
	reg := extract.NewRegistry(nil).
		Register(constants.PDF, x).
		Register(constants.WORD, x).
		Register(constants.IMAGE, x)
	return NewProcessor(nil, reg, render.NewRenderer("", nil))
}

func assertCanonical(t *testing.T, f *fields.Fields) {
	t.Helper()
	for _, name := range constants.CanonicalFields() {
		assert.True(t, f.Has(name), name)
	}
}

func TestProcess_Success(t *testing.T) {
	p := newProcessor(stubExtractor{out: extract.Extraction{
		Text:   "Invoice Number: 12345\nSold By: Acme Corp\nTime: 10:30",
		Tables: []extract.Table{{{"H1", "H2"}, {"A", "B"}, {"C", ""}}},
		Method: "pdf-text",
	}})

	res, err := p.Process(context.Background(), []byte("%PDF"), "application/pdf")
	require.NoError(t, err)
	assert.Nil(t, res.Err)
	assert.Empty(t, res.ErrorKind())

	v, _ := res.Fields.Get("Invoice Number")
	assert.Equal(t, "12345", v)
	v, _ = res.Fields.Get("Time")
	assert.Equal(t, "10:30", v)
	v, _ = res.Fields.Get("PAN No")
	assert.Equal(t, constants.Sentinel, v)
	assertCanonical(t, res.Fields)
	assert.Equal(t, 11, res.Fields.Len())

	assert.Equal(t, []string{"A, B", "C"}, res.Items)
	require.NotNil(t, res.Document)
	assert.True(t, bytes.HasPrefix(res.Document.Bytes(), []byte("%PDF")))
	assert.Equal(t, "invoice_output.pdf", res.Document.Name)
}

func TestProcess_UnsupportedFormat(t *testing.T) {
	p := newProcessor(stubExtractor{})

	res, err := p.Process(context.Background(), []byte("hello"), "text/plain")
	require.NoError(t, err)
	require.NotNil(t, res.Err)
	assert.Equal(t, common.KindUnsupportedFormat, res.ErrorKind())
	assert.True(t, errors.Is(res.Err, common.ErrUnsupportedFormat))

	assert.Equal(t, constants.CanonicalFields(), res.Fields.Keys())
	for _, v := range res.Fields.All() {
		assert.Equal(t, constants.Sentinel, v)
	}
	assert.Empty(t, res.Items)
	assert.NotNil(t, res.Document, "rendering still runs")
}

func TestProcess_ExtractionFailedKeepsPartialData(t *testing.T) {
	p := newProcessor(stubExtractor{
		out: extract.Extraction{Text: "Invoice Number: 7"},
		err: errors.New("page 3: bad stream"),
	})

	res, err := p.Process(context.Background(), nil, constants.MIMEDocx)
	require.NoError(t, err)
	assert.Equal(t, common.KindExtractionFailed, res.ErrorKind())
	assert.Equal(t, "An error occurred: page 3: bad stream", res.ErrorMessage())
	v, _ := res.Fields.Get("Invoice Number")
	assert.Equal(t, "7", v)
	assertCanonical(t, res.Fields)
	assert.NotNil(t, res.Document)
}

func TestProcess_ExtractorPanic(t *testing.T) {
	p := newProcessor(stubExtractor{panic: true})

	res, err := p.Process(context.Background(), nil, constants.MIMEPNG)
	require.NoError(t, err)
	assert.Equal(t, common.KindExtractionFailed, res.ErrorKind())
	assert.Contains(t, res.ErrorMessage(), "corrupt xref")
	assertCanonical(t, res.Fields)
}

func TestProcess_RenderFailure(t *testing.T) {
	reg := extract.NewRegistry(nil).Register(constants.PDF, stubExtractor{})
	p := NewProcessor(nil, reg, failingRenderer{})

	res, err := p.Process(context.Background(), nil, constants.MIMEPDF)
	require.Error(t, err)
	assert.EqualError(t, err, "render: disk full")
	assert.Nil(t, res.Document)
	assertCanonical(t, res.Fields)
}

func TestProcess_RenderErrorPrefixedOnce(t *testing.T) {
	p := newProcessor(stubExtractor{out: extract.Extraction{Text: "Invoice Number: 7"}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Process(ctx, nil, constants.MIMEPDF)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, strings.Count(err.Error(), "render:"), err.Error())
}

func TestResult_Display(t *testing.T) {
	f := fields.Parse("Invoice Number: 1")
	res := Result{Fields: f, Items: []string{"A, B"}}

	var buf strings.Builder
	require.NoError(t, res.Display(&buf))
	assert.Equal(t, "Extracted Invoice Details\nInvoice Number: 1\n\nInvoice Items\nItem 1: A, B\n", buf.String())

	res = Result{Fields: fields.New(), Err: common.NewUnsupportedFormat("text/plain")}
	buf.Reset()
	require.NoError(t, res.Display(&buf))
	assert.True(t, strings.HasPrefix(buf.String(), "Error: unsupported file type \"text/plain\""))
	assert.Contains(t, buf.String(), "(none)")
}

func TestTracker(t *testing.T) {
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{Driver: "sqlite", DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })
	require.NoError(t, repository.Migrate(ctx, db))
	jobs := repository.NewExtractJobRepository(db, nil)

	tr := NewTracker(newProcessor(stubExtractor{out: extract.Extraction{Text: "Invoice Number: 9", Method: "pdf-text"}}), jobs, nil)
	res, jobID, err := tr.Process(ctx, Document{Filename: "a.pdf", MIMEType: constants.MIMEPDF, Content: []byte("%PDF")})
	require.NoError(t, err)
	require.NotNil(t, res.Document)

	tr.RecordOutput(ctx, jobID, "file:///tmp/a.pdf")

	job, err := jobs.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", job.Filename)
	assert.Equal(t, string(constants.JobStatusRendered), job.Status)
	assert.Equal(t, 10, job.FieldCount)
	assert.Len(t, job.ContentHash, 64)
	require.NotNil(t, job.OutputURI)
	assert.Equal(t, "file:///tmp/a.pdf", *job.OutputURI)
	assert.Contains(t, string(job.FieldsJSON), `"Invoice Number":"9"`)

	unsupported, jobID2, err := tr.Process(ctx, Document{Filename: "n.txt", MIMEType: "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, common.KindUnsupportedFormat, unsupported.ErrorKind())
	job, err = jobs.Get(ctx, jobID2)
	require.NoError(t, err)
	require.NotNil(t, job.ErrorKind)
	assert.Equal(t, "UnsupportedFormat", *job.ErrorKind)
}

func TestTracker_NoLedger(t *testing.T) {
	tr := NewTracker(newProcessor(stubExtractor{}), nil, nil)
	res, jobID, err := tr.Process(context.Background(), Document{Filename: "x.pdf", MIMEType: constants.MIMEPDF})
	require.NoError(t, err)
	assert.Equal(t, "00000000-0000-0000-0000-000000000000", jobID.String())
	assert.NotNil(t, res.Document)
	tr.RecordOutput(context.Background(), jobID, "ignored")
}
