package ocr

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name string
	args []string
}

type stubRunner struct {
	mu    sync.Mutex
	calls []call
	run   func(name string, args []string) ([]byte, []byte, error)
}

func (s *stubRunner) Run(_ context.Context, name string, _ *slog.Logger, args ...string) ([]byte, []byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, call{name: name, args: args})
	s.mu.Unlock()
	return s.run(name, args)
}

func TestExtractImage(t *testing.T) {
	var sawInput bool
	r := &stubRunner{run: func(name string, args []string) ([]byte, []byte, error) {
		b, err := os.ReadFile(args[0])
		sawInput = err == nil && string(b) == "fake-png"
		return []byte("Invoice Number:\t12345\r\n\n\n\nSold By:  Acme Corp  \n-----\n"), nil, nil
	}}
	e := NewExtractorWithRunner(Config{TesseractLang: "eng", PSM: 6}, r, nil)

	res, err := e.ExtractImage(context.Background(), []byte("fake-png"), "png")
	require.NoError(t, err)
	assert.True(t, sawInput, "tesseract should receive the spooled image")
	assert.Equal(t, "Invoice Number: 12345\n\nSold By: Acme Corp", res.Text)
	assert.Equal(t, "image-ocr", res.Method)
	assert.Equal(t, 1, res.Pages)

	require.Len(t, r.calls, 1)
	assert.Equal(t, "tesseract", r.calls[0].name)
	assert.Equal(t, []string{"stdout", "-l", "eng", "--psm", "6"}, r.calls[0].args[1:])
	assert.Equal(t, ".png", filepath.Ext(r.calls[0].args[0]))
	_, statErr := os.Stat(r.calls[0].args[0])
	assert.True(t, os.IsNotExist(statErr), "temp file should be removed")
}

func TestExtractImage_RunnerError(t *testing.T) {
	r := &stubRunner{run: func(string, []string) ([]byte, []byte, error) {
		return nil, []byte("read_params_file: Can't open eng"), errors.New("exit status 1")
	}}
	e := NewExtractorWithRunner(Config{}, r, nil)

	_, err := e.ExtractImage(context.Background(), []byte("x"), "jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tesseract")
}

func TestExtractImage_TSVConfidence(t *testing.T) {
	tsv := "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
		"1\t1\t0\t0\t0\t0\t0\t0\t100\t100\t-1\t\n" +
		"5\t1\t1\t1\t1\t1\t0\t0\t10\t10\t90\tInvoice\n" +
		"5\t1\t1\t1\t1\t2\t0\t0\t10\t10\t70\tNumber\n"
	r := &stubRunner{run: func(_ string, args []string) ([]byte, []byte, error) {
		if args[len(args)-1] == "tsv" {
			return []byte(tsv), nil, nil
		}
		return []byte("Invoice Number: 1"), nil, nil
	}}
	e := NewExtractorWithRunner(Config{EnableTSVConfidence: true}, r, nil)

	res, err := e.ExtractImage(context.Background(), []byte("x"), "png")
	require.NoError(t, err)
	assert.InDelta(t, 0.8, res.Confidence, 0.0001)
	assert.Len(t, r.calls, 2)
}

func TestExtractScannedPDF(t *testing.T) {
	r := &stubRunner{run: func(name string, args []string) ([]byte, []byte, error) {
		if name == "pdftoppm" {
			prefix := args[len(args)-1]
			for _, p := range []string{"-1.png", "-2.png"} {
				if err := os.WriteFile(prefix+p, []byte("img"), 0o600); err != nil {
					return nil, nil, err
				}
			}
			return nil, nil, nil
		}
		return []byte("page " + filepath.Base(args[0])), nil, nil
	}}
	e := NewExtractorWithRunner(Config{DPI: 150}, r, nil)

	res, err := e.ExtractScannedPDF(context.Background(), []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, "page page-1.png\npage page-2.png", res.Text)
	assert.Equal(t, "pdf-ocr", res.Method)
	assert.Equal(t, []string{"-r", "150", "-png"}, r.calls[0].args[:3])
}

func TestExtractScannedPDF_NoPages(t *testing.T) {
	r := &stubRunner{run: func(string, []string) ([]byte, []byte, error) { return nil, nil, nil }}
	e := NewExtractorWithRunner(Config{}, r, nil)

	_, err := e.ExtractScannedPDF(context.Background(), []byte("%PDF-1.4"))
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"empty", "", ""},
		{"crlf and tabs", "A:\t1\r\nB:  2 ", "A: 1\nB: 2"},
		{"blank runs", "A\n\n\n\n\nB", "A\n\nB"},
		{"digits untouched", "Order Date: 01/02/2024", "Order Date: 01/02/2024"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...(truncated)", truncate("abcdef", 2))
}

func TestExecRunner_MissingBinary(t *testing.T) {
	_, _, err := execRunner{}.Run(context.Background(), "no-such-ocr-tool-for-tests", slog.Default(), "--version")
	require.Error(t, err)
	assert.ErrorIs(t, err, exec.ErrNotFound)
	assert.Contains(t, err.Error(), "not installed")
}
