package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

var (
	pdfBytes = []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")
	pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}
	zipBytes = []byte{'P', 'K', 0x03, 0x04, 0x14, 0, 0, 0, 0, 0}
)

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o600))
}

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.pdf"), pdfBytes)
	writeFile(t, filepath.Join(root, "b.PNG"), pngBytes)
	writeFile(t, filepath.Join(root, "notes.txt"), []byte("hello"))
	writeFile(t, filepath.Join(root, ".d.pdf"), pdfBytes)
	writeFile(t, filepath.Join(root, ".hidden", "c.pdf"), pdfBytes)
	writeFile(t, filepath.Join(root, "sub", "e.docx"), zipBytes)

	results, stats, err := ScanDirectory(root, true)
	require.NoError(t, err)

	var got []string
	for _, r := range results {
		assert.Empty(t, r.Err)
		rel, _ := filepath.Rel(root, r.SourcePath)
		got = append(got, rel)
	}
	sort.Strings(got)
	assert.Equal(t, []string{"a.pdf", "b.PNG", filepath.Join("sub", "e.docx")}, got)
	assert.Equal(t, uint32(3), stats.Matched)
	assert.Zero(t, stats.Failed)

	all, _, err := ScanDirectory(root, false)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	_, _, err = ScanDirectory("  ", true)
	assert.Error(t, err)
}

func TestLoader_Load(t *testing.T) {
	root := t.TempDir()
	tests := []struct {
		name     string
		content  []byte
		wantMIME string
	}{
		{"invoice.pdf", pdfBytes, constants.MIMEPDF},
		{"scan.png", pngBytes, constants.MIMEPNG},
		{"letter.docx", zipBytes, constants.MIMEDocx},
		{"renamed.jpg", pdfBytes, constants.MIMEPDF},
		{"notes.txt", []byte("Invoice Number: 1\n"), "text/plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(root, tt.name)
			writeFile(t, path, tt.content)

			f, err := Loader{}.Load(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMIME, f.MIMEType)
			assert.Equal(t, tt.name, f.Filename)
			assert.Len(t, f.HashHex, 64)
			assert.Equal(t, int64(len(tt.content)), f.Size)
			assert.Equal(t, tt.content, f.Content)
		})
	}
}

func TestLoader_Errors(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "big.pdf")
	writeFile(t, path, pdfBytes)

	_, err := Loader{MaxBytes: 4}.Load(context.Background(), path)
	assert.ErrorContains(t, err, "too large")

	_, err = Loader{}.Load(context.Background(), filepath.Join(root, "missing.pdf"))
	assert.Error(t, err)

	_, err = Loader{}.Load(context.Background(), root)
	assert.ErrorContains(t, err, "directory")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Loader{}.Load(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsHidden(t *testing.T) {
	assert.True(t, IsHidden("/x/.git"))
	assert.False(t, IsHidden("/x/a.pdf"))
	assert.False(t, IsHidden("."))
}

func TestStartWatcher(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "existing.pdf"), pdfBytes)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, SkipHidden: true}, nil)
	require.NoError(t, err)

	next := func() string {
		select {
		case p := <-events:
			return p
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for watcher event")
			return ""
		}
	}
	assert.Equal(t, "existing.pdf", filepath.Base(next()))

	writeFile(t, filepath.Join(root, "ignored.txt"), []byte("x"))
	writeFile(t, filepath.Join(root, "new.jpg"), []byte("jpg"))
	assert.Equal(t, "new.jpg", filepath.Base(next()))

	cancel()
	for range events {
	}
}

func TestStartWatcher_NoRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{}, nil)
	assert.Error(t, err)
}
