// Package ingest discovers invoice files on disk and loads them for processing.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// File is a document loaded into memory.
type File struct {
	SourcePath string
	Filename   string
	FileExt    string
	MIMEType   string
	HashHex    string
	Size       int64
	ModTime    time.Time
	Content    []byte
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Skipped uint32
	Failed  uint32
}

// ScanResult is one matched path, or a walk error for it.
type ScanResult struct {
	SourcePath string
	Err        string
}

// Loader reads files from the local filesystem.
type Loader struct {
	MaxBytes int64 // 0 = no limit
}

// Load reads path, hashes it and detects its MIME type.
func (l Loader) Load(ctx context.Context, path string) (File, error) {
	if err := ctx.Err(); err != nil {
		return File{}, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return File{}, fmt.Errorf("abs path: %w", err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return File{}, fmt.Errorf("stat: %w", err)
	}
	if st.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", abs)
	}
	if l.MaxBytes > 0 && st.Size() > l.MaxBytes {
		return File{}, fmt.Errorf("file too large: %d bytes (max %d)", st.Size(), l.MaxBytes)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return File{}, fmt.Errorf("read: %w", err)
	}

	sum := sha256.Sum256(content)
	return File{
		SourcePath: abs,
		Filename:   filepath.Base(abs),
		FileExt:    constants.NormalizeExt(filepath.Ext(abs)),
		MIMEType:   DetectMIME(content, abs),
		HashHex:    hex.EncodeToString(sum[:]),
		Size:       st.Size(),
		ModTime:    st.ModTime(),
		Content:    content,
	}, nil
}

// DetectMIME sniffs content. When the sniffed type is not one the pipeline
// handles (zip containers, OLE storage) the file extension decides instead.
func DetectMIME(content []byte, filename string) string {
	detected := constants.NormalizeMIME(mimetype.Detect(content).String())
	if constants.MapMIMEToFormat(detected) != "" {
		return detected
	}
	if byExt := constants.MIMEForExt(filepath.Ext(filename)); byExt != "" {
		return byExt
	}
	return detected
}
