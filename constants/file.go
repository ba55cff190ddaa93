package constants

import "strings"

// Document formats understood by the extractors.
const (
	PDF   = "PDF"
	WORD  = "WORD"
	IMAGE = "IMAGE"
)

// FileTypes holds the allowed values for the format column of extract_jobs.
var FileTypes = []string{PDF, WORD, IMAGE}

// Accepted upload MIME types.
const (
	MIMEPDF      = "application/pdf"
	MIMEDocx     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEMSWord   = "application/msword"
	MIMEPNG      = "image/png"
	MIMEJPEG     = "image/jpeg"
	MIMEJPG      = "image/jpg"
	MIMEFallback = "application/octet-stream"
)

// DefaultOutputFilename is the name offered for the rendered document.
const DefaultOutputFilename = "invoice_output.pdf"

var mimeFormats = map[string]string{
	MIMEPDF:    PDF,
	MIMEDocx:   WORD,
	MIMEMSWord: WORD,
	MIMEPNG:    IMAGE,
	MIMEJPEG:   IMAGE,
	MIMEJPG:    IMAGE,
}

// AllowedExtensions holds the default allowed file extensions for batch ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"docx": {},
	"doc":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

var extMIME = map[string]string{
	"pdf":  MIMEPDF,
	"docx": MIMEDocx,
	"doc":  MIMEMSWord,
	"png":  MIMEPNG,
	"jpg":  MIMEJPEG,
	"jpeg": MIMEJPEG,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// NormalizeMIME lowercases a MIME type and drops any parameters ("; charset=...").
func NormalizeMIME(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// MapMIMEToFormat returns the document format for a MIME type, or "" when unsupported.
func MapMIMEToFormat(mimeType string) string {
	return mimeFormats[NormalizeMIME(mimeType)]
}

// MIMEForExt returns the MIME type conventionally used for a file extension, or "".
func MIMEForExt(ext string) string {
	return extMIME[NormalizeExt(ext)]
}

// IsAllowedExt reports whether ext is one of AllowedExtensions.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}
