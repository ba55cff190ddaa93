package pipeline

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/fields"
	"github.com/joseph-ayodele/invoice-extractor/internal/render"
)

// Result is everything produced for one document. Fields always holds the
// canonical fields and Document is always set, even when Err is not nil.
type Result struct {
	MIMEType string
	Fields   *fields.Fields
	Items    []string
	Document *render.Document
	Err      *common.ExtractionError

	Method   string
	Warnings []string
	Duration time.Duration
}

// ErrorKind returns the extraction error kind, or "" when extraction succeeded.
func (r Result) ErrorKind() common.ErrorKind {
	if r.Err == nil {
		return ""
	}
	return r.Err.Kind
}

// ErrorMessage returns the human readable extraction error, or "".
func (r Result) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Display writes the extracted details and items as plain text.
func (r Result) Display(w io.Writer) error {
	var b strings.Builder
	if r.Err != nil {
		fmt.Fprintf(&b, "Error: %s\n\n", r.Err.Error())
	}
	b.WriteString("Extracted Invoice Details\n")
	for k, v := range r.Fields.All() {
		fmt.Fprintf(&b, "%s: %s\n", k, v)
	}
	b.WriteString("\nInvoice Items\n")
	if len(r.Items) == 0 {
		b.WriteString("(none)\n")
	}
	for i, item := range r.Items {
		fmt.Fprintf(&b, "Item %d: %s\n", i+1, item)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
