package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ExtractJob is one recorded run of the extraction pipeline over a document.
type ExtractJob struct {
	ID           uuid.UUID       `json:"id"`
	Filename     string          `json:"filename"`
	MIMEType     string          `json:"mime_type"`
	Format       string          `json:"format,omitempty"`
	ContentHash  string          `json:"content_hash"`
	Status       string          `json:"status"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
	ErrorKind    *string         `json:"error_kind,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	Method       *string         `json:"method,omitempty"`
	FieldCount   int             `json:"field_count"`
	ItemCount    int             `json:"item_count"`
	OutputURI    *string         `json:"output_uri,omitempty"`
	FieldsJSON   json.RawMessage `json:"fields_json,omitempty"`
}
