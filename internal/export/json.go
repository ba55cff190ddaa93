package export

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/fields"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
)

// ResultJSON is the machine readable form of one pipeline result.
type ResultJSON struct {
	Filename     string         `json:"filename"`
	MIMEType     string         `json:"mime_type"`
	Fields       *fields.Fields `json:"fields"`
	Items        []string       `json:"items"`
	ErrorKind    string         `json:"error_kind,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Document     string         `json:"document,omitempty"`
}

// ResultSchema describes ResultJSON. Every canonical field must be present.
func ResultSchema() map[string]any {
	props := map[string]any{}
	for _, name := range constants.CanonicalFields() {
		props[name] = map[string]any{"type": "string"}
	}
	return map[string]any{
		"$schema":  "http://json-schema.org/draft-07/schema#",
		"type":     "object",
		"required": []string{"filename", "mime_type", "fields", "items"},
		"properties": map[string]any{
			"filename":  map[string]any{"type": "string"},
			"mime_type": map[string]any{"type": "string"},
			"fields": map[string]any{
				"type":                 "object",
				"required":             constants.CanonicalFields(),
				"properties":           props,
				"additionalProperties": map[string]any{"type": "string"},
			},
			"items": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"error_kind": map[string]any{
				"type": "string",
				"enum": []string{"ExtractionFailed", "UnsupportedFormat"},
			},
			"error_message": map[string]any{"type": "string"},
			"document":      map[string]any{"type": "string"},
		},
		"additionalProperties": false,
	}
}

// MarshalResult encodes res as indented JSON and validates it against ResultSchema.
func MarshalResult(filename string, res pipeline.Result) ([]byte, error) {
	doc := ResultJSON{
		Filename:     filename,
		MIMEType:     res.MIMEType,
		Fields:       res.Fields,
		Items:        res.Items,
		ErrorKind:    string(res.ErrorKind()),
		ErrorMessage: res.ErrorMessage(),
	}
	if doc.Fields == nil {
		doc.Fields = fields.New()
	}
	if doc.Items == nil {
		doc.Items = []string{}
	}
	if res.Document != nil {
		doc.Document = res.Document.Name
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	if err := ValidateJSONAgainstSchema(ResultSchema(), b); err != nil {
		return nil, err
	}
	return b, nil
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
