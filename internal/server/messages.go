package server

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoice-extractor/internal/fields"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
)

// Struct keys used on the wire.
const (
	keyMIMEType     = "mime_type"
	keyFilename     = "filename"
	keyContent      = "content_b64"
	keyFields       = "fields"
	keyItems        = "items"
	keyErrorKind    = "error_kind"
	keyErrorMessage = "error_message"
	keyDocument     = "document_b64"
	keyDocumentName = "document_name"
	keyJobID        = "job_id"
	keyMethod       = "method"
)

// ExtractRequest is the decoded form of an Extract request Struct.
type ExtractRequest struct {
	Filename string
	MIMEType string
	Content  []byte
}

// Struct encodes the request for ExtractionClient.Extract.
func (r ExtractRequest) Struct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		keyFilename: r.Filename,
		keyMIMEType: r.MIMEType,
		keyContent:  base64.StdEncoding.EncodeToString(r.Content),
	})
}

// ExtractResponse is the decoded form of an Extract response Struct.
type ExtractResponse struct {
	Fields       *fields.Fields
	Items        []string
	ErrorKind    string
	ErrorMessage string
	DocumentName string
	Document     []byte
	JobID        string
	Method       string
}

func decodeRequest(s *structpb.Struct) (ExtractRequest, error) {
	var req ExtractRequest
	m := s.GetFields()
	var err error
	if req.Filename, err = optionalString(m, keyFilename); err != nil {
		return req, err
	}
	if req.MIMEType, err = optionalString(m, keyMIMEType); err != nil {
		return req, err
	}
	raw, err := optionalString(m, keyContent)
	if err != nil {
		return req, err
	}
	if strings.TrimSpace(raw) == "" {
		return req, fmt.Errorf("%s is required", keyContent)
	}
	req.Content, err = base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return req, fmt.Errorf("%s is not valid base64: %w", keyContent, err)
	}
	req.Filename = strings.TrimSpace(req.Filename)
	req.MIMEType = strings.TrimSpace(req.MIMEType)
	return req, nil
}

func optionalString(m map[string]*structpb.Value, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue, nil
	case *structpb.Value_NullValue:
		return "", nil
	default:
		return "", fmt.Errorf("%s must be a string", key)
	}
}

// encodeResponse builds the response Struct. Field order is kept by sending
// fields as a list of {key, value} objects.
func encodeResponse(res pipeline.Result, jobID uuid.UUID) (*structpb.Struct, error) {
	fieldList := make([]any, 0, res.Fields.Len())
	for k, v := range res.Fields.All() {
		fieldList = append(fieldList, map[string]any{
			"key":   validUTF8(k),
			"value": validUTF8(v),
		})
	}
	items := make([]any, 0, len(res.Items))
	for _, it := range res.Items {
		items = append(items, validUTF8(it))
	}

	m := map[string]any{
		keyFields:       fieldList,
		keyItems:        items,
		keyErrorKind:    string(res.ErrorKind()),
		keyErrorMessage: validUTF8(res.ErrorMessage()),
		keyMethod:       res.Method,
	}
	if res.Document != nil {
		m[keyDocument] = base64.StdEncoding.EncodeToString(res.Document.Bytes())
		m[keyDocumentName] = res.Document.Name
	}
	if jobID != uuid.Nil {
		m[keyJobID] = jobID.String()
	}
	return structpb.NewStruct(m)
}

// DecodeExtractResponse reads a response Struct produced by the service.
func DecodeExtractResponse(s *structpb.Struct) (ExtractResponse, error) {
	m := s.GetFields()
	out := ExtractResponse{Fields: fields.New()}

	for _, v := range m[keyFields].GetListValue().GetValues() {
		kv := v.GetStructValue().GetFields()
		if kv == nil {
			return out, fmt.Errorf("%s entries must be objects", keyFields)
		}
		out.Fields.Set(kv["key"].GetStringValue(), kv["value"].GetStringValue())
	}
	out.Items = make([]string, 0)
	for _, v := range m[keyItems].GetListValue().GetValues() {
		out.Items = append(out.Items, v.GetStringValue())
	}
	out.ErrorKind = m[keyErrorKind].GetStringValue()
	out.ErrorMessage = m[keyErrorMessage].GetStringValue()
	out.DocumentName = m[keyDocumentName].GetStringValue()
	out.JobID = m[keyJobID].GetStringValue()
	out.Method = m[keyMethod].GetStringValue()
	if doc := m[keyDocument].GetStringValue(); doc != "" {
		b, err := base64.StdEncoding.DecodeString(doc)
		if err != nil {
			return out, fmt.Errorf("%s: %w", keyDocument, err)
		}
		out.Document = b
	}
	return out, nil
}

// structpb rejects strings that are not valid UTF-8.
func validUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}
