package extract

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/nguyenthenguyen/docx"
)

const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// DocxExtractor reads paragraphs and tables from Office Open XML documents.
// Legacy binary .doc files are not zip containers and fail to open.
type DocxExtractor struct {
	logger *slog.Logger
}

func NewDocxExtractor(logger *slog.Logger) *DocxExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocxExtractor{logger: logger}
}

func (x *DocxExtractor) Extract(_ context.Context, content []byte, _ string) (Extraction, error) {
	start := time.Now()
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return Extraction{Method: "docx"}, fmt.Errorf("docx: open: %w", err)
	}
	defer func() {
		if err := doc.Close(); err != nil {
			x.logger.Warn("failed to close docx", "error", err)
		}
	}()

	res, err := parseDocumentXML(strings.NewReader(doc.Editable().GetContent()))
	if err != nil {
		return Extraction{Method: "docx"}, fmt.Errorf("docx: parse document.xml: %w", err)
	}
	res.Duration = time.Since(start)
	x.logger.Debug("extract.docx.ok", "chars", len(res.Text), "tables", len(res.Tables))
	return res, nil
}

// parseDocumentXML walks word/document.xml. Body paragraphs become the text,
// one per line; top-level tables become Tables whose cells hold their
// paragraphs joined by newlines. Content of nested tables is ignored.
func parseDocumentXML(r io.Reader) (Extraction, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		tables     []Table
		table      Table
		row        []string
		cellParas  []string
		para       strings.Builder
		tblDepth   int
		inPara     bool
		inText     bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Extraction{}, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "tbl":
				tblDepth++
				if tblDepth == 1 {
					table = nil
				}
			case "tr":
				if tblDepth == 1 {
					row = nil
				}
			case "tc":
				if tblDepth == 1 {
					cellParas = nil
				}
			case "p":
				if tblDepth <= 1 {
					inPara = true
					para.Reset()
				}
			case "t":
				inText = true
			case "tab":
				if inPara {
					para.WriteByte('\t')
				}
			case "br", "cr":
				if inPara {
					para.WriteByte('\n')
				}
			}
		case xml.CharData:
			if inPara && inText {
				para.Write(t)
			}
		case xml.EndElement:
			if t.Name.Space != wordNS {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if !inPara {
					continue
				}
				inPara = false
				switch tblDepth {
				case 0:
					paragraphs = append(paragraphs, para.String())
				case 1:
					cellParas = append(cellParas, para.String())
				}
			case "tc":
				if tblDepth == 1 {
					row = append(row, strings.Join(cellParas, "\n"))
				}
			case "tr":
				if tblDepth == 1 {
					table = append(table, row)
				}
			case "tbl":
				if tblDepth == 1 {
					tables = append(tables, table)
				}
				tblDepth--
			}
		}
	}

	return Extraction{
		Text:   strings.Join(paragraphs, "\n"),
		Tables: tables,
		Pages:  1,
		Method: "docx",
	}, nil
}
