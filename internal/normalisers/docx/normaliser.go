// Package docx provides a Normaliser for Word documents, the usual format
// of referral letters and typed medical reports.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

const documentPart = "word/document.xml"

// Normaliser handles DOCX documents.
type Normaliser struct{}

// New creates a new DOCX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser
}

// Normalise extracts the body text of a DOCX document. Paragraphs become
// lines and table cells in a row are separated by a space.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	reader, err := zip.NewReader(bytes.NewReader(raw.Content), int64(len(raw.Content)))
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", errors.Join(domain.ErrInvalidInput, err))
	}

	text, err := extractDocumentText(reader)
	if err != nil {
		return nil, err
	}
	return &driven.NormaliseResult{Text: text}, nil
}

// extractDocumentText reads word/document.xml. A package without it has
// no body text.
func extractDocumentText(reader *zip.Reader) (string, error) {
	for _, file := range reader.File {
		if file.Name != documentPart {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", documentPart, err)
		}
		defer rc.Close()

		return parseDocumentXML(rc)
	}
	return "", nil
}

// parseDocumentXML walks the WordprocessingML token stream so paragraphs
// and tables keep their document order.
func parseDocumentXML(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		out       strings.Builder
		line      strings.Builder
		inText    bool
		cellDepth int
	)
	flush := func() {
		if s := strings.Join(strings.Fields(line.String()), " "); s != "" {
			if out.Len() > 0 {
				out.WriteByte('\n')
			}
			out.WriteString(s)
		}
		line.Reset()
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", documentPart, errors.Join(domain.ErrInvalidInput, err))
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tc":
				cellDepth++
			case "tab":
				line.WriteByte(' ')
			case "br", "cr":
				flush()
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "tc":
				cellDepth--
				line.WriteByte(' ')
			case "p":
				// Paragraphs inside a cell stay on the row's line.
				if cellDepth > 0 {
					line.WriteByte(' ')
				} else {
					flush()
				}
			case "tr":
				flush()
			}
		case xml.CharData:
			if inText {
				line.Write(t)
			}
		}
	}
	flush()

	return out.String(), nil
}
