package driven

import (
	"context"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
)

// Normaliser turns document bytes into plain text for extractors that
// only accept text. Each normaliser handles specific MIME types.
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-specific normalisers should return 50-89.
	// Fallback normalisers should return 1-9.
	Priority() int

	// Normalise extracts the text of a raw document.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)
}

// NormaliseResult contains the output of normalisation.
type NormaliseResult struct {
	// Text is the extracted plain text.
	Text string

	// Pages is the page count when the format has pages, otherwise 0.
	Pages int
}

// NormaliserRegistry selects the normaliser for a MIME type.
type NormaliserRegistry interface {
	// Register adds a normaliser.
	Register(n Normaliser)

	// Get returns the highest priority normaliser for the MIME type.
	// Returns domain.ErrUnsupportedType when none handles it.
	Get(mimeType string) (Normaliser, error)

	// SupportedMIMETypes lists every MIME type some normaliser handles.
	SupportedMIMETypes() []string
}
