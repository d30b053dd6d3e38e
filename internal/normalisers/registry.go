package normalisers

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
	"github.com/custodia-labs/clinitrace/internal/normalisers/docx"
	"github.com/custodia-labs/clinitrace/internal/normalisers/html"
	"github.com/custodia-labs/clinitrace/internal/normalisers/markdown"
	"github.com/custodia-labs/clinitrace/internal/normalisers/pdf"
	"github.com/custodia-labs/clinitrace/internal/normalisers/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry maps MIME types to normalisers. When several normalisers
// handle a type, the highest priority wins; ties go to the one registered
// first.
type Registry struct {
	mu     sync.RWMutex
	byMIME map[string][]driven.Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byMIME: make(map[string][]driven.Normaliser)}
}

// Register adds a normaliser for every MIME type it supports.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, mime := range n.SupportedMIMETypes() {
		list := append(r.byMIME[mime], n)
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Priority() > list[j].Priority()
		})
		r.byMIME[mime] = list
	}
}

// Get returns the preferred normaliser for a MIME type.
func (r *Registry) Get(mimeType string) (driven.Normaliser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.byMIME[mimeType]
	if len(list) == 0 {
		return nil, fmt.Errorf("no normaliser for %q: %w", mimeType, domain.ErrUnsupportedType)
	}
	return list[0], nil
}

// SupportedMIMETypes lists the registered MIME types in sorted order.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.byMIME))
	for mime := range r.byMIME {
		types = append(types, mime)
	}
	slices.Sort(types)
	return types
}

// RegisterDefaults registers the built-in normalisers. PDF text extraction
// is optional: multimodal extractors read PDFs natively and do better on
// scanned reports than pdftotext.
func RegisterDefaults(r driven.NormaliserRegistry, withPDF bool) {
	r.Register(plaintext.New())
	r.Register(html.New())
	r.Register(markdown.New())
	r.Register(docx.New())
	if withPDF {
		r.Register(pdf.New())
	}
}
