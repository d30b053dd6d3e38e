// Package levenshtein scores text similarity by edit distance.
package levenshtein

import (
	"github.com/agext/levenshtein"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
)

// Ensure Matcher implements the interface.
var _ driven.TextMatcher = (*Matcher)(nil)

// Matcher compares texts after folding case, accents and whitespace,
// so "Hemograma  Completo" and "hemograma completo" score 1.
type Matcher struct {
	params *levenshtein.Params
}

// New creates a matcher with unit edit costs.
func New() *Matcher {
	return &Matcher{params: levenshtein.NewParams()}
}

// Similarity returns 1 - distance/length in [0,1].
func (m *Matcher) Similarity(a, b string) float64 {
	a, b = domain.FoldKey(a), domain.FoldKey(b)
	if a == "" && b == "" {
		return 1
	}
	return levenshtein.Similarity(a, b, m.params)
}
