// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import (
	"context"
	"iter"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
)

// Extractor turns file bytes into unnormalized candidate facts.
// Implementations wrap an OCR, transcription or LLM service. The core
// imposes no timeout; callers bound calls through ctx.
//
// Implementations may include:
//   - OpenAI (chat completions in JSON mode, Whisper for audio/video)
//   - Google Gemini (native PDF, audio and video input)
//   - Ollama (local models, text and images)
type Extractor interface {
	// Extract returns every fact found in data. Errors are reported as-is;
	// the scheduler wraps them in domain.ErrExtractionFailed.
	Extract(ctx context.Context, data []byte, mimeType string) ([]domain.RawCandidate, error)

	// CleanupText re-runs the text cleanup pass used for narrative notes.
	CleanupText(ctx context.Context, text string) (string, error)

	// Name identifies the extractor (provider and model) in logs and cache keys.
	Name() string
}

// IngredientResolver maps a medication name, commercial or generic, to its
// active ingredient. Courses are grouped by ingredient, so "Vfend" and
// "Voriconazol" must resolve to the same value.
type IngredientResolver interface {
	// ResolveIngredient returns the active ingredient of name, or "" when
	// the name is not recognised.
	ResolveIngredient(ctx context.Context, name string) (string, error)
}

// TextMatcher scores how alike two texts are.
type TextMatcher interface {
	// Similarity returns a score in [0,1]; 1 means identical.
	Similarity(a, b string) float64
}

// DateNormaliser turns free-form date text into canonical dates.
type DateNormaliser interface {
	// Normalise yields the dates found in raw, deduplicated and ascending.
	Normalise(raw string) iter.Seq[domain.Date]
}
