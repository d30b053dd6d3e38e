// Package formulary maps commercial medication names to their active
// ingredient so that courses of the same drug share a cycle whatever
// name the document used.
package formulary

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
	"github.com/custodia-labs/clinitrace/internal/logger"
)

// Ensure Formulary implements the interface.
var _ driven.IngredientResolver = (*Formulary)(nil)

// DefaultCacheSize is the number of fallback answers kept.
const DefaultCacheSize = 512

//go:embed builtin.yaml
var builtin []byte

// Formulary resolves names from a table of ingredients and their
// commercial names. Names the table does not know go to the fallback,
// whose answers are memoised.
type Formulary struct {
	index    map[string]string
	fallback driven.IngredientResolver
	answers  *lru.Cache[string, string]
}

// Option configures a Formulary.
type Option func(*Formulary)

// WithFallback asks r about names missing from the table.
func WithFallback(r driven.IngredientResolver) Option {
	return func(f *Formulary) {
		f.fallback = r
	}
}

// New builds a formulary from the built-in table only.
func New(opts ...Option) (*Formulary, error) {
	return Load("", opts...)
}

// Load builds a formulary from the built-in table plus the YAML file at
// path. A missing file is not an error.
func Load(path string, opts ...Option) (*Formulary, error) {
	answers, err := lru.New[string, string](DefaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create formulary cache: %w", err)
	}
	f := &Formulary{index: make(map[string]string), answers: answers}
	for _, opt := range opts {
		opt(f)
	}

	if err := f.add(builtin); err != nil {
		return nil, fmt.Errorf("built-in formulary: %w", err)
	}
	if path == "" {
		return f, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read formulary: %w", err)
	}
	if err := f.add(data); err != nil {
		return nil, fmt.Errorf("formulary %s: %w", path, err)
	}
	logger.Debug("formulary: loaded %s", path)
	return f, nil
}

// add indexes a table of ingredient: [names]. Later tables override
// earlier ones.
func (f *Formulary) add(data []byte) error {
	var table map[string][]string
	if err := yaml.Unmarshal(data, &table); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	for ingredient, names := range table {
		ingredient = strings.TrimSpace(ingredient)
		if ingredient == "" {
			continue
		}
		f.index[domain.FoldKey(ingredient)] = ingredient
		for _, name := range names {
			if key := domain.FoldKey(name); key != "" {
				f.index[key] = ingredient
			}
		}
	}
	return nil
}

// Len returns the number of names the table knows.
func (f *Formulary) Len() int {
	return len(f.index)
}

// ResolveIngredient returns the active ingredient of name, or "" when
// neither the table nor the fallback recognises it. Trailing words such
// as a strength or a form are ignored when the full name is unknown.
func (f *Formulary) ResolveIngredient(ctx context.Context, name string) (string, error) {
	key := domain.FoldKey(name)
	if key == "" {
		return "", nil
	}
	if ingredient, ok := f.lookup(key); ok {
		return ingredient, nil
	}
	if f.fallback == nil {
		return "", nil
	}
	if ingredient, ok := f.answers.Get(key); ok {
		return ingredient, nil
	}

	ingredient, err := f.fallback.ResolveIngredient(ctx, name)
	if err != nil {
		return "", err
	}
	f.answers.Add(key, ingredient)
	return ingredient, nil
}

// lookup tries key, then key without its last word, down to one word.
func (f *Formulary) lookup(key string) (string, bool) {
	words := strings.Fields(key)
	for n := len(words); n > 0; n-- {
		if ingredient, ok := f.index[strings.Join(words[:n], " ")]; ok {
			return ingredient, true
		}
	}
	return "", false
}
