// Package cache memoises extraction results so re-submitting an unchanged
// file does not pay for another model call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
	"github.com/custodia-labs/clinitrace/internal/logger"
)

// DefaultSize is the number of extraction results kept.
const DefaultSize = 128

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor wraps another extractor with an LRU cache keyed by the
// content hash, MIME type and inner extractor name. Only successful
// extractions are cached. CleanupText is never cached: reprocessing asks
// for a fresh pass.
type Extractor struct {
	inner  driven.Extractor
	cache  *lru.Cache[string, []domain.RawCandidate]
	hits   atomic.Int64
	misses atomic.Int64
}

// New wraps inner with a cache of size entries.
func New(inner driven.Extractor, size int) (*Extractor, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[string, []domain.RawCandidate](size)
	if err != nil {
		return nil, fmt.Errorf("create extraction cache: %w", err)
	}
	return &Extractor{inner: inner, cache: c}, nil
}

// Name returns the inner extractor's name.
func (e *Extractor) Name() string {
	return e.inner.Name()
}

// Extract returns a cached result or delegates to the inner extractor.
func (e *Extractor) Extract(ctx context.Context, data []byte, mimeType string) ([]domain.RawCandidate, error) {
	key := e.key(data, mimeType)
	if cached, ok := e.cache.Get(key); ok {
		e.hits.Add(1)
		logger.Debug("extraction cache hit (%s, %d bytes)", mimeType, len(data))
		return clone(cached), nil
	}
	e.misses.Add(1)

	out, err := e.inner.Extract(ctx, data, mimeType)
	if err != nil {
		return nil, err
	}
	e.cache.Add(key, clone(out))
	return out, nil
}

// CleanupText delegates to the inner extractor.
func (e *Extractor) CleanupText(ctx context.Context, text string) (string, error) {
	return e.inner.CleanupText(ctx, text)
}

// Stats returns the hit and miss counts.
func (e *Extractor) Stats() (hits, misses int64) {
	return e.hits.Load(), e.misses.Load()
}

// Purge empties the cache.
func (e *Extractor) Purge() {
	e.cache.Purge()
}

func (e *Extractor) key(data []byte, mimeType string) string {
	h := sha256.New()
	h.Write([]byte(e.inner.Name()))
	h.Write([]byte{0})
	h.Write([]byte(mimeType))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// clone copies the candidates so callers cannot mutate cached entries.
func clone(in []domain.RawCandidate) []domain.RawCandidate {
	if in == nil {
		return nil
	}
	out := make([]domain.RawCandidate, len(in))
	for i, c := range in {
		c.Fields = maps.Clone(c.Fields)
		out[i] = c
	}
	return out
}
