// Package ratelimit throttles calls to an extraction provider and backs off
// when the provider reports that its quota is exhausted.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/clinitrace/internal/adapters/driven/extraction"
	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
	"github.com/custodia-labs/clinitrace/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Config holds rate limiting configuration.
type Config struct {
	// RequestsPerMinute is the sustained rate. Zero or negative disables
	// throttling; backoff on rate limit errors still applies.
	RequestsPerMinute int

	// BurstSize is the maximum burst size (default 1).
	BurstSize int

	// MaxRetries is how often a rate limited call is retried (default 3).
	MaxRetries int

	// DefaultBackoff is used when the provider gives no retry hint
	// (default 60s).
	DefaultBackoff time.Duration
}

// Extractor wraps another extractor with a token bucket shared by every
// worker, plus a backoff window opened by rate limit errors.
type Extractor struct {
	inner   driven.Extractor
	limiter *rate.Limiter
	cfg     Config

	mu      sync.Mutex
	retryAt time.Time
}

// New wraps inner with the given limits.
func New(inner driven.Extractor, cfg Config) *Extractor {
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 1
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.DefaultBackoff <= 0 {
		cfg.DefaultBackoff = 60 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(cfg.RequestsPerMinute) / 60)
	}

	return &Extractor{
		inner:   inner,
		limiter: rate.NewLimiter(limit, cfg.BurstSize),
		cfg:     cfg,
	}
}

// Name returns the inner extractor's name.
func (e *Extractor) Name() string {
	return e.inner.Name()
}

// Extract waits for a token and delegates, retrying rate limited calls.
func (e *Extractor) Extract(ctx context.Context, data []byte, mimeType string) ([]domain.RawCandidate, error) {
	var out []domain.RawCandidate
	err := e.do(ctx, func() error {
		var err error
		out, err = e.inner.Extract(ctx, data, mimeType)
		return err
	})
	return out, err
}

// CleanupText waits for a token and delegates, retrying rate limited calls.
func (e *Extractor) CleanupText(ctx context.Context, text string) (string, error) {
	var out string
	err := e.do(ctx, func() error {
		var err error
		out, err = e.inner.CleanupText(ctx, text)
		return err
	})
	return out, err
}

func (e *Extractor) do(ctx context.Context, call func() error) error {
	for attempt := 0; ; attempt++ {
		if err := e.Wait(ctx); err != nil {
			return err
		}

		err := call()
		var rl *extraction.RateLimitError
		if !errors.As(err, &rl) || attempt >= e.cfg.MaxRetries {
			return err
		}

		backoff := e.RecordRateLimit(rl.RetryAfter)
		logger.Warn("%s rate limited, retrying in %s (attempt %d/%d)",
			e.inner.Name(), backoff.Round(time.Millisecond), attempt+1, e.cfg.MaxRetries)
	}
}

// Wait blocks until a call can be made without exceeding the rate limit.
// It also respects any backoff window set by RecordRateLimit.
func (e *Extractor) Wait(ctx context.Context) error {
	e.mu.Lock()
	retryAt := e.retryAt
	e.mu.Unlock()

	if wait := time.Until(retryAt); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return e.limiter.Wait(ctx)
}

// RecordRateLimit opens a backoff window and returns its length. A zero
// retryAfter uses the configured default.
func (e *Extractor) RecordRateLimit(retryAfter time.Duration) time.Duration {
	if retryAfter <= 0 {
		retryAfter = e.cfg.DefaultBackoff
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if until := time.Now().Add(retryAfter); until.After(e.retryAt) {
		e.retryAt = until
	}
	return retryAfter
}
