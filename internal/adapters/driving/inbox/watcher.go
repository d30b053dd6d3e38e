// Package inbox watches a directory and submits every new or changed file
// for ingestion.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driving"
	"github.com/custodia-labs/clinitrace/internal/logger"
)

// DefaultSettle is how long a file must stay unchanged before it is
// submitted. Copies and recordings produce many write events.
const DefaultSettle = time.Second

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettle overrides DefaultSettle.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		w.settle = d
	}
}

// WithInitialScan submits the files already in the directory on start.
func WithInitialScan() Option {
	return func(w *Watcher) {
		w.initialScan = true
	}
}

// WithNotify registers a callback for every submission attempt.
func WithNotify(fn func(path string, job domain.IngestionJob, err error)) Option {
	return func(w *Watcher) {
		w.notify = fn
	}
}

// Watcher submits settled files from one directory.
type Watcher struct {
	dir         string
	ingestion   driving.IngestionService
	settle      time.Duration
	initialScan bool
	notify      func(string, domain.IngestionJob, error)

	mu      sync.Mutex
	pending map[string]time.Time
}

// New creates a watcher for dir.
func New(dir string, ingestion driving.IngestionService, opts ...Option) (*Watcher, error) {
	if ingestion == nil {
		return nil, errors.New("inbox: ingestion service is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("inbox: resolve %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("inbox: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("inbox: %s is not a directory: %w", abs, domain.ErrInvalidInput)
	}

	w := &Watcher{
		dir:       abs,
		ingestion: ingestion,
		settle:    DefaultSettle,
		pending:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("inbox: create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("inbox: watch %s: %w", w.dir, err)
	}
	logger.Info("inbox: watching %s", w.dir)

	if w.initialScan {
		if err := w.scan(); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(max(w.settle/2, 10*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if path := w.handleEvent(ev); path != "" {
				w.mark(path, time.Now())
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("inbox: watcher error: %v", err)
		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

func (w *Watcher) scan() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("inbox: scan %s: %w", w.dir, err)
	}
	// Backdate so the first flush submits them.
	at := time.Now().Add(-w.settle)
	for _, e := range entries {
		path := filepath.Join(w.dir, e.Name())
		if accept(path) {
			w.mark(path, at)
		}
	}
	return nil
}

// handleEvent returns the path to submit for ev, or "".
func (w *Watcher) handleEvent(ev fsnotify.Event) string {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return ""
	}
	if !accept(ev.Name) {
		return ""
	}
	return ev.Name
}

// accept reports whether path is a visible regular file of a supported type.
func accept(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	info, err := os.Lstat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return domain.KindOfMIME(domain.DetectMIMEType(path)) != domain.MediaUnknown
}

func (w *Watcher) mark(path string, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = at
}

// Pending returns the number of files waiting to settle.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// flush submits every pending file untouched for the settle period.
func (w *Watcher) flush(ctx context.Context, now time.Time) {
	w.mu.Lock()
	var ready []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.settle {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		job, err := w.ingestion.Submit(ctx, domain.Upload{
			FileID: domain.UploadID(path),
			Name:   filepath.Base(path),
			Path:   path,
		})
		switch {
		case errors.Is(err, domain.ErrJobInProgress):
			// The file changed while its previous version is still being
			// processed; try again once that job ends.
			logger.Debug("inbox: %s still in progress, retrying later", path)
			w.mark(path, now)
		case err != nil:
			logger.Warn("inbox: submit %s: %v", path, err)
		default:
			logger.Info("inbox: queued %s (attempt %d)", job.Name, job.Attempt)
		}
		if w.notify != nil {
			w.notify(path, job, err)
		}
	}
}
