// Package workspace copies uploads into a private working directory before
// they are extracted, so the pipeline never reads a file the user may still
// be changing.
package workspace

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
	"github.com/custodia-labs/clinitrace/internal/logger"
)

// Ensure Fetcher implements the interface.
var _ driven.Fetcher = (*Fetcher)(nil)

const (
	copyChunk = 64 << 10

	// nameSeparator splits the file key from the original name in a
	// working copy's file name.
	nameSeparator = "__"
	tempPattern   = ".fetch-*"
)

// Fetcher copies local files into a working directory.
type Fetcher struct {
	dir     string
	maxSize int64
}

// New creates a fetcher storing working copies under dir. maxSize bounds
// accepted uploads in bytes; zero means no limit.
func New(dir string, maxSize int64) (*Fetcher, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Fetcher{dir: dir, maxSize: maxSize}, nil
}

// Dir returns the working directory.
func (f *Fetcher) Dir() string {
	return f.dir
}

// Fetch copies the upload into the workspace, hashing it on the way and
// reporting progress after every chunk. Cancellation is checked between
// chunks; a cancelled copy leaves nothing behind.
func (f *Fetcher) Fetch(ctx context.Context, upload domain.Upload, progress driven.ProgressFunc) (*domain.WorkingCopy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mimeType := upload.MIMEType
	if mimeType == "" {
		mimeType = domain.DetectMIMEType(nameOf(upload))
	}
	if domain.KindOfMIME(mimeType) == domain.MediaUnknown {
		return nil, fmt.Errorf("%s: %w", nameOf(upload), domain.ErrUnsupportedType)
	}

	src, err := os.Open(upload.Path)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat upload: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrInvalidInput, upload.Path)
	}
	if f.maxSize > 0 && info.Size() > f.maxSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d",
			domain.ErrInvalidInput, nameOf(upload), info.Size(), f.maxSize)
	}

	tmp, err := os.CreateTemp(f.dir, tempPattern)
	if err != nil {
		return nil, fmt.Errorf("create working copy: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	hash := sha256.New()
	written, err := copyWithProgress(ctx, io.MultiWriter(tmp, hash), src, info.Size(), progress)
	if err != nil {
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close working copy: %w", err)
	}

	if err := f.Remove(ctx, upload.FileID); err != nil {
		return nil, err
	}
	dst := filepath.Join(f.dir, fileKey(upload.FileID)+nameSeparator+safeName(nameOf(upload)))
	if err := os.Rename(tmpPath, dst); err != nil {
		return nil, fmt.Errorf("store working copy: %w", err)
	}
	committed = true

	return &domain.WorkingCopy{
		FileID:   upload.FileID,
		Path:     dst,
		MIMEType: mimeType,
		Size:     written,
		SHA256:   hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

// Open reads a working copy back and checks it was not altered.
func (f *Fetcher) Open(ctx context.Context, wc domain.WorkingCopy) (*domain.RawDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(wc.Path)
	if err != nil {
		return nil, fmt.Errorf("read working copy: %w", err)
	}
	if wc.SHA256 != "" {
		sum := sha256.Sum256(data)
		if hex.EncodeToString(sum[:]) != wc.SHA256 {
			return nil, fmt.Errorf("working copy of %s changed after fetch", wc.FileID)
		}
	}

	name := filepath.Base(wc.Path)
	if _, original, ok := strings.Cut(name, nameSeparator); ok {
		name = original
	}
	return &domain.RawDocument{
		FileID:   wc.FileID,
		Name:     name,
		MIMEType: wc.MIMEType,
		Content:  data,
	}, nil
}

// Remove deletes the working copy of a file. Missing copies are not an
// error.
func (f *Fetcher) Remove(_ context.Context, fileID string) error {
	matches, err := filepath.Glob(filepath.Join(f.dir, fileKey(fileID)+nameSeparator+"*"))
	if err != nil {
		return fmt.Errorf("find working copy: %w", err)
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove working copy: %w", err)
		}
	}
	return nil
}

// Prune deletes working copies and abandoned partial copies last modified
// before the cutoff.
func (f *Fetcher) Prune(ctx context.Context, before time.Time) (int, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return 0, fmt.Errorf("read workspace: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(before) {
			continue
		}
		if err := os.Remove(filepath.Join(f.dir, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("workspace: failed to prune %s: %v", entry.Name(), err)
			continue
		}
		removed++
	}
	return removed, nil
}

func copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, total int64, progress driven.ProgressFunc) (int64, error) {
	buf := make([]byte, copyChunk)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, fmt.Errorf("write working copy: %w", err)
			}
			written += int64(n)
			if progress != nil && total > 0 {
				progress(float64(written) / float64(total))
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return written, fmt.Errorf("read upload: %w", readErr)
		}
	}
	if progress != nil {
		progress(1)
	}
	return written, nil
}

func nameOf(upload domain.Upload) string {
	if upload.Name != "" {
		return upload.Name
	}
	return filepath.Base(upload.Path)
}

// fileKey maps a file id to a file-system safe prefix.
func fileKey(fileID string) string {
	sum := sha256.Sum256([]byte(fileID))
	return hex.EncodeToString(sum[:8])
}

func safeName(name string) string {
	name = filepath.Base(name)
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}
