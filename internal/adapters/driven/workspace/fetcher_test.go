package workspace

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
)

func writeUpload(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func newFetcher(t *testing.T, maxSize int64) *Fetcher {
	t.Helper()
	f, err := New(filepath.Join(t.TempDir(), "workspace"), maxSize)
	require.NoError(t, err)
	return f
}

func TestFetch_CopiesAndHashes(t *testing.T) {
	f := newFetcher(t, 0)
	data := bytes.Repeat([]byte("Hemograma 12/03/2023\n"), 10000)
	path := writeUpload(t, "hemograma.txt", data)

	var reports []float64
	wc, err := f.Fetch(context.Background(), domain.Upload{FileID: "exam-1", Path: path}, func(p float64) {
		reports = append(reports, p)
	})
	require.NoError(t, err)

	sum := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), wc.SHA256)
	assert.Equal(t, int64(len(data)), wc.Size)
	assert.Equal(t, "text/plain", wc.MIMEType)
	assert.Equal(t, f.Dir(), filepath.Dir(wc.Path))

	require.NotEmpty(t, reports)
	assert.Greater(t, len(reports), 2)
	assert.Equal(t, 1.0, reports[len(reports)-1])
	for i := 1; i < len(reports); i++ {
		assert.GreaterOrEqual(t, reports[i], reports[i-1])
	}

	doc, err := f.Open(context.Background(), *wc)
	require.NoError(t, err)
	assert.Equal(t, data, doc.Content)
	assert.Equal(t, "hemograma.txt", doc.Name)
	assert.Equal(t, "exam-1", doc.FileID)
}

func TestFetch_KeepsGivenMIMEType(t *testing.T) {
	f := newFetcher(t, 0)
	path := writeUpload(t, "upload.bin", []byte("%PDF-1.7"))

	wc, err := f.Fetch(context.Background(), domain.Upload{FileID: "x", Path: path, MIMEType: "application/pdf"}, nil)

	require.NoError(t, err)
	assert.Equal(t, "application/pdf", wc.MIMEType)
}

func TestFetch_Rejections(t *testing.T) {
	f := newFetcher(t, 8)
	ctx := context.Background()

	_, err := f.Fetch(ctx, domain.Upload{FileID: "a", Path: writeUpload(t, "planilha.xlsx", []byte("PK"))}, nil)
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	_, err = f.Fetch(ctx, domain.Upload{FileID: "b", Path: writeUpload(t, "grande.txt", []byte("mais de oito bytes"))}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.Fetch(ctx, domain.Upload{FileID: "c", Path: filepath.Join(t.TempDir(), "sumiu.txt")}, nil)
	assert.Error(t, err)

	_, err = f.Fetch(ctx, domain.Upload{FileID: "d", Path: t.TempDir(), Name: "pasta.txt"}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	entries, err := os.ReadDir(f.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFetch_Cancelled(t *testing.T) {
	f := newFetcher(t, 0)
	path := writeUpload(t, "a.txt", []byte("texto"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, domain.Upload{FileID: "a", Path: path}, nil)

	assert.ErrorIs(t, err, context.Canceled)
	entries, _ := os.ReadDir(f.Dir())
	assert.Empty(t, entries)
}

func TestFetch_RefetchReplacesCopy(t *testing.T) {
	f := newFetcher(t, 0)
	ctx := context.Background()

	_, err := f.Fetch(ctx, domain.Upload{FileID: "exam", Path: writeUpload(t, "v1.txt", []byte("um"))}, nil)
	require.NoError(t, err)
	wc, err := f.Fetch(ctx, domain.Upload{FileID: "exam", Path: writeUpload(t, "v2.txt", []byte("dois"))}, nil)
	require.NoError(t, err)

	entries, err := os.ReadDir(f.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(wc.Path), entries[0].Name())
}

func TestOpen_DetectsTampering(t *testing.T) {
	f := newFetcher(t, 0)
	wc, err := f.Fetch(context.Background(), domain.Upload{FileID: "x", Path: writeUpload(t, "a.txt", []byte("original"))}, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(wc.Path, []byte("alterado"), 0600))

	_, err = f.Open(context.Background(), *wc)
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	f := newFetcher(t, 0)
	ctx := context.Background()
	wc, err := f.Fetch(ctx, domain.Upload{FileID: "x", Path: writeUpload(t, "a.txt", []byte("a"))}, nil)
	require.NoError(t, err)

	require.NoError(t, f.Remove(ctx, "x"))
	_, err = os.Stat(wc.Path)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, f.Remove(ctx, "never-fetched"))
}

func TestPrune(t *testing.T) {
	f := newFetcher(t, 0)
	ctx := context.Background()

	oldCopy, err := f.Fetch(ctx, domain.Upload{FileID: "old", Path: writeUpload(t, "old.txt", []byte("a"))}, nil)
	require.NoError(t, err)
	newCopy, err := f.Fetch(ctx, domain.Upload{FileID: "new", Path: writeUpload(t, "new.txt", []byte("b"))}, nil)
	require.NoError(t, err)

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldCopy.Path, past, past))

	n, err := f.Prune(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	_, err = os.Stat(newCopy.Path)
	assert.NoError(t, err)
	_, err = os.Stat(oldCopy.Path)
	assert.True(t, os.IsNotExist(err))
}
