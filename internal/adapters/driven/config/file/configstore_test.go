package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfigStore(t *testing.T) *ConfigStore {
	t.Helper()
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestNewConfigStore_NestedDirectory(t *testing.T) {
	nestedPath := filepath.Join(t.TempDir(), "nested", "deep")

	store, err := NewConfigStore(nestedPath)
	require.NoError(t, err)
	require.NotNil(t, store)

	info, err := os.Stat(nestedPath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestNewConfigStore_MkdirAllError(t *testing.T) {
	store, err := NewConfigStore("/dev/null/cannot/create/dirs")

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestNewConfigStore_CorruptedFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("not valid TOML {{{[["), 0600))

	store, err := NewConfigStore(tmpDir)

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := newTestConfigStore(t)

	require.NoError(t, store.Set("extraction.provider", "gemini"))
	require.NoError(t, store.Set("ingest.workers", 6))
	require.NoError(t, store.Set("ingest.create_notes", true))
	require.NoError(t, store.Set("reconcile.similarity_threshold", 0.75))
	require.NoError(t, store.Set("watch.extensions", []string{".pdf", ".m4a"}))

	assert.Equal(t, "gemini", store.GetString("extraction.provider"))
	assert.Equal(t, 6, store.GetInt("ingest.workers"))
	assert.True(t, store.GetBool("ingest.create_notes"))
	assert.InDelta(t, 0.75, store.GetFloat("reconcile.similarity_threshold"), 1e-9)
	assert.Equal(t, []string{".pdf", ".m4a"}, store.GetStringSlice("watch.extensions"))

	// Wrong types read as zero values.
	assert.Empty(t, store.GetString("ingest.workers"))
	assert.Zero(t, store.GetInt("extraction.provider"))
	assert.False(t, store.GetBool("extraction.provider"))
	assert.Zero(t, store.GetFloat("extraction.provider"))
	assert.Nil(t, store.GetStringSlice("ingest.workers"))
}

func TestConfigStore_NumericConversions(t *testing.T) {
	store := newTestConfigStore(t)

	store.mu.Lock()
	store.data["a"] = int64(9999)
	store.data["b"] = float64(4)
	store.data["c"] = 2.5
	store.data["d"] = int64(1)
	store.mu.Unlock()

	assert.Equal(t, 9999, store.GetInt("a"))
	assert.Equal(t, 4, store.GetInt("b"))
	assert.Zero(t, store.GetInt("c"))
	assert.InDelta(t, 1.0, store.GetFloat("d"), 1e-9)
}

func TestConfigStore_Get_NotFound(t *testing.T) {
	store := newTestConfigStore(t)

	val, ok := store.Get("missing")

	assert.False(t, ok)
	assert.Nil(t, val)
	assert.Zero(t, store.GetFloat("missing"))
}

func TestConfigStore_PersistsAsTables(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	require.NoError(t, store.Set("extraction.model", "gpt-4o-mini"))
	require.NoError(t, store.Set("extraction.requests_per_minute", int64(30)))
	require.NoError(t, store.Set("dates.pivot", int64(-1)))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "[extraction]")
	assert.Contains(t, string(data), "[dates]")

	reloaded, err := NewConfigStore(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", reloaded.GetString("extraction.model"))
	assert.Equal(t, 30, reloaded.GetInt("extraction.requests_per_minute"))
	assert.Equal(t, -1, reloaded.GetInt("dates.pivot"))
}

func TestConfigStore_ReadsHandWrittenFile(t *testing.T) {
	tmpDir := t.TempDir()
	content := `
[extraction]
provider = "openai"

[reconcile]
similarity_threshold = 1

[storage]
backend = "postgres"
postgres_url = "postgres://localhost/clinitrace"
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(content), 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "openai", store.GetString("extraction.provider"))
	assert.InDelta(t, 1.0, store.GetFloat("reconcile.similarity_threshold"), 1e-9)
	assert.Equal(t, "postgres://localhost/clinitrace", store.GetString("storage.postgres_url"))
}

func TestConfigStore_KeyConflict(t *testing.T) {
	store := newTestConfigStore(t)
	require.NoError(t, store.Set("ingest", "flat"))

	err := store.Set("ingest.workers", 2)

	assert.Error(t, err)
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store := newTestConfigStore(t)
	require.NoError(t, store.Set("extraction.api_key", "sk-test"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_Save_WriteFileError(t *testing.T) {
	store := newTestConfigStore(t)
	require.NoError(t, store.Set("test", "value"))

	// A directory in place of the file makes the write fail.
	require.NoError(t, os.Remove(store.Path()))
	require.NoError(t, os.Mkdir(store.Path(), 0700))

	assert.Error(t, store.Set("another", "value"))
	assert.Error(t, store.Save())
}

func TestConfigStore_SetUnmarshallableValue(t *testing.T) {
	store := newTestConfigStore(t)

	assert.Error(t, store.Set("channel", make(chan int)))
}

func TestConfigStore_Load_CommentOnlyFile(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte("# just a comment\n"), 0600))

	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	_, ok := store.Get("any")
	assert.False(t, ok)
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := newTestConfigStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, store.Set("ingest.workers", n))
			_ = store.GetInt("ingest.workers")
		}(i)
	}
	wg.Wait()

	assert.GreaterOrEqual(t, store.GetInt("ingest.workers"), 0)
}

func TestUnflattenMap(t *testing.T) {
	nested, err := unflattenMap(map[string]any{
		"extraction.model":                "gpt-4o-mini",
		"extraction.provider":             "openai",
		"scheduler.history_prune.enabled": true,
		"top":                             1,
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"extraction": map[string]any{"model": "gpt-4o-mini", "provider": "openai"},
		"scheduler":  map[string]any{"history_prune": map[string]any{"enabled": true}},
		"top":        1,
	}, nested)
}
