package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/clinitrace/internal/core/domain"
)

func TestHomeDir_FromEnvironment(t *testing.T) {
	t.Setenv(envHome, "/srv/clinitrace")

	dir, err := homeDir()

	require.NoError(t, err)
	assert.Equal(t, "/srv/clinitrace", dir)
}

func TestApplyEnvironment(t *testing.T) {
	t.Setenv(envGeminiKey, "AIza-env")
	t.Setenv(envOpenAIKey, "sk-env")
	t.Setenv(envPostgresURL, "postgres://localhost/clin")

	s := domain.DefaultAppSettings()
	s.Extraction.Provider = domain.AIProviderGemini
	applyEnvironment(&s)
	assert.Equal(t, "AIza-env", s.Extraction.APIKey)
	assert.Equal(t, "postgres://localhost/clin", s.Storage.PostgresURL)

	s = domain.DefaultAppSettings()
	s.Extraction.APIKey = "sk-config"
	applyEnvironment(&s)
	assert.Equal(t, "sk-config", s.Extraction.APIKey)
}

func TestApplyEnvironment_OllamaHost(t *testing.T) {
	t.Setenv(envOllamaHost, "gpu-box:11434")

	s := domain.DefaultAppSettings()
	s.Extraction.Provider = domain.AIProviderOllama
	applyEnvironment(&s)
	assert.Equal(t, "http://gpu-box:11434", s.Extraction.BaseURL)
	assert.Empty(t, s.Extraction.APIKey)
	assert.True(t, s.Extraction.IsConfigured())

	s.Extraction.BaseURL = "https://ollama.internal"
	applyEnvironment(&s)
	assert.Equal(t, "https://ollama.internal", s.Extraction.BaseURL)
}

func TestWire_BuildsServices(t *testing.T) {
	home := t.TempDir()

	a, err := wire(context.Background(), home)
	require.NoError(t, err)
	a.close()

	assert.DirExists(t, home+"/data")
	assert.DirExists(t, home+"/workspace")
	assert.FileExists(t, home+"/data/clinitrace.db")
}
