// Package ollama provides an Extractor backed by a local Ollama server.
// Only text and images are supported; PDFs reach it as text through the
// normaliser and audio is rejected.
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/custodia-labs/clinitrace/internal/adapters/driven/extraction"
	"github.com/custodia-labs/clinitrace/internal/adapters/driven/extraction/chunker"
	"github.com/custodia-labs/clinitrace/internal/core/domain"
	"github.com/custodia-labs/clinitrace/internal/core/ports/driven"
	"github.com/custodia-labs/clinitrace/internal/logger"
)

// Ensure Extractor implements the interfaces.
var (
	_ driven.Extractor          = (*Extractor)(nil)
	_ driven.IngredientResolver = (*Extractor)(nil)
)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"
)

// Config holds configuration for the Ollama extractor.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the chat model (default: llama3.2). Images need a vision
	// model such as llava.
	Model string

	// Prompts overrides the embedded prompt templates.
	Prompts driven.PromptStore

	// HTTPClient is used for every call. Calls are bounded by the
	// caller's context.
	HTTPClient *http.Client
}

// Extractor turns clinical documents into candidate facts using Ollama.
type Extractor struct {
	client  *http.Client
	baseURL string
	model   string
	prompts extraction.Prompts
	chunker *chunker.Chunker
}

// chatRequest is the Ollama /api/chat request format.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Format   string        `json:"format,omitempty"`
	Stream   bool          `json:"stream"`
	Options  *options      `json:"options,omitempty"`
}

type options struct {
	Temperature float64 `json:"temperature"`
}

// chatMessage carries images as base64 strings.
type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// chatResponse is the Ollama /api/chat response format.
type chatResponse struct {
	Message    chatMessage `json:"message"`
	Done       bool        `json:"done"`
	DoneReason string      `json:"done_reason"`
	Error      string      `json:"error,omitempty"`
}

// New creates an Ollama extractor. No credentials are needed.
func New(cfg Config) *Extractor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	return &Extractor{
		client:  cfg.HTTPClient,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		model:   cfg.Model,
		prompts: extraction.Prompts{Store: cfg.Prompts},
		chunker: chunker.New(),
	}
}

// Name identifies the provider and model.
func (e *Extractor) Name() string {
	return "ollama/" + e.model
}

// Extract returns the facts found in data.
func (e *Extractor) Extract(ctx context.Context, data []byte, mimeType string) ([]domain.RawCandidate, error) {
	switch domain.KindOfMIME(mimeType) {
	case domain.MediaText:
		return e.extractText(ctx, string(data))

	case domain.MediaImage:
		instructions, err := e.prompts.Render(driven.PromptClinicalExtract, "(imagem anexa)")
		if err != nil {
			return nil, err
		}
		reply, err := e.chat(ctx, chatMessage{
			Role:    "user",
			Content: instructions,
			Images:  []string{base64.StdEncoding.EncodeToString(data)},
		})
		if err != nil {
			return nil, err
		}
		return extraction.ParseResponse(reply)

	default:
		return nil, fmt.Errorf("ollama: %s: %w", mimeType, domain.ErrUnsupportedType)
	}
}

func (e *Extractor) extractText(ctx context.Context, text string) ([]domain.RawCandidate, error) {
	chunks := e.chunker.Split(text)
	if len(chunks) > 1 {
		logger.Debug("ollama: splitting %d runes into %d chunks", len([]rune(text)), len(chunks))
	}

	var out []domain.RawCandidate
	for _, chunk := range chunks {
		prompt, err := e.prompts.Render(driven.PromptClinicalExtract, chunk)
		if err != nil {
			return nil, err
		}
		reply, err := e.chat(ctx, chatMessage{Role: "user", Content: prompt})
		if err != nil {
			return nil, err
		}
		candidates, err := extraction.ParseResponse(reply)
		if err != nil {
			return nil, err
		}
		out = append(out, candidates...)
	}
	return out, nil
}

// CleanupText tidies OCR or transcription text for a narrative note.
func (e *Extractor) CleanupText(ctx context.Context, text string) (string, error) {
	prompt, err := e.prompts.Render(driven.PromptCleanup, text)
	if err != nil {
		return "", err
	}
	reply, err := e.chat(ctx, chatMessage{Role: "user", Content: prompt})
	if err != nil {
		return "", err
	}
	return extraction.ParseCleanup(reply), nil
}

// ResolveIngredient asks the model for the active ingredient of a
// medication name.
func (e *Extractor) ResolveIngredient(ctx context.Context, name string) (string, error) {
	prompt, err := e.prompts.Render(driven.PromptIngredient, name)
	if err != nil {
		return "", err
	}
	reply, err := e.chat(ctx, chatMessage{Role: "user", Content: prompt})
	if err != nil {
		return "", err
	}
	return extraction.ParseIngredient(reply)
}

// chat sends one JSON-format, non-streaming chat with the system prompt.
func (e *Extractor) chat(ctx context.Context, user chatMessage) (string, error) {
	system, err := e.prompts.Load(driven.PromptSystem)
	if err != nil {
		return "", err
	}

	reqBody := chatRequest{
		Model:    e.model,
		Messages: []chatMessage{{Role: "system", Content: system}, user},
		Format:   "json",
		Stream:   false,
		Options:  &options{Temperature: 0.2},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := e.do(req)
	if err != nil {
		return "", err
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if chatResp.Error != "" {
		return "", fmt.Errorf("ollama error: %s", chatResp.Error)
	}
	if chatResp.DoneReason == "length" {
		return "", fmt.Errorf("ollama: reply truncated (done_reason=%s)", chatResp.DoneReason)
	}
	return chatResp.Message.Content, nil
}

// do sends req and maps error statuses.
func (e *Extractor) do(req *http.Request) ([]byte, error) {
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &extraction.RateLimitError{Provider: "ollama", RetryAfter: extraction.RetryAfter(resp.Header)}
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// Ping checks the server is reachable by listing local models, without
// running inference.
func (e *Extractor) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: failed to create ping request: %w", err)
	}
	if _, err := e.do(req); err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	return nil
}
