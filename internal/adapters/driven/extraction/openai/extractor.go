// Package openai provides an Extractor backed by the OpenAI API: chat
// completions in JSON mode for documents and images, Whisper for audio
// and video.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
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
	DefaultBaseURL            = "https://api.openai.com/v1"
	DefaultModel              = "gpt-4o-mini"
	DefaultTranscriptionModel = "whisper-1"
)

// Config holds configuration for the OpenAI extractor.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	// Can be changed for Azure OpenAI or compatible APIs.
	BaseURL string

	// Model is the chat model (default: gpt-4o-mini).
	Model string

	// TranscriptionModel is the audio model (default: whisper-1).
	TranscriptionModel string

	// Prompts overrides the embedded prompt templates.
	Prompts driven.PromptStore

	// HTTPClient is used for every call. It must not carry a timeout of
	// its own; calls are bounded by the caller's context.
	HTTPClient *http.Client
}

// Extractor turns clinical documents into candidate facts using OpenAI.
type Extractor struct {
	client             *http.Client
	baseURL            string
	apiKey             string
	model              string
	transcriptionModel string
	prompts            extraction.Prompts
	chunker            *chunker.Chunker
}

// chatRequest is the OpenAI /chat/completions request format.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatMessage content is either a string or a list of content parts.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
	File     *filePart `json:"file,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type filePart struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

// chatResponse is the OpenAI /chat/completions response format.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// New creates an OpenAI extractor.
func New(cfg Config) (*Extractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.TranscriptionModel == "" {
		cfg.TranscriptionModel = DefaultTranscriptionModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	return &Extractor{
		client:             cfg.HTTPClient,
		baseURL:            strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:             cfg.APIKey,
		model:              cfg.Model,
		transcriptionModel: cfg.TranscriptionModel,
		prompts:            extraction.Prompts{Store: cfg.Prompts},
		chunker:            chunker.New(),
	}, nil
}

// Name identifies the provider and model.
func (e *Extractor) Name() string {
	return "openai/" + e.model
}

// Extract returns the facts found in data. Text is split into chunks that
// fit the model context; audio and video are transcribed first.
func (e *Extractor) Extract(ctx context.Context, data []byte, mimeType string) ([]domain.RawCandidate, error) {
	switch domain.KindOfMIME(mimeType) {
	case domain.MediaText:
		return e.extractText(ctx, string(data), driven.PromptClinicalExtract)

	case domain.MediaAudio, domain.MediaVideo:
		transcript, err := e.transcribe(ctx, data, mimeType)
		if err != nil {
			return nil, err
		}
		return e.extractText(ctx, transcript, driven.PromptMedicationExtract)

	case domain.MediaImage:
		return e.extractAttachment(ctx, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: dataURI(mimeType, data)},
		})

	default:
		if mimeType == "application/pdf" {
			return e.extractAttachment(ctx, contentPart{
				Type: "file",
				File: &filePart{Filename: "document.pdf", FileData: dataURI(mimeType, data)},
			})
		}
		return nil, fmt.Errorf("openai: %s: %w", mimeType, domain.ErrUnsupportedType)
	}
}

func (e *Extractor) extractText(ctx context.Context, text, promptName string) ([]domain.RawCandidate, error) {
	chunks := e.chunker.Split(text)
	if len(chunks) > 1 {
		logger.Debug("openai: splitting %d runes into %d chunks", len([]rune(text)), len(chunks))
	}

	var out []domain.RawCandidate
	for _, chunk := range chunks {
		prompt, err := e.prompts.Render(promptName, chunk)
		if err != nil {
			return nil, err
		}
		reply, err := e.chat(ctx, prompt)
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

func (e *Extractor) extractAttachment(ctx context.Context, part contentPart) ([]domain.RawCandidate, error) {
	instructions, err := e.prompts.Render(driven.PromptClinicalExtract, "(documento anexo)")
	if err != nil {
		return nil, err
	}

	reply, err := e.chat(ctx, []contentPart{{Type: "text", Text: instructions}, part})
	if err != nil {
		return nil, err
	}
	return extraction.ParseResponse(reply)
}

// CleanupText tidies OCR or transcription text for a narrative note.
func (e *Extractor) CleanupText(ctx context.Context, text string) (string, error) {
	prompt, err := e.prompts.Render(driven.PromptCleanup, text)
	if err != nil {
		return "", err
	}
	reply, err := e.chat(ctx, prompt)
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
	reply, err := e.chat(ctx, prompt)
	if err != nil {
		return "", err
	}
	return extraction.ParseIngredient(reply)
}

// chat sends one JSON-mode completion with the system prompt and returns
// the reply text. userContent is a string or a list of content parts.
func (e *Extractor) chat(ctx context.Context, userContent any) (string, error) {
	system, err := e.prompts.Load(driven.PromptSystem)
	if err != nil {
		return "", err
	}

	reqBody := chatRequest{
		Model: e.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: userContent},
		},
		Temperature:    0.2,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
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
	if chatResp.Error != nil {
		return "", fmt.Errorf("openai error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("openai: no response choices returned")
	}
	if reason := chatResp.Choices[0].FinishReason; reason == "length" {
		return "", fmt.Errorf("openai: reply truncated (finish_reason=%s)", reason)
	}

	return chatResp.Choices[0].Message.Content, nil
}

// transcribe sends audio or video to the transcription endpoint.
func (e *Extractor) transcribe(ctx context.Context, data []byte, mimeType string) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("model", e.transcriptionModel); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if err := w.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("write format field: %w", err)
	}
	part, err := w.CreateFormFile("file", "upload"+extensionFor(mimeType))
	if err != nil {
		return "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	body, err := e.do(req)
	if err != nil {
		return "", err
	}

	var resp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode transcription: %w", err)
	}
	logger.Debug("openai: transcribed %d bytes into %d runes", len(data), len([]rune(resp.Text)))
	return resp.Text, nil
}

// do authenticates and sends req, mapping error statuses.
func (e *Extractor) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

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
		return nil, &extraction.RateLimitError{Provider: "openai", RetryAfter: extraction.RetryAfter(resp.Header)}
	case resp.StatusCode != http.StatusOK:
		var wrapped struct {
			Error *apiError `json:"error"`
		}
		if json.Unmarshal(body, &wrapped) == nil && wrapped.Error != nil {
			return nil, fmt.Errorf("openai error (status %d): %s", resp.StatusCode, wrapped.Error.Message)
		}
		return nil, fmt.Errorf("openai error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// Ping validates the API key by listing models, without running inference.
func (e *Extractor) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("openai: failed to create ping request: %w", err)
	}
	if _, err := e.do(req); err != nil {
		return fmt.Errorf("openai: ping failed: %w", err)
	}
	return nil
}

func dataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// extensionFor names the upload so the transcription endpoint can detect
// the container format.
func extensionFor(mimeType string) string {
	switch mimeType {
	case "audio/mpeg":
		return ".mp3"
	case "audio/mp4", "audio/x-m4a", "audio/m4a":
		return ".m4a"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	case "audio/webm", "video/webm":
		return ".webm"
	case "video/mp4":
		return ".mp4"
	}
	if _, sub, ok := strings.Cut(mimeType, "/"); ok {
		return "." + filepath.Base(sub)
	}
	return ""
}
