// Package gemini provides an Extractor backed by Google Gemini. Gemini reads
// PDFs, images, audio and video natively, so no local normalisation or
// transcription step is needed for those types.
package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

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

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gemini-1.5-flash"

	// InlineLimit is the largest payload sent inline with the request.
	// Larger files go through the File API.
	InlineLimit = 18 << 20

	filePollInterval = 2 * time.Second
)

// Config holds configuration for the Gemini extractor.
type Config struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// Model is the Gemini model (default: gemini-1.5-flash).
	Model string

	// Endpoint overrides the API endpoint.
	Endpoint string

	// Prompts overrides the embedded prompt templates.
	Prompts driven.PromptStore
}

// backend is the part of the Gemini client the extractor uses.
type backend interface {
	Generate(ctx context.Context, system string, parts ...genai.Part) (string, error)
	Upload(ctx context.Context, data []byte, mimeType string) (genai.Part, func(), error)
	Close() error
}

// Extractor turns clinical documents into candidate facts using Gemini.
type Extractor struct {
	backend backend
	model   string
	prompts extraction.Prompts
	chunker *chunker.Chunker
}

// New creates a Gemini extractor.
func New(ctx context.Context, cfg Config) (*Extractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return newExtractor(&clientBackend{client: client, model: cfg.Model}, cfg.Model, cfg.Prompts), nil
}

func newExtractor(b backend, model string, prompts driven.PromptStore) *Extractor {
	return &Extractor{
		backend: b,
		model:   model,
		prompts: extraction.Prompts{Store: prompts},
		chunker: chunker.New(),
	}
}

// Close releases the client connection.
func (e *Extractor) Close() error {
	return e.backend.Close()
}

// Name identifies the provider and model.
func (e *Extractor) Name() string {
	return "gemini/" + e.model
}

// Extract returns the facts found in data.
func (e *Extractor) Extract(ctx context.Context, data []byte, mimeType string) ([]domain.RawCandidate, error) {
	kind := domain.KindOfMIME(mimeType)
	if kind == domain.MediaText {
		return e.extractText(ctx, string(data))
	}
	if kind == domain.MediaUnknown || (kind == domain.MediaDocument && mimeType != "application/pdf") {
		return nil, fmt.Errorf("gemini: %s: %w", mimeType, domain.ErrUnsupportedType)
	}

	var part genai.Part = genai.Blob{MIMEType: mimeType, Data: data}
	if len(data) > InlineLimit {
		uploaded, release, err := e.backend.Upload(ctx, data, mimeType)
		if err != nil {
			return nil, err
		}
		defer release()
		part = uploaded
	}

	instructions, err := e.prompts.Render(extraction.PromptFor(mimeType), "(arquivo anexo)")
	if err != nil {
		return nil, err
	}

	reply, err := e.generate(ctx, genai.Text(instructions), part)
	if err != nil {
		return nil, err
	}
	return extraction.ParseResponse(reply)
}

func (e *Extractor) extractText(ctx context.Context, text string) ([]domain.RawCandidate, error) {
	var out []domain.RawCandidate
	for _, chunk := range e.chunker.Split(text) {
		prompt, err := e.prompts.Render(driven.PromptClinicalExtract, chunk)
		if err != nil {
			return nil, err
		}
		reply, err := e.generate(ctx, genai.Text(prompt))
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
	reply, err := e.generate(ctx, genai.Text(prompt))
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
	reply, err := e.generate(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	return extraction.ParseIngredient(reply)
}

func (e *Extractor) generate(ctx context.Context, parts ...genai.Part) (string, error) {
	system, err := e.prompts.Load(driven.PromptSystem)
	if err != nil {
		return "", err
	}
	reply, err := e.backend.Generate(ctx, system, parts...)
	if err != nil {
		if isRateLimit(err) {
			return "", &extraction.RateLimitError{Provider: "gemini"}
		}
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	return reply, nil
}

func isRateLimit(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	return status.Code(err) == codes.ResourceExhausted
}

// ==================== Client backend ====================

// clientBackend adapts *genai.Client.
type clientBackend struct {
	client *genai.Client
	model  string
}

func (b *clientBackend) Generate(ctx context.Context, system string, parts ...genai.Part) (string, error) {
	model := b.client.GenerativeModel(b.model)
	model.SetTemperature(0.2)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonMaxTokens {
		return "", fmt.Errorf("gemini reply truncated")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String(), nil
}

// Upload sends data through the File API and waits until the file can be
// referenced. The release func deletes the remote copy.
func (b *clientBackend) Upload(ctx context.Context, data []byte, mimeType string) (genai.Part, func(), error) {
	file, err := b.client.UploadFile(ctx, "", bytes.NewReader(data), &genai.UploadFileOptions{MIMEType: mimeType})
	if err != nil {
		return nil, nil, fmt.Errorf("gemini upload failed: %w", err)
	}
	name := file.Name
	release := func() {
		if err := b.client.DeleteFile(context.WithoutCancel(ctx), name); err != nil {
			logger.Warn("gemini: failed to delete uploaded file %s: %v", name, err)
		}
	}

	for file.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			release()
			return nil, nil, ctx.Err()
		case <-time.After(filePollInterval):
		}
		if file, err = b.client.GetFile(ctx, name); err != nil {
			release()
			return nil, nil, fmt.Errorf("gemini upload status: %w", err)
		}
	}
	if file.State == genai.FileStateFailed {
		release()
		return nil, nil, fmt.Errorf("gemini could not process %s upload", mimeType)
	}

	logger.Debug("gemini: uploaded %d bytes as %s", len(data), name)
	return genai.FileData{MIMEType: file.MIMEType, URI: file.URI}, release, nil
}

func (b *clientBackend) Close() error {
	return b.client.Close()
}
