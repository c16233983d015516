package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider implements Provider and Embedder against the Gemini API.
type GeminiProvider struct {
	client     *genai.Client
	model      string
	embedModel string
	embedDim   int32
	retry      RetryConfig
	logger     *slog.Logger
}

// GeminiConfig configures NewGemini.
type GeminiConfig struct {
	APIKey     string
	Model      string // e.g. "gemini-2.5-flash"
	EmbedModel string // e.g. "gemini-embedding-001"
	EmbedDim   int    // output dimensionality; gemini-embedding-001 truncates to this
	Retry      RetryConfig
}

// NewGemini creates a Gemini provider.
func NewGemini(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 && retry.InitialInterval == 0 {
		retry = DefaultRetryConfig()
	}

	return &GeminiProvider{
		client:     client,
		model:      cfg.Model,
		embedModel: cfg.EmbedModel,
		embedDim:   int32(cfg.EmbedDim),
		retry:      retry,
		logger:     logger.With("provider", "gemini"),
	}, nil
}

// Name returns "gemini".
func (p *GeminiProvider) Name() string { return "gemini" }

// Complete sends a generation request.
func (p *GeminiProvider) Complete(ctx context.Context, req Request) (string, error) {
	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.System != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.ForceJSON {
		genCfg.ResponseMIMEType = "application/json"
	}

	resp, err := withRetry(ctx, p.logger, p.retry, "gemini generate content",
		func(ctx context.Context) (*genai.GenerateContentResponse, error) {
			return p.client.Models.GenerateContent(ctx, p.model,
				genai.Text(req.Prompt), genCfg)
		})
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(text), nil
}

// Embed generates embeddings for the given texts.
func (p *GeminiProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	embCfg := &genai.EmbedContentConfig{}
	if p.embedDim > 0 {
		embCfg.OutputDimensionality = genai.Ptr(p.embedDim)
	}

	resp, err := withRetry(ctx, p.logger, p.retry, "gemini embed content",
		func(ctx context.Context) (*genai.EmbedContentResponse, error) {
			return p.client.Models.EmbedContent(ctx, p.embedModel, contents, embCfg)
		})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vectors[i] = e.Values
	}
	return vectors, nil
}
