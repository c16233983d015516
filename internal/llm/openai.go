package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Provider and Embedder against the OpenAI API.
type OpenAIProvider struct {
	client     *openai.Client
	model      string
	embedModel string
	embedDim   int
	retry      RetryConfig
	logger     *slog.Logger
}

// OpenAIConfig configures NewOpenAI.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // optional override for proxies
	Model      string // chat model, e.g. "gpt-4o-mini"
	EmbedModel string // e.g. "text-embedding-3-small"
	EmbedDim   int
	Retry      RetryConfig
}

// NewOpenAI creates an OpenAI provider.
func NewOpenAI(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 && retry.InitialInterval == 0 {
		retry = DefaultRetryConfig()
	}

	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      cfg.Model,
		embedModel: cfg.EmbedModel,
		embedDim:   cfg.EmbedDim,
		retry:      retry,
		logger:     logger.With("provider", "openai"),
	}, nil
}

// Name returns "openai".
func (p *OpenAIProvider) Name() string { return "openai" }

// Complete sends a chat completion request.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (string, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.ForceJSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := withRetry(ctx, p.logger, p.retry, "openai chat completion",
		func(ctx context.Context) (openai.ChatCompletionResponse, error) {
			return p.client.CreateChatCompletion(ctx, chatReq)
		})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Embed generates embeddings for the given texts in a single batch call.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embReq := openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(p.embedModel),
		Input:      texts,
		Dimensions: p.embedDim,
	}

	resp, err := withRetry(ctx, p.logger, p.retry, "openai embeddings",
		func(ctx context.Context) (openai.EmbeddingResponse, error) {
			return p.client.CreateEmbeddings(ctx, embReq)
		})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
