package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/seiji-watch/diet-tracker/internal/config"
)

// Client bundles the two capabilities the service needs from a provider.
type Client interface {
	Provider
	Embedder
}

// New builds the configured provider. Both implementations satisfy Client.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Client, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAI(OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			Model:      cfg.ClassifyModel,
			EmbedModel: cfg.EmbedModel,
			EmbedDim:   cfg.EmbedDimension,
		}, logger)
	case config.ProviderGemini:
		return NewGemini(ctx, GeminiConfig{
			APIKey:     cfg.GeminiAPIKey,
			Model:      cfg.ClassifyModel,
			EmbedModel: cfg.EmbedModel,
			EmbedDim:   cfg.EmbedDimension,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
