package config

import (
	"fmt"
	"strings"
)

var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// Validate checks the full configuration and returns the first problem
// found, wrapped around the matching sentinel error.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	return c.ValidateIngest()
}

// ValidateIngest checks only what the scrape and migrate commands need:
// the database and the scraper settings. No LLM key is required.
func (c *Config) ValidateIngest() error {
	if c == nil {
		return ErrConfigNil
	}

	if err := c.validatePostgres(); err != nil {
		return err
	}

	if c.ScrapeRate <= 0 || c.ScrapeRate > 10 {
		return fmt.Errorf("%w: %g requests/sec per host (must be in (0, 10])", ErrInvalidScrapeRate, c.ScrapeRate)
	}

	return nil
}

func (c *Config) validateLLM() error {
	switch c.Provider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY required for provider %q", ErrMissingAPIKey, c.Provider)
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY required for provider %q", ErrMissingAPIKey, c.Provider)
		}
	default:
		return fmt.Errorf("%w: %q (expected %q or %q)", ErrInvalidProvider, c.Provider, ProviderOpenAI, ProviderGemini)
	}

	if c.EmbedDimension <= 0 || c.EmbedDimension > 4096 {
		return fmt.Errorf("%w: %d", ErrInvalidEmbedDimension, c.EmbedDimension)
	}

	return nil
}

// ValidateAPI checks what the serve command needs: the database and the
// JWT verification key. The LLM key is optional there; without one the
// server runs with semantic search disabled.
func (c *Config) ValidateAPI() error {
	if c == nil {
		return ErrConfigNil
	}
	if err := c.validatePostgres(); err != nil {
		return err
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("%w: set JWT_SECRET or jwt_secret", ErrMissingJWTSecret)
	}
	if len(c.JWTSecret) < minJWTSecretLen {
		return fmt.Errorf("%w: need at least %d bytes, got %d", ErrInvalidJWTSecret, minJWTSecretLen, len(c.JWTSecret))
	}
	return nil
}

func (c *Config) validatePostgres() error {
	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidPostgresDBName)
	}
	if !validSSLModes[c.PostgresSSLMode] {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}
	return nil
}
