// Package config provides application configuration with multi-source
// priority: environment variables override the config file
// (~/.diet-tracker/config.yaml), which overrides built-in defaults.
//
// Sensitive values (database password, API keys, JWT secret) are masked in
// MarshalJSON; update that method when adding new secret fields.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the LLM provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidEmbedDimension indicates the embedder dimension does not
	// match the pgvector schema.
	ErrInvalidEmbedDimension = errors.New("invalid embedding dimension")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrMissingJWTSecret indicates the API JWT secret is not set.
	ErrMissingJWTSecret = errors.New("missing JWT secret")

	// ErrInvalidJWTSecret indicates the JWT secret is too short.
	ErrInvalidJWTSecret = errors.New("invalid JWT secret")

	// ErrInvalidScrapeRate indicates the per-host scrape rate is out of range.
	ErrInvalidScrapeRate = errors.New("invalid scrape rate")
)

// LLM provider identifiers used in Config.Provider.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

const (
	// DefaultEmbedDimension matches the pgvector column in
	// db/migrations; both the OpenAI and Gemini embedders are configured
	// to produce vectors of this size.
	DefaultEmbedDimension = 1536

	// DefaultClassifyModel is the default model for policy extraction.
	DefaultClassifyModel = "gpt-4o-mini"

	// DefaultEmbedModel is the default embedding model.
	DefaultEmbedModel = "text-embedding-3-small"

	// DefaultUserAgent identifies the scraper to Diet websites.
	DefaultUserAgent = "diet-tracker/1.0 (+https://github.com/seiji-watch/diet-tracker)"

	// minJWTSecretLen is the minimum HS256 secret length in bytes.
	minJWTSecretLen = 32
)

// Config stores application configuration.
type Config struct {
	// LLM provider and model configuration
	Provider       string `mapstructure:"provider" json:"provider"` // "openai" (default) or "gemini"
	OpenAIAPIKey   string `mapstructure:"openai_api_key" json:"openai_api_key"`
	GeminiAPIKey   string `mapstructure:"gemini_api_key" json:"gemini_api_key"`
	ClassifyModel  string `mapstructure:"classify_model" json:"classify_model"`
	EmbedModel     string `mapstructure:"embed_model" json:"embed_model"`
	EmbedDimension int    `mapstructure:"embed_dimension" json:"embed_dimension"`

	// Classification
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" json:"confidence_threshold"`

	// PostgreSQL (DATABASE_URL, when set, overrides the individual fields)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_dbname" json:"postgres_dbname"`
	PostgresSSLMode  string `mapstructure:"postgres_sslmode" json:"postgres_sslmode"`

	// Airtable editorial store
	AirtableAPIKey string  `mapstructure:"airtable_api_key" json:"airtable_api_key"`
	AirtableBaseID string  `mapstructure:"airtable_base_id" json:"airtable_base_id"`
	AirtableRate   float64 `mapstructure:"airtable_rate" json:"airtable_rate"` // requests/sec, Airtable caps at 5

	// Scraper
	ScrapeUserAgent string        `mapstructure:"scrape_user_agent" json:"scrape_user_agent"`
	ScrapeRate      float64       `mapstructure:"scrape_rate" json:"scrape_rate"` // requests/sec per host
	ScrapeTimeout   time.Duration `mapstructure:"scrape_timeout" json:"scrape_timeout"`

	// API server
	APIAddr     string   `mapstructure:"api_addr" json:"api_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	JWTSecret   string   `mapstructure:"jwt_secret" json:"jwt_secret"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`
	IsDev       bool     `mapstructure:"dev" json:"dev"`

	// Observability
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" json:"service_name"`
	Environment  string `mapstructure:"environment" json:"environment"`
	TraceEnabled bool   `mapstructure:"trace_enabled" json:"trace_enabled"`
}

// Load reads configuration from defaults, the config file, and the
// environment (DIET_ prefix plus the conventional DATABASE_URL,
// AIRTABLE_API_KEY, OPENAI_API_KEY, and GEMINI_API_KEY variables).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".diet-tracker"))
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("DIET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// No config file is fine; env and defaults carry it.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Conventional un-prefixed env vars take precedence over everything.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.OpenAIAPIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.GeminiAPIKey = key
	}
	if key := os.Getenv("AIRTABLE_API_KEY"); key != "" {
		cfg.AirtableAPIKey = key
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.JWTSecret = secret
	}
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderOpenAI)
	v.SetDefault("classify_model", DefaultClassifyModel)
	v.SetDefault("embed_model", DefaultEmbedModel)
	v.SetDefault("embed_dimension", DefaultEmbedDimension)
	v.SetDefault("confidence_threshold", 0.5)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "diet_tracker")
	v.SetDefault("postgres_dbname", "diet_tracker")
	v.SetDefault("postgres_sslmode", "disable")

	v.SetDefault("airtable_rate", 5.0)

	v.SetDefault("scrape_user_agent", DefaultUserAgent)
	v.SetDefault("scrape_rate", 0.5)
	v.SetDefault("scrape_timeout", 30*time.Second)

	v.SetDefault("api_addr", ":8080")
	v.SetDefault("rate_burst", 60)

	v.SetDefault("otlp_endpoint", "localhost:4318")
	v.SetDefault("service_name", "diet-tracker")
	v.SetDefault("environment", "dev")
}

// MarshalJSON masks secrets so configs can be logged safely.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	masked := alias(c)
	masked.PostgresPassword = mask(masked.PostgresPassword)
	masked.OpenAIAPIKey = mask(masked.OpenAIAPIKey)
	masked.GeminiAPIKey = mask(masked.GeminiAPIKey)
	masked.AirtableAPIKey = mask(masked.AirtableAPIKey)
	masked.JWTSecret = mask(masked.JWTSecret)
	return json.Marshal(masked)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}
