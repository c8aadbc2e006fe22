// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.bureau/config.yaml)
//  3. Default values
//
// Error handling uses sentinel errors so callers can test categories with
// errors.Is().
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidPostgres indicates the PostgreSQL settings are invalid.
	ErrInvalidPostgres = errors.New("invalid PostgreSQL configuration")

	// ErrInvalidChunking indicates the chunk size or overlap is out of range.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidRetrieval indicates a retrieval depth or preview length is out of range.
	ErrInvalidRetrieval = errors.New("invalid retrieval configuration")

	// ErrInvalidOrchestration indicates the tool loop settings are out of range.
	ErrInvalidOrchestration = errors.New("invalid orchestration configuration")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// DefaultGeminiEmbedderModel outputs 3072 dimensions by default but supports
// truncation to 768, which matches the pgvector schema.
const DefaultGeminiEmbedderModel = "gemini-embedding-001"

// Config stores application configuration.
type Config struct {
	// AI provider and model configuration
	Provider      string  `mapstructure:"provider"`
	ModelName     string  `mapstructure:"model_name"`
	Temperature   float32 `mapstructure:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens"`
	EmbedderModel string  `mapstructure:"embedder_model"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`

	// Ingestion configuration
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`

	// Retrieval configuration
	DocumentTopK       int `mapstructure:"document_top_k"`
	HistoryTopK        int `mapstructure:"history_top_k"`
	DocumentPreviewLen int `mapstructure:"document_preview_len"`
	HistoryPreviewLen  int `mapstructure:"history_preview_len"`

	// Orchestration configuration
	MaxToolIterations int `mapstructure:"max_tool_iterations"`
	MemoryWindow      int `mapstructure:"memory_window"`

	// Employee portal configuration
	PortalBaseURL string `mapstructure:"portal_base_url"`
	PortalAPIKey  string `mapstructure:"portal_api_key"`

	// HTTP server configuration
	HTTPAddr string `mapstructure:"http_addr"`

	// Observability configuration
	TracingEndpoint    string `mapstructure:"tracing_endpoint"`
	TracingEnvironment string `mapstructure:"tracing_environment"`
	ServiceName        string `mapstructure:"service_name"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".bureau")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine, defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("temperature", 0.3)
	viper.SetDefault("max_tokens", 2048)
	viper.SetDefault("embedder_model", DefaultGeminiEmbedderModel)

	// Ollama defaults
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "bureau")
	viper.SetDefault("postgres_password", "bureau_dev_password")
	viper.SetDefault("postgres_db_name", "bureau")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Ingestion defaults
	viper.SetDefault("chunk_size", 1000)
	viper.SetDefault("chunk_overlap", 100)

	// Retrieval defaults
	viper.SetDefault("document_top_k", 3)
	viper.SetDefault("history_top_k", 2)
	viper.SetDefault("document_preview_len", 300)
	viper.SetDefault("history_preview_len", 200)

	// Orchestration defaults
	viper.SetDefault("max_tool_iterations", 3)
	viper.SetDefault("memory_window", 5)

	// HTTP server defaults
	viper.SetDefault("http_addr", ":8080")

	// Observability defaults
	viper.SetDefault("tracing_environment", "dev")
	viper.SetDefault("service_name", "bureau")
}

// bindEnvVariables binds environment variables explicitly.
// GEMINI_API_KEY and OPENAI_API_KEY are read directly by the Genkit plugins,
// not via Viper; Validate checks their presence for the selected provider.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "BUREAU_PROVIDER")
	mustBind("model_name", "BUREAU_MODEL_NAME")
	mustBind("embedder_model", "BUREAU_EMBEDDER_MODEL")
	mustBind("ollama_host", "BUREAU_OLLAMA_HOST")
	mustBind("portal_base_url", "BUREAU_PORTAL_BASE_URL")
	mustBind("portal_api_key", "BUREAU_PORTAL_API_KEY")
	mustBind("http_addr", "BUREAU_HTTP_ADDR")
	mustBind("tracing_endpoint", "BUREAU_TRACING_ENDPOINT")
}
