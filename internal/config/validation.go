package config

import (
	"fmt"
	"os"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if !slices.Contains([]string{ProviderGemini, ProviderOllama, ProviderOpenAI}, c.Provider) {
		return fmt.Errorf("%w: %q (supported: gemini, ollama, openai)", ErrInvalidProvider, c.Provider)
	}

	switch c.Provider {
	case ProviderGemini:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required", ErrMissingAPIKey)
		}
	case ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY environment variable is required", ErrMissingAPIKey)
		}
	case ProviderOllama:
		if c.OllamaHost == "" {
			return fmt.Errorf("%w: ollama_host cannot be empty", ErrInvalidProvider)
		}
	}

	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgres)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port must be between 1 and 65535, got %d", ErrInvalidPostgres, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgres)
	}
	if !slices.Contains([]string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}, c.PostgresSSLMode) {
		return fmt.Errorf("%w: unknown sslmode %q", ErrInvalidPostgres, c.PostgresSSLMode)
	}

	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d", ErrInvalidChunking, c.ChunkOverlap)
	}

	if c.DocumentTopK < 1 || c.DocumentTopK > 20 {
		return fmt.Errorf("%w: document_top_k must be between 1 and 20, got %d", ErrInvalidRetrieval, c.DocumentTopK)
	}
	if c.HistoryTopK < 1 || c.HistoryTopK > 20 {
		return fmt.Errorf("%w: history_top_k must be between 1 and 20, got %d", ErrInvalidRetrieval, c.HistoryTopK)
	}
	if c.DocumentPreviewLen < 1 || c.HistoryPreviewLen < 1 {
		return fmt.Errorf("%w: preview lengths must be positive", ErrInvalidRetrieval)
	}

	if c.MaxToolIterations < 1 || c.MaxToolIterations > 10 {
		return fmt.Errorf("%w: max_tool_iterations must be between 1 and 10, got %d", ErrInvalidOrchestration, c.MaxToolIterations)
	}
	if c.MemoryWindow < 0 || c.MemoryWindow > 100 {
		return fmt.Errorf("%w: memory_window must be between 0 and 100, got %d", ErrInvalidOrchestration, c.MemoryWindow)
	}

	return nil
}
