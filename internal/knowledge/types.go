package knowledge

import "time"

// Record type constants stored under the "type" metadata key.
const (
	// TypeOfficialDocument marks chunks ingested from uploaded official
	// documents and policies.
	TypeOfficialDocument = "official_document"

	// TypeChatHistory marks chunks written back from completed exchanges.
	TypeChatHistory = "chat_history"
)

// VectorDimension is the embedding dimensionality the documents table is
// provisioned for. Inserts with a different dimensionality fail.
const VectorDimension = 768

// Document is one indexed chunk: text, embedding, and metadata.
// Documents are immutable once written; re-ingesting produces new chunks.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
	CreateAt time.Time
}

// Result is a single search hit with its similarity score.
type Result struct {
	Document   Document
	Similarity float32 // cosine similarity, higher is closer
}

// SearchOption configures Search using the functional options pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK    int
	filter  map[string]string
	timeout time.Duration
}

// WithTopK sets the maximum number of results to return. Default 5.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		c.topK = k
	}
}

// WithFilter adds an exact-match metadata constraint. Multiple calls AND
// together. Example: WithFilter("department", "HR").
func WithFilter(key, value string) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = make(map[string]string)
		}
		c.filter[key] = value
	}
}

// WithTimeout overrides the per-search timeout. Default 10s.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		c.timeout = d
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:    5,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
