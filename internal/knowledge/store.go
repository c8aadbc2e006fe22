// Package knowledge persists (text, embedding, metadata) triples and serves
// nearest-neighbor search with exact-match metadata filtering.
//
// Store owns embedding generation: callers hand it plain text and the store
// talks to the embedding gateway before touching the database. The database
// side sits behind the Querier interface so tests can swap in a mock or an
// in-memory implementation.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/bureauhq/bureau/internal/log"
)

// ErrUnavailable indicates the index backend could not be reached.
var ErrUnavailable = errors.New("index store unavailable")

// InsertParams holds one row for a batch insert.
type InsertParams struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  []byte
	CreatedAt time.Time
}

// SearchParams holds a filtered vector search request.
type SearchParams struct {
	QueryEmbedding []float32
	FilterMetadata []byte // JSONB containment filter, nil for unfiltered
	Limit          int32
}

// SearchRow is one row returned by a vector search.
type SearchRow struct {
	ID         string
	Content    string
	Metadata   []byte
	CreatedAt  time.Time
	Similarity float32
}

// Querier defines the database operations Store needs. Defined here, by the
// consumer; Queries (postgres.go) is the production implementation.
type Querier interface {
	InsertDocuments(ctx context.Context, rows []InsertParams) error
	SearchDocuments(ctx context.Context, arg SearchParams) ([]SearchRow, error)
	DeleteDocuments(ctx context.Context, ids []string) error
	CountDocuments(ctx context.Context, filterMetadata []byte) (int64, error)
	ListDocumentsByType(ctx context.Context, recordType string, limit int32) ([]SearchRow, error)
}

// Store manages indexed chunks with vector search. Safe for concurrent use.
type Store struct {
	queries  Querier
	embedder ai.Embedder
	logger   log.Logger
}

// New creates a Store. A nil logger falls back to a no-op logger.
func New(querier Querier, embedder ai.Embedder, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		queries:  querier,
		embedder: embedder,
		logger:   logger,
	}
}

// AddBatch embeds every document's content in one gateway call and writes the
// whole batch to the index. It returns the store-assigned chunk IDs, in input
// order.
//
// Failure of the gateway or the index fails the entire call; no partial batch
// is reported as indexed and no placeholder IDs are fabricated.
func (s *Store) AddBatch(ctx context.Context, docs []Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	input := make([]*ai.Document, len(docs))
	for i, doc := range docs {
		input[i] = ai.DocumentFromText(doc.Content, nil)
	}

	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{Input: input})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding batch: %v", ErrUnavailable, err)
	}
	if len(resp.Embeddings) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents",
			len(resp.Embeddings), len(docs))
	}

	now := time.Now()
	ids := make([]string, len(docs))
	rows := make([]InsertParams, len(docs))
	for i, doc := range docs {
		vec := resp.Embeddings[i].Embedding
		if len(vec) != VectorDimension {
			return nil, fmt.Errorf("embedding dimension %d does not match index dimension %d",
				len(vec), VectorDimension)
		}

		id := doc.ID
		if id == "" {
			id = uuid.NewString()
		}
		metadataJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshaling metadata for %q: %w", id, err)
		}

		createdAt := doc.CreateAt
		if createdAt.IsZero() {
			createdAt = now
		}

		ids[i] = id
		rows[i] = InsertParams{
			ID:        id,
			Content:   doc.Content,
			Embedding: vec,
			Metadata:  metadataJSON,
			CreatedAt: createdAt,
		}
	}

	if err := s.queries.InsertDocuments(ctx, rows); err != nil {
		return nil, fmt.Errorf("%w: inserting batch: %v", ErrUnavailable, err)
	}

	s.logger.Debug("indexed batch", "chunks", len(rows))
	return ids, nil
}

// Search embeds the query and returns the most similar documents, ordered by
// descending similarity with insertion order breaking ties. Never returns
// more than the configured topK.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)
	if cfg.topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", cfg.topK)
	}

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	resp, err := s.embedder.Embed(queryCtx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(query, nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", ErrUnavailable, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, errors.New("empty embedding returned for query")
	}

	var filterJSON []byte
	if len(cfg.filter) > 0 {
		filterJSON, err = json.Marshal(cfg.filter)
		if err != nil {
			return nil, fmt.Errorf("marshaling filter: %w", err)
		}
	}

	rows, err := s.queries.SearchDocuments(queryCtx, SearchParams{
		QueryEmbedding: resp.Embeddings[0].Embedding,
		FilterMetadata: filterJSON,
		Limit:          int32(cfg.topK), // #nosec G115 -- positive, caller-bounded
	})
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrUnavailable, err)
	}

	return s.rowsToResults(rows), nil
}

// DeleteByIDs removes the given chunks. Missing IDs are not an error.
func (s *Store) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.queries.DeleteDocuments(ctx, ids); err != nil {
		return fmt.Errorf("%w: deleting %d documents: %v", ErrUnavailable, len(ids), err)
	}
	s.logger.Debug("deleted documents", "count", len(ids))
	return nil
}

// Count returns the number of documents matching the filter, or all documents
// when the filter is empty.
func (s *Store) Count(ctx context.Context, filter map[string]string) (int64, error) {
	var filterJSON []byte
	if len(filter) > 0 {
		var err error
		filterJSON, err = json.Marshal(filter)
		if err != nil {
			return 0, fmt.Errorf("marshaling filter: %w", err)
		}
	}
	count, err := s.queries.CountDocuments(ctx, filterJSON)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrUnavailable, err)
	}
	return count, nil
}

// ListByType lists documents of one record type without similarity search.
func (s *Store) ListByType(ctx context.Context, recordType string, limit int32) ([]Document, error) {
	const maxListLimit = 1000
	if limit <= 0 || limit > maxListLimit {
		return nil, fmt.Errorf("limit must be between 1 and %d, got %d", maxListLimit, limit)
	}
	if recordType != TypeOfficialDocument && recordType != TypeChatHistory {
		return nil, fmt.Errorf("invalid record type %q", recordType)
	}

	rows, err := s.queries.ListDocumentsByType(ctx, recordType, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrUnavailable, err)
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, s.rowToDocument(row))
	}
	return docs, nil
}

func (s *Store) rowsToResults(rows []SearchRow) []Result {
	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, Result{
			Document:   s.rowToDocument(row),
			Similarity: row.Similarity,
		})
	}
	return results
}

func (s *Store) rowToDocument(row SearchRow) Document {
	var metadata map[string]string
	if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
		s.logger.Warn("failed to parse metadata", "document_id", row.ID, "error", err)
		metadata = make(map[string]string)
	}
	return Document{
		ID:       row.ID,
		Content:  row.Content,
		Metadata: metadata,
		CreateAt: row.CreatedAt,
	}
}
