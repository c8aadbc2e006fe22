// Package retrieval executes metadata-filtered similarity queries against the
// knowledge store.
//
// Retrieval absence is a normal outcome, not a fault: when the backend is
// unreachable or nothing matches, Search degrades to an empty result set so
// the caller can still produce an answer, just without citations.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/bureauhq/bureau/internal/ingest"
	"github.com/bureauhq/bureau/internal/knowledge"
	"github.com/bureauhq/bureau/internal/log"
)

// searchTimeout caps one retrieval round trip so a slow index cannot stall
// the whole orchestration loop.
const searchTimeout = 5 * time.Second

// Filter is a conjunction of exact-match metadata constraints. Zero-valued
// fields impose no constraint.
type Filter struct {
	Type         string
	DocumentType string
	Department   string
	UserID       string
}

func (f Filter) options() []knowledge.SearchOption {
	var opts []knowledge.SearchOption
	if f.Type != "" {
		opts = append(opts, knowledge.WithFilter(ingest.MetaType, f.Type))
	}
	if f.DocumentType != "" {
		opts = append(opts, knowledge.WithFilter(ingest.MetaDocumentType, f.DocumentType))
	}
	if f.Department != "" {
		opts = append(opts, knowledge.WithFilter(ingest.MetaDepartment, f.Department))
	}
	if f.UserID != "" {
		opts = append(opts, knowledge.WithFilter(ingest.MetaUserID, f.UserID))
	}
	return opts
}

// Hit is a single retrieval result.
type Hit struct {
	Document knowledge.Document
	Score    float32
}

// Searcher is the slice of the knowledge store the engine needs.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// Engine runs similarity queries with metadata filtering.
type Engine struct {
	store  Searcher
	logger log.Logger
}

// New creates an Engine.
func New(store Searcher, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Engine{store: store, logger: logger}
}

// Search returns up to k hits matching the filter, ordered by descending
// score. k must be positive. Backend unavailability yields an empty result,
// not an error.
func (e *Engine) Search(ctx context.Context, query string, k int, filter Filter) ([]Hit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	searchCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	opts := append(filter.options(), knowledge.WithTopK(k))
	results, err := e.store.Search(searchCtx, query, opts...)
	if err != nil {
		// Cancellation propagates; everything else degrades to no results.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Warn("retrieval degraded to empty result", "error", err, "query_length", len(query))
		return nil, nil
	}

	hits := make([]Hit, 0, len(results))
	for _, result := range results {
		hits = append(hits, Hit{Document: result.Document, Score: result.Similarity})
	}
	return hits, nil
}
