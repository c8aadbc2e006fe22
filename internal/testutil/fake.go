// Package testutil provides shared testing utilities for the bureau project.
//
// It contains reusable fakes for the embedding gateway and the index store so
// package tests can exercise the full ingest/retrieve path without a running
// Postgres or a remote embedding model.
package testutil

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"

	"github.com/bureauhq/bureau/internal/knowledge"
)

// FakeEmbedder is a deterministic ai.Embedder. It hashes tokens into a
// fixed-dimension bag-of-words vector, so texts sharing words get high cosine
// similarity. Same input always yields the same vector.
type FakeEmbedder struct {
	// Err, when set, is returned by every Embed call.
	Err error

	mu    sync.Mutex
	calls int
}

var _ ai.Embedder = (*FakeEmbedder)(nil)

func NewFakeEmbedder() *FakeEmbedder {
	return &FakeEmbedder{}
}

func (f *FakeEmbedder) Name() string { return "fake-embedder" }

func (f *FakeEmbedder) Register(r api.Registry) {}

func (f *FakeEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		var text strings.Builder
		for _, part := range doc.Content {
			text.WriteString(part.Text)
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{
			Embedding: EmbedText(text.String()),
		})
	}
	return resp, nil
}

// Calls reports how many Embed calls were made.
func (f *FakeEmbedder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// EmbedText maps text to a normalized bag-of-words vector of
// knowledge.VectorDimension.
func EmbedText(text string) []float32 {
	vec := make([]float32, knowledge.VectorDimension)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(token, ".,;:!?\"'()")))
		vec[h.Sum32()%knowledge.VectorDimension]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}

type memoryRow struct {
	knowledge.InsertParams
	seq int
}

// MemoryQuerier is an in-memory knowledge.Querier with brute-force cosine
// search. It mirrors the Postgres implementation's contract: JSONB-style
// exact-match filtering, descending similarity, insertion order on ties.
type MemoryQuerier struct {
	// FailWith, when set, is returned by every operation; simulates an
	// unavailable index backend.
	FailWith error

	mu   sync.Mutex
	rows []memoryRow
}

var _ knowledge.Querier = (*MemoryQuerier)(nil)

func NewMemoryQuerier() *MemoryQuerier {
	return &MemoryQuerier{}
}

func (m *MemoryQuerier) InsertDocuments(ctx context.Context, rows []knowledge.InsertParams) error {
	if m.FailWith != nil {
		return m.FailWith
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		m.rows = append(m.rows, memoryRow{InsertParams: row, seq: len(m.rows)})
	}
	return nil
}

func (m *MemoryQuerier) SearchDocuments(ctx context.Context, arg knowledge.SearchParams) ([]knowledge.SearchRow, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	var filter map[string]string
	if arg.FilterMetadata != nil {
		if err := json.Unmarshal(arg.FilterMetadata, &filter); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	type scored struct {
		row        memoryRow
		similarity float32
	}
	var matches []scored
	for _, row := range m.rows {
		if !metadataMatches(row.Metadata, filter) {
			continue
		}
		matches = append(matches, scored{row, cosine(arg.QueryEmbedding, row.Embedding)})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].similarity != matches[j].similarity {
			return matches[i].similarity > matches[j].similarity
		}
		return matches[i].row.seq < matches[j].row.seq
	})

	if int32(len(matches)) > arg.Limit {
		matches = matches[:arg.Limit]
	}

	out := make([]knowledge.SearchRow, 0, len(matches))
	for _, match := range matches {
		out = append(out, knowledge.SearchRow{
			ID:         match.row.ID,
			Content:    match.row.Content,
			Metadata:   match.row.Metadata,
			CreatedAt:  match.row.CreatedAt,
			Similarity: match.similarity,
		})
	}
	return out, nil
}

func (m *MemoryQuerier) DeleteDocuments(ctx context.Context, ids []string) error {
	if m.FailWith != nil {
		return m.FailWith
	}

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	for _, row := range m.rows {
		if !drop[row.ID] {
			kept = append(kept, row)
		}
	}
	m.rows = kept
	return nil
}

func (m *MemoryQuerier) CountDocuments(ctx context.Context, filterMetadata []byte) (int64, error) {
	if m.FailWith != nil {
		return 0, m.FailWith
	}

	var filter map[string]string
	if filterMetadata != nil {
		if err := json.Unmarshal(filterMetadata, &filter); err != nil {
			return 0, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, row := range m.rows {
		if metadataMatches(row.Metadata, filter) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryQuerier) ListDocumentsByType(ctx context.Context, recordType string, limit int32) ([]knowledge.SearchRow, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var out []knowledge.SearchRow
	for i := len(m.rows) - 1; i >= 0 && int32(len(out)) < limit; i-- {
		row := m.rows[i]
		if !metadataMatches(row.Metadata, map[string]string{"type": recordType}) {
			continue
		}
		out = append(out, knowledge.SearchRow{
			ID:        row.ID,
			Content:   row.Content,
			Metadata:  row.Metadata,
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}

// Len reports the number of stored rows.
func (m *MemoryQuerier) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func metadataMatches(metadataJSON []byte, filter map[string]string) bool {
	if len(filter) == 0 {
		return true
	}
	var metadata map[string]string
	if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
		return false
	}
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
