package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bureauhq/bureau/internal/log"
)

// mockEmbedder returns fixed-dimension vectors and records call batches.
type mockEmbedder struct {
	dim     int
	err     error
	batches [][]string
}

func (m *mockEmbedder) Name() string            { return "mock/embedder" }
func (m *mockEmbedder) Register(_ api.Registry) {}

func (m *mockEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	var texts []string
	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		texts = append(texts, doc.Content[0].Text)
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{Embedding: make([]float32, m.dim)})
	}
	m.batches = append(m.batches, texts)
	return resp, nil
}

type mockQuerier struct {
	insertErr error
	searchErr error
	inserted  []InsertParams
	searched  []SearchParams
	rows      []SearchRow
}

func (m *mockQuerier) InsertDocuments(_ context.Context, rows []InsertParams) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, rows...)
	return nil
}

func (m *mockQuerier) SearchDocuments(_ context.Context, arg SearchParams) ([]SearchRow, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	m.searched = append(m.searched, arg)
	return m.rows, nil
}

func (m *mockQuerier) DeleteDocuments(context.Context, []string) error { return nil }

func (m *mockQuerier) CountDocuments(context.Context, []byte) (int64, error) { return 0, nil }

func (m *mockQuerier) ListDocumentsByType(context.Context, string, int32) ([]SearchRow, error) {
	return nil, nil
}

func TestAddBatchEmbedsOnce(t *testing.T) {
	embedder := &mockEmbedder{dim: VectorDimension}
	querier := &mockQuerier{}
	store := New(querier, embedder, log.NewNop())

	ids, err := store.AddBatch(context.Background(), []Document{
		{Content: "first chunk"},
		{Content: "second chunk"},
		{Content: "third chunk"},
	})
	require.NoError(t, err)
	require.Len(t, ids, 3)

	// One gateway call for the whole batch.
	require.Len(t, embedder.batches, 1)
	assert.Equal(t, []string{"first chunk", "second chunk", "third chunk"}, embedder.batches[0])
	assert.Len(t, querier.inserted, 3)
	for i, row := range querier.inserted {
		assert.Equal(t, ids[i], row.ID)
		assert.NotEmpty(t, row.ID)
	}
}

func TestAddBatchPreservesCallerID(t *testing.T) {
	store := New(&mockQuerier{}, &mockEmbedder{dim: VectorDimension}, log.NewNop())
	ids, err := store.AddBatch(context.Background(), []Document{{ID: "fixed-id", Content: "x"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"fixed-id"}, ids)
}

func TestAddBatchRejectsDimensionMismatch(t *testing.T) {
	store := New(&mockQuerier{}, &mockEmbedder{dim: 64}, log.NewNop())
	ids, err := store.AddBatch(context.Background(), []Document{{Content: "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension")
	assert.Nil(t, ids)
}

func TestAddBatchEmbedderFailure(t *testing.T) {
	store := New(&mockQuerier{}, &mockEmbedder{err: errors.New("gateway down")}, log.NewNop())
	ids, err := store.AddBatch(context.Background(), []Document{{Content: "x"}})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Nil(t, ids)
}

func TestAddBatchInsertFailureReportsNoIDs(t *testing.T) {
	querier := &mockQuerier{insertErr: errors.New("constraint violation")}
	store := New(querier, &mockEmbedder{dim: VectorDimension}, log.NewNop())

	ids, err := store.AddBatch(context.Background(), []Document{{Content: "x"}})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Nil(t, ids)
}

func TestAddBatchEmpty(t *testing.T) {
	store := New(&mockQuerier{}, &mockEmbedder{dim: VectorDimension}, log.NewNop())
	ids, err := store.AddBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, ids)
}

func TestSearchPassesFilter(t *testing.T) {
	querier := &mockQuerier{rows: []SearchRow{
		{ID: "1", Content: "hit", Metadata: []byte(`{"department":"HR"}`), Similarity: 0.8},
	}}
	store := New(querier, &mockEmbedder{dim: VectorDimension}, log.NewNop())

	results, err := store.Search(context.Background(), "query",
		WithTopK(4),
		WithFilter("department", "HR"),
	)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "HR", results[0].Document.Metadata["department"])
	assert.InDelta(t, 0.8, results[0].Similarity, 1e-6)

	require.Len(t, querier.searched, 1)
	assert.Equal(t, int32(4), querier.searched[0].Limit)

	var filter map[string]string
	require.NoError(t, json.Unmarshal(querier.searched[0].FilterMetadata, &filter))
	assert.Equal(t, map[string]string{"department": "HR"}, filter)
}

func TestSearchUnfiltered(t *testing.T) {
	querier := &mockQuerier{}
	store := New(querier, &mockEmbedder{dim: VectorDimension}, log.NewNop())

	_, err := store.Search(context.Background(), "query", WithTopK(5))
	require.NoError(t, err)
	require.Len(t, querier.searched, 1)
	assert.Nil(t, querier.searched[0].FilterMetadata)
}

func TestSearchRejectsNonPositiveTopK(t *testing.T) {
	store := New(&mockQuerier{}, &mockEmbedder{dim: VectorDimension}, log.NewNop())
	_, err := store.Search(context.Background(), "query", WithTopK(0))
	assert.Error(t, err)
}

func TestSearchBackendFailure(t *testing.T) {
	querier := &mockQuerier{searchErr: errors.New("connection refused")}
	store := New(querier, &mockEmbedder{dim: VectorDimension}, log.NewNop())
	_, err := store.Search(context.Background(), "query")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestListByTypeValidation(t *testing.T) {
	store := New(&mockQuerier{}, &mockEmbedder{dim: VectorDimension}, log.NewNop())

	_, err := store.ListByType(context.Background(), "secret_notes", 10)
	assert.Error(t, err)

	_, err = store.ListByType(context.Background(), TypeOfficialDocument, 0)
	assert.Error(t, err)

	_, err = store.ListByType(context.Background(), TypeOfficialDocument, 2000)
	assert.Error(t, err)

	_, err = store.ListByType(context.Background(), TypeChatHistory, 10)
	assert.NoError(t, err)
}

func TestDeleteByIDsEmpty(t *testing.T) {
	store := New(&mockQuerier{}, &mockEmbedder{dim: VectorDimension}, log.NewNop())
	assert.NoError(t, store.DeleteByIDs(context.Background(), nil))
}
