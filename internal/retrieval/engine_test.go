package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bureauhq/bureau/internal/ingest"
	"github.com/bureauhq/bureau/internal/knowledge"
	"github.com/bureauhq/bureau/internal/log"
	"github.com/bureauhq/bureau/internal/testutil"
)

func newEngine(t *testing.T, querier knowledge.Querier) *Engine {
	t.Helper()
	store := knowledge.New(querier, testutil.NewFakeEmbedder(), log.NewNop())
	return New(store, log.NewNop())
}

func seed(t *testing.T, querier *testutil.MemoryQuerier, docs ...knowledge.Document) {
	t.Helper()
	store := knowledge.New(querier, testutil.NewFakeEmbedder(), log.NewNop())
	ids, err := store.AddBatch(context.Background(), docs)
	require.NoError(t, err)
	require.Len(t, ids, len(docs))
}

func TestSearchFilterByDepartment(t *testing.T) {
	querier := testutil.NewMemoryQuerier()
	seed(t, querier,
		knowledge.Document{Content: "annual leave policy for staff", Metadata: map[string]string{ingest.MetaDepartment: "HR", ingest.MetaFilename: "leave.pdf"}},
		knowledge.Document{Content: "vpn setup guide for laptops", Metadata: map[string]string{ingest.MetaDepartment: "IT", ingest.MetaFilename: "vpn.pdf"}},
		knowledge.Document{Content: "parental leave policy details", Metadata: map[string]string{ingest.MetaDepartment: "HR", ingest.MetaFilename: "parental.pdf"}},
		knowledge.Document{Content: "contract review checklist", Metadata: map[string]string{ingest.MetaDepartment: "Legal", ingest.MetaFilename: "contracts.pdf"}},
		knowledge.Document{Content: "sick leave policy summary", Metadata: map[string]string{ingest.MetaDepartment: "HR", ingest.MetaFilename: "sick.pdf"}},
	)

	engine := newEngine(t, querier)
	hits, err := engine.Search(context.Background(), "leave policy", 10, Filter{Department: "HR"})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	for _, hit := range hits {
		assert.Equal(t, "HR", hit.Document.Metadata[ingest.MetaDepartment])
	}
}

func TestSearchConjunctiveFilter(t *testing.T) {
	querier := testutil.NewMemoryQuerier()
	seed(t, querier,
		knowledge.Document{Content: "expense reporting rules", Metadata: map[string]string{ingest.MetaType: knowledge.TypeOfficialDocument, ingest.MetaDepartment: "Finance"}},
		knowledge.Document{Content: "expense reporting chat", Metadata: map[string]string{ingest.MetaType: knowledge.TypeChatHistory, ingest.MetaDepartment: "Finance"}},
	)

	engine := newEngine(t, querier)
	hits, err := engine.Search(context.Background(), "expense reporting", 5, Filter{
		Type:       knowledge.TypeOfficialDocument,
		Department: "Finance",
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, knowledge.TypeOfficialDocument, hits[0].Document.Metadata[ingest.MetaType])
}

func TestSearchOrderedByScore(t *testing.T) {
	querier := testutil.NewMemoryQuerier()
	seed(t, querier,
		knowledge.Document{Content: "printer toner replacement steps"},
		knowledge.Document{Content: "office printer setup and printer drivers"},
		knowledge.Document{Content: "holiday schedule for the year"},
	)

	engine := newEngine(t, querier)
	hits, err := engine.Search(context.Background(), "printer setup drivers", 3, Filter{})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
	assert.Contains(t, hits[0].Document.Content, "printer setup")
}

func TestSearchRejectsNonPositiveK(t *testing.T) {
	engine := newEngine(t, testutil.NewMemoryQuerier())

	_, err := engine.Search(context.Background(), "anything", 0, Filter{})
	assert.Error(t, err)

	_, err = engine.Search(context.Background(), "anything", -1, Filter{})
	assert.Error(t, err)
}

func TestSearchBackendFailureYieldsEmpty(t *testing.T) {
	querier := testutil.NewMemoryQuerier()
	querier.FailWith = errors.New("connection refused")

	engine := newEngine(t, querier)
	hits, err := engine.Search(context.Background(), "leave policy", 3, Filter{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := newEngine(t, testutil.NewMemoryQuerier())
	_, err := engine.Search(ctx, "leave policy", 3, Filter{})
	assert.ErrorIs(t, err, context.Canceled)
}
