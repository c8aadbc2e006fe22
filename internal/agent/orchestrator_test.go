package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/bureauhq/bureau/internal/log"
	"github.com/bureauhq/bureau/internal/provenance"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type generatorFunc func(ctx context.Context, system string, messages []*ai.Message) (*Decision, error)

func (f generatorFunc) Generate(ctx context.Context, system string, messages []*ai.Message) (*Decision, error) {
	return f(ctx, system, messages)
}

// scriptedGenerator returns its decisions in order and repeats the last one.
type scriptedGenerator struct {
	turns []*Decision
	calls int
}

func (s *scriptedGenerator) Generate(context.Context, string, []*ai.Message) (*Decision, error) {
	i := s.calls
	s.calls++
	if i >= len(s.turns) {
		i = len(s.turns) - 1
	}
	return s.turns[i], nil
}

type stubTool struct {
	name    string
	out     string
	err     error
	sources []provenance.Source
	calls   int
	gotArgs map[string]any
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub" }

func (s *stubTool) Run(_ context.Context, inv Invocation, args map[string]any) (string, error) {
	s.calls++
	s.gotArgs = args
	if len(s.sources) > 0 && inv.Scope != nil {
		inv.Scope.Record(s.sources)
	}
	return s.out, s.err
}

type captureRecorder struct {
	query, answer, userID, department string
	calls                             int
	err                               error
}

func (c *captureRecorder) Record(_ context.Context, query, answer, userID, department string) error {
	c.calls++
	c.query, c.answer, c.userID, c.department = query, answer, userID, department
	return c.err
}

func toolTurn(name string, args map[string]any) *Decision {
	req := &ai.ToolRequest{Name: name, Ref: "r1", Input: args}
	return &Decision{Requests: []*ai.ToolRequest{req}, Message: toolRequestMessage([]*ai.ToolRequest{req})}
}

func answerTurn(answer string) *Decision {
	return &Decision{Answer: answer, Message: ai.NewModelMessage(ai.NewTextPart(answer))}
}

func newOrchestrator(t *testing.T, cfg Config) *Orchestrator {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	orch, err := New(cfg)
	require.NoError(t, err)
	return orch
}

func TestQueryDirectAnswer(t *testing.T) {
	orch := newOrchestrator(t, Config{
		Generator: &scriptedGenerator{turns: []*Decision{answerTurn("The office opens at 8am.")}},
	})

	result := orch.Query(context.Background(), "When does the office open?", UserContext{ID: "u-1"})
	assert.True(t, result.Success)
	assert.Equal(t, "The office opens at 8am.", result.Answer)
	assert.Empty(t, result.ToolsUsed)
	assert.Empty(t, result.Sources)
}

func TestQueryToolRoundTrip(t *testing.T) {
	tool := &stubTool{
		name:    ToolSearchDocuments,
		out:     "Annual leave is 25 days. [Source: leave.pdf]",
		sources: []provenance.Source{{Filename: "leave.pdf", Department: "HR"}},
	}
	orch := newOrchestrator(t, Config{
		Generator: &scriptedGenerator{turns: []*Decision{
			toolTurn(ToolSearchDocuments, map[string]any{"query": "annual leave"}),
			answerTurn("You get 25 days of annual leave."),
		}},
		Tools: []Tool{tool},
	})

	result := orch.Query(context.Background(), "How much annual leave do I get?", UserContext{ID: "u-1", Department: "HR"})
	require.True(t, result.Success)
	assert.Equal(t, "You get 25 days of annual leave.", result.Answer)
	assert.Equal(t, []string{ToolSearchDocuments}, result.ToolsUsed)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "leave.pdf", result.Sources[0].Filename)
	assert.Equal(t, 1, tool.calls)
	assert.Equal(t, map[string]any{"query": "annual leave"}, tool.gotArgs)
}

func TestQueryIterationBudget(t *testing.T) {
	tool := &stubTool{name: ToolSearchDocuments, out: "partial finding"}
	orch := newOrchestrator(t, Config{
		Generator:     &scriptedGenerator{turns: []*Decision{toolTurn(ToolSearchDocuments, map[string]any{"query": "q"})}},
		Tools:         []Tool{tool},
		MaxIterations: 3,
	})

	result := orch.Query(context.Background(), "question", UserContext{ID: "u-1"})
	require.True(t, result.Success)
	assert.Equal(t, 3, tool.calls)
	assert.Len(t, result.ToolsUsed, 3)
	assert.NotEmpty(t, result.Answer)
	assert.Contains(t, result.Answer, "partial finding")
}

func TestQueryBudgetCountsEveryDispatch(t *testing.T) {
	tool := &stubTool{name: ToolSearchDocuments, out: "x"}
	reqs := make([]*ai.ToolRequest, 5)
	for i := range reqs {
		reqs[i] = &ai.ToolRequest{Name: ToolSearchDocuments, Ref: fmt.Sprintf("r%d", i), Input: map[string]any{"query": "q"}}
	}
	orch := newOrchestrator(t, Config{
		Generator: &scriptedGenerator{turns: []*Decision{{
			Requests: reqs,
			Message:  toolRequestMessage(reqs),
		}}},
		Tools:         []Tool{tool},
		MaxIterations: 3,
	})

	result := orch.Query(context.Background(), "question", UserContext{})
	require.True(t, result.Success)
	assert.Equal(t, 3, tool.calls)
	assert.Len(t, result.ToolsUsed, 3)
}

func TestQueryStructuredSourcesWinOverLegacy(t *testing.T) {
	tool := &stubTool{
		name:    ToolSearchDocuments,
		out:     "found",
		sources: []provenance.Source{{Filename: "current.pdf"}},
	}
	orch := newOrchestrator(t, Config{
		Generator: &scriptedGenerator{turns: []*Decision{
			toolTurn(ToolSearchDocuments, map[string]any{"query": "q"}),
			answerTurn("Answer text.\n--- SOURCES ---\n• stale.pdf"),
		}},
		Tools: []Tool{tool},
	})

	result := orch.Query(context.Background(), "question", UserContext{})
	require.True(t, result.Success)
	assert.Equal(t, "Answer text.", result.Answer)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "current.pdf", result.Sources[0].Filename)
}

func TestQueryLegacySourcesFallback(t *testing.T) {
	orch := newOrchestrator(t, Config{
		Generator: &scriptedGenerator{turns: []*Decision{
			answerTurn("Answer text.\n--- SOURCES ---\n• handbook.pdf"),
		}},
	})

	result := orch.Query(context.Background(), "question", UserContext{})
	require.True(t, result.Success)
	assert.Equal(t, "Answer text.", result.Answer)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, provenance.Source{Filename: "handbook.pdf"}, result.Sources[0])
}

func TestQueryGeneratorFailure(t *testing.T) {
	orch := newOrchestrator(t, Config{
		Generator: generatorFunc(func(context.Context, string, []*ai.Message) (*Decision, error) {
			return nil, errors.New("model exploded")
		}),
		Retry: RetryConfig{MaxRetries: 1, InitialInterval: 1, MaxInterval: 1},
	})

	result := orch.Query(context.Background(), "question", UserContext{})
	assert.False(t, result.Success)
	assert.Equal(t, failureAnswer, result.Answer)
	assert.Contains(t, result.Err, "model exploded")
}

func TestQueryToolErrorBecomesObservation(t *testing.T) {
	tool := &stubTool{name: ToolFetchUserData, err: errors.New("schema mismatch")}
	var observed string
	gen := &scriptedGenerator{turns: []*Decision{
		toolTurn(ToolFetchUserData, map[string]any{"data_type": "leave"}),
		answerTurn("done"),
	}}
	orch := newOrchestrator(t, Config{
		Generator: generatorFunc(func(ctx context.Context, system string, messages []*ai.Message) (*Decision, error) {
			last := messages[len(messages)-1]
			if last.Role == ai.RoleTool {
				observed = last.Content[0].ToolResponse.Output.(string)
			}
			return gen.Generate(ctx, system, messages)
		}),
		Tools: []Tool{tool},
	})

	result := orch.Query(context.Background(), "question", UserContext{})
	require.True(t, result.Success)
	assert.Contains(t, observed, "schema mismatch")
	assert.Equal(t, []string{ToolFetchUserData}, result.ToolsUsed)
}

func TestQueryUnknownTool(t *testing.T) {
	orch := newOrchestrator(t, Config{
		Generator: &scriptedGenerator{turns: []*Decision{
			toolTurn("delete_everything", nil),
			answerTurn("done"),
		}},
	})

	result := orch.Query(context.Background(), "question", UserContext{})
	require.True(t, result.Success)
	assert.Equal(t, []string{"delete_everything"}, result.ToolsUsed)
}

func TestQueryRecordsHistory(t *testing.T) {
	recorder := &captureRecorder{}
	orch := newOrchestrator(t, Config{
		Generator: &scriptedGenerator{turns: []*Decision{answerTurn("The answer.")}},
		Recorder:  recorder,
	})

	result := orch.Query(context.Background(), "The question?", UserContext{ID: "u-9", Department: "IT"})
	require.True(t, result.Success)
	assert.Equal(t, 1, recorder.calls)
	assert.Equal(t, "The question?", recorder.query)
	assert.Equal(t, "The answer.", recorder.answer)
	assert.Equal(t, "u-9", recorder.userID)
	assert.Equal(t, "IT", recorder.department)
}

func TestQueryRecorderFailureDoesNotAffectAnswer(t *testing.T) {
	recorder := &captureRecorder{err: errors.New("index down")}
	orch := newOrchestrator(t, Config{
		Generator: &scriptedGenerator{turns: []*Decision{answerTurn("Still fine.")}},
		Recorder:  recorder,
	})

	result := orch.Query(context.Background(), "q", UserContext{})
	assert.True(t, result.Success)
	assert.Equal(t, "Still fine.", result.Answer)
}

func TestQueryScopeIsolation(t *testing.T) {
	tool := &stubTool{
		name:    ToolSearchDocuments,
		out:     "found",
		sources: []provenance.Source{{Filename: "first.pdf"}},
	}
	makeGen := func() Generator {
		return &scriptedGenerator{turns: []*Decision{
			toolTurn(ToolSearchDocuments, map[string]any{"query": "q"}),
			answerTurn("answer one"),
		}}
	}
	orch := newOrchestrator(t, Config{Generator: makeGen(), Tools: []Tool{tool}})
	first := orch.Query(context.Background(), "q1", UserContext{})
	require.Len(t, first.Sources, 1)

	// A second query with no tool calls must not inherit the first's sources.
	orch2 := newOrchestrator(t, Config{
		Generator: &scriptedGenerator{turns: []*Decision{answerTurn("answer two")}},
		Memories:  orch.memories,
	})
	second := orch2.Query(context.Background(), "q2", UserContext{})
	assert.Empty(t, second.Sources)
}

func TestQueryEmptyInput(t *testing.T) {
	orch := newOrchestrator(t, Config{
		Generator: &scriptedGenerator{turns: []*Decision{answerTurn("x")}},
	})
	result := orch.Query(context.Background(), "   ", UserContext{})
	assert.False(t, result.Success)
}

func TestQueryReplaysMemory(t *testing.T) {
	var sawMessages int
	store := NewMemoryStore(5)
	store.Session("u-1").Add("old question", "old answer")

	orch := newOrchestrator(t, Config{
		Generator: generatorFunc(func(_ context.Context, _ string, messages []*ai.Message) (*Decision, error) {
			sawMessages = len(messages)
			return answerTurn("fresh answer"), nil
		}),
		Memories: store,
	})

	result := orch.Query(context.Background(), "new question", UserContext{ID: "u-1"})
	require.True(t, result.Success)
	// One prior exchange (two messages) plus the new user message.
	assert.Equal(t, 3, sawMessages)
	assert.Equal(t, 2, store.Session("u-1").Len())
}

func TestQueryMemoryIsolatedPerUser(t *testing.T) {
	var lastPrompt []*ai.Message
	orch := newOrchestrator(t, Config{
		Generator: generatorFunc(func(_ context.Context, _ string, messages []*ai.Message) (*Decision, error) {
			lastPrompt = messages
			return answerTurn("done"), nil
		}),
	})

	first := orch.Query(context.Background(), "alpha question", UserContext{ID: "user-a"})
	require.True(t, first.Success)

	// user-b's prompt must not carry user-a's exchange.
	second := orch.Query(context.Background(), "beta question", UserContext{ID: "user-b"})
	require.True(t, second.Success)
	require.Len(t, lastPrompt, 1)
	assert.Equal(t, "beta question", lastPrompt[0].Content[0].Text)

	// user-a's own window survives and is replayed only to user-a.
	third := orch.Query(context.Background(), "alpha again", UserContext{ID: "user-a"})
	require.True(t, third.Success)
	require.Len(t, lastPrompt, 3)
	assert.Equal(t, "alpha question", lastPrompt[0].Content[0].Text)
}
