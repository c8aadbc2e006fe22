// Package agent runs the bounded think-and-act loop that answers a single
// user query: the model decides, tools observe, and the loop stops at a
// fixed dispatch budget.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"

	"github.com/bureauhq/bureau/internal/log"
	"github.com/bureauhq/bureau/internal/provenance"
)

// DefaultMaxIterations bounds tool dispatches per query.
const DefaultMaxIterations = 3

const failureAnswer = "I'm sorry, I couldn't process that question right now. Please try again in a moment."

// HistoryRecorder persists a finished exchange. Recording is best effort;
// failures are logged and never affect the answer.
type HistoryRecorder interface {
	Record(ctx context.Context, query, answer, userID, department string) error
}

// Result is the outcome of one query.
type Result struct {
	Answer    string
	Sources   []provenance.Source
	ToolsUsed []string
	Success   bool
	Err       string
}

// Config assembles an Orchestrator.
type Config struct {
	Generator     Generator
	Tools         []Tool
	Memories      *MemoryStore    // nil creates a default store
	Recorder      HistoryRecorder // optional
	MaxIterations int             // zero uses DefaultMaxIterations
	SystemPrompt  string          // empty uses the built-in prompt
	RateLimiter   *rate.Limiter   // optional
	Retry         RetryConfig     // zero-value uses defaults
	Logger        log.Logger
}

// Orchestrator owns the per-query tool loop.
type Orchestrator struct {
	generator     Generator
	tools         map[string]Tool
	memories      *MemoryStore
	recorder      HistoryRecorder
	limiter       *rate.Limiter
	retry         RetryConfig
	logger        log.Logger
	maxIterations int
	system        string
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("agent: generator is required")
	}
	tools := make(map[string]Tool, len(cfg.Tools))
	for _, tool := range cfg.Tools {
		if _, dup := tools[tool.Name()]; dup {
			return nil, fmt.Errorf("agent: duplicate tool %q", tool.Name())
		}
		tools[tool.Name()] = tool
	}

	memories := cfg.Memories
	if memories == nil {
		memories = NewMemoryStore(DefaultMemoryWindow)
	}
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	system := cfg.SystemPrompt
	if system == "" {
		system = defaultSystemPrompt
	}
	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	return &Orchestrator{
		generator:     cfg.Generator,
		tools:         tools,
		memories:      memories,
		recorder:      cfg.Recorder,
		limiter:       cfg.RateLimiter,
		retry:         retry,
		logger:        logger,
		maxIterations: maxIterations,
		system:        system,
	}, nil
}

// Query answers one user question. It always returns a Result; Success false
// means the answer is an apology and Err carries the diagnostic.
func (o *Orchestrator) Query(ctx context.Context, input string, user UserContext) *Result {
	input = strings.TrimSpace(input)
	if input == "" {
		return &Result{Answer: "Please ask a question.", Success: false, Err: "empty query"}
	}

	scope := provenance.NewScope()
	inv := Invocation{Scope: scope, User: user}

	// One window per conversation, keyed by user. Concurrent users must not
	// see each other's exchanges.
	memory := o.memories.Session(user.ID)
	messages := append(memory.Messages(), ai.NewUserMessage(ai.NewTextPart(input)))

	var (
		toolsUsed    []string
		observations []string
		dispatched   int
	)

	for {
		decision, err := o.generateWithRetry(ctx, o.system, messages)
		if err != nil {
			o.logger.Error("model turn failed", "error", err, "tools_used", len(toolsUsed))
			return &Result{Answer: failureAnswer, ToolsUsed: toolsUsed, Success: false, Err: err.Error()}
		}

		if len(decision.Requests) == 0 {
			return o.finalize(ctx, input, decision.Answer, scope, memory, toolsUsed, user)
		}

		// Replay the model's tool-request turn before appending responses.
		if decision.Message != nil {
			messages = append(messages, decision.Message)
		} else {
			messages = append(messages, toolRequestMessage(decision.Requests))
		}

		var responses []*ai.Part
		exhausted := false
		for _, req := range decision.Requests {
			if dispatched == o.maxIterations {
				exhausted = true
				break
			}
			dispatched++
			toolsUsed = append(toolsUsed, req.Name)

			observation := o.dispatch(ctx, inv, req)
			observations = append(observations, observation)
			responses = append(responses, ai.NewToolResponsePart(&ai.ToolResponse{
				Name:   req.Name,
				Ref:    req.Ref,
				Output: observation,
			}))
		}

		if exhausted {
			answer := decision.Answer
			if strings.TrimSpace(answer) == "" {
				answer = partialAnswer(observations)
			}
			o.logger.Warn("tool budget exhausted", "dispatched", dispatched, "max", o.maxIterations)
			return o.finalize(ctx, input, answer, scope, memory, toolsUsed, user)
		}

		messages = append(messages, &ai.Message{Role: ai.RoleTool, Content: responses})
	}
}

// dispatch runs one requested tool. Failures become observation text so the
// model can react instead of the whole query aborting.
func (o *Orchestrator) dispatch(ctx context.Context, inv Invocation, req *ai.ToolRequest) string {
	tool, ok := o.tools[req.Name]
	if !ok {
		o.logger.Warn("unknown tool requested", "tool", req.Name)
		return fmt.Sprintf("Unknown tool: %s", req.Name)
	}

	args, _ := req.Input.(map[string]any)
	out, err := tool.Run(ctx, inv, args)
	if err != nil {
		o.logger.Warn("tool failed", "tool", req.Name, "error", err)
		return fmt.Sprintf("Tool %s failed: %v", req.Name, err)
	}
	return out
}

// finalize resolves sources and records the exchange.
func (o *Orchestrator) finalize(ctx context.Context, query, answer string, scope *provenance.Scope, memory *Memory, toolsUsed []string, user UserContext) *Result {
	clean, legacyFiles := splitLegacySources(answer)

	sources := scope.Drain()
	if len(sources) == 0 && len(legacyFiles) > 0 {
		for _, name := range legacyFiles {
			sources = append(sources, provenance.Source{Filename: name})
		}
	}

	if strings.TrimSpace(clean) == "" {
		clean = "I could not produce an answer for that question."
	}

	memory.Add(query, clean)
	if o.recorder != nil {
		if err := o.recorder.Record(ctx, query, clean, user.ID, user.Department); err != nil {
			o.logger.Warn("failed to record exchange", "error", err)
		}
	}

	return &Result{Answer: clean, Sources: sources, ToolsUsed: toolsUsed, Success: true}
}

// partialAnswer summarizes gathered observations when the budget runs out
// before the model returns a final answer.
func partialAnswer(observations []string) string {
	if len(observations) == 0 {
		return "I ran out of lookups before finding an answer. Please narrow the question and try again."
	}
	return "I could not finish every lookup for this question. Here is what I found so far:\n\n" +
		strings.Join(observations, "\n\n")
}

func toolRequestMessage(requests []*ai.ToolRequest) *ai.Message {
	parts := make([]*ai.Part, 0, len(requests))
	for _, req := range requests {
		parts = append(parts, ai.NewToolRequestPart(req))
	}
	return ai.NewModelMessage(parts...)
}
