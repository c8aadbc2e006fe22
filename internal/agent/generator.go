package agent

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// Decision is one model turn: either a final answer or a set of tool
// requests to dispatch. Message is the raw model turn so the orchestrator
// can replay it into the transcript before appending tool responses.
type Decision struct {
	Answer   string
	Requests []*ai.ToolRequest
	Message  *ai.Message
}

// Generator produces one model turn from the conversation so far.
type Generator interface {
	Generate(ctx context.Context, system string, messages []*ai.Message) (*Decision, error)
}

// GenkitGenerator drives a Genkit model with tool declarations attached.
// Tool requests are returned to the caller rather than dispatched by Genkit,
// which keeps the iteration budget and provenance recording under the
// orchestrator's control.
type GenkitGenerator struct {
	g     *genkit.Genkit
	model string
	tools []ai.ToolRef
}

// NewGenkitGenerator creates a generator for the named model. The tools are
// declared to the model for schema purposes only; their Run functions are
// never invoked through Genkit.
func NewGenkitGenerator(g *genkit.Genkit, model string, tools []Tool) *GenkitGenerator {
	refs := make([]ai.ToolRef, 0, len(tools))
	for _, tool := range tools {
		refs = append(refs, declareTool(g, tool))
	}
	return &GenkitGenerator{g: g, model: model, tools: refs}
}

// declareTool registers a tool schema with Genkit. The handler is a stub:
// with tool requests returned to the caller it is unreachable.
func declareTool(g *genkit.Genkit, tool Tool) ai.Tool {
	name := tool.Name()
	switch name {
	case ToolSearchDocuments:
		return genkit.DefineTool(g, name, tool.Description(),
			func(*ai.ToolContext, SearchDocumentsArgs) (string, error) { return "", errStubTool(name) })
	case ToolSearchChatHistory:
		return genkit.DefineTool(g, name, tool.Description(),
			func(*ai.ToolContext, SearchChatHistoryArgs) (string, error) { return "", errStubTool(name) })
	case ToolFetchUserData:
		return genkit.DefineTool(g, name, tool.Description(),
			func(*ai.ToolContext, FetchUserDataArgs) (string, error) { return "", errStubTool(name) })
	default:
		return genkit.DefineTool(g, name, tool.Description(),
			func(*ai.ToolContext, map[string]any) (string, error) { return "", errStubTool(name) })
	}
}

func errStubTool(name string) error {
	return fmt.Errorf("tool %s must be dispatched by the orchestrator", name)
}

// Generate runs one model turn.
func (gg *GenkitGenerator) Generate(ctx context.Context, system string, messages []*ai.Message) (*Decision, error) {
	resp, err := genkit.Generate(ctx, gg.g,
		ai.WithModelName(gg.model),
		ai.WithSystem(system),
		ai.WithMessages(messages...),
		ai.WithTools(gg.tools...),
		ai.WithReturnToolRequests(true),
	)
	if err != nil {
		return nil, fmt.Errorf("model generate: %w", err)
	}

	return &Decision{
		Answer:   resp.Text(),
		Requests: resp.ToolRequests(),
		Message:  resp.Message,
	}, nil
}
