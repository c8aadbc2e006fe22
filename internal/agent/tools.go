package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bureauhq/bureau/internal/ingest"
	"github.com/bureauhq/bureau/internal/knowledge"
	"github.com/bureauhq/bureau/internal/log"
	"github.com/bureauhq/bureau/internal/portal"
	"github.com/bureauhq/bureau/internal/provenance"
	"github.com/bureauhq/bureau/internal/retrieval"
)

// Tool names the model can request.
const (
	ToolSearchDocuments   = "search_documents"
	ToolSearchChatHistory = "search_chat_history"
	ToolFetchUserData     = "fetch_user_data"
	ToolFormatResponse    = "format_response"
)

// Defaults for retrieval depth and observation previews.
const (
	DefaultDocumentTopK       = 3
	DefaultHistoryTopK        = 2
	DefaultDocumentPreviewLen = 300
	DefaultHistoryPreviewLen  = 200
)

// Retriever is the slice of the retrieval engine the tools need.
type Retriever interface {
	Search(ctx context.Context, query string, k int, filter retrieval.Filter) ([]retrieval.Hit, error)
}

// PortalFetcher is the slice of the portal client the tools need.
type PortalFetcher interface {
	Fetch(ctx context.Context, userID, dataType, token string) (string, error)
}

// preview cuts s to at most n runes.
func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// SearchDocumentsArgs are the arguments for search_documents.
type SearchDocumentsArgs struct {
	Query        string `json:"query"`
	DocumentType string `json:"document_type,omitempty"`
	Department   string `json:"department,omitempty"`
}

// SearchDocumentsTool retrieves official document chunks and records their
// origins in the request's provenance scope.
type SearchDocumentsTool struct {
	retriever  Retriever
	topK       int
	previewLen int
	logger     log.Logger
}

// NewSearchDocumentsTool creates the official document search tool.
func NewSearchDocumentsTool(retriever Retriever, topK, previewLen int, logger log.Logger) *SearchDocumentsTool {
	if topK <= 0 {
		topK = DefaultDocumentTopK
	}
	if previewLen <= 0 {
		previewLen = DefaultDocumentPreviewLen
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &SearchDocumentsTool{retriever: retriever, topK: topK, previewLen: previewLen, logger: logger}
}

func (t *SearchDocumentsTool) Name() string { return ToolSearchDocuments }

func (t *SearchDocumentsTool) Description() string {
	return "Search official company documents (policies, guides, procedures). " +
		"Optionally filter by document_type or department."
}

func (t *SearchDocumentsTool) Run(ctx context.Context, inv Invocation, args map[string]any) (string, error) {
	var params SearchDocumentsArgs
	if err := decodeArgs(args, &params); err != nil {
		return "", err
	}
	if params.Query == "" {
		return "", fmt.Errorf("search_documents: query is required")
	}

	filter := retrieval.Filter{
		Type:         knowledge.TypeOfficialDocument,
		DocumentType: params.DocumentType,
		Department:   params.Department,
	}
	hits, err := t.retriever.Search(ctx, params.Query, t.topK, filter)
	if err != nil {
		return "", fmt.Errorf("search_documents: %w", err)
	}
	if len(hits) == 0 {
		return "No relevant documents found.", nil
	}

	sources := make([]provenance.Source, 0, len(hits))
	var sb strings.Builder
	for i, hit := range hits {
		meta := hit.Document.Metadata
		filename := meta[ingest.MetaFilename]
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(preview(hit.Document.Content, t.previewLen))
		if filename != "" {
			fmt.Fprintf(&sb, " [Source: %s]", filename)
		}
		sources = append(sources, provenance.Source{
			Filename:     filename,
			DocumentType: meta[ingest.MetaDocumentType],
			Department:   meta[ingest.MetaDepartment],
			Origin:       meta[ingest.MetaSource],
		})
	}

	if inv.Scope != nil {
		inv.Scope.Record(sources)
	}
	t.logger.Debug("document search completed", "hits", len(hits))
	return sb.String(), nil
}

// SearchChatHistoryArgs are the arguments for search_chat_history.
type SearchChatHistoryArgs struct {
	Query string `json:"query"`
}

// SearchChatHistoryTool retrieves the user's past exchanges. History recall
// never contributes provenance; only official documents are citable.
type SearchChatHistoryTool struct {
	retriever  Retriever
	topK       int
	previewLen int
}

// NewSearchChatHistoryTool creates the chat history search tool.
func NewSearchChatHistoryTool(retriever Retriever, topK, previewLen int) *SearchChatHistoryTool {
	if topK <= 0 {
		topK = DefaultHistoryTopK
	}
	if previewLen <= 0 {
		previewLen = DefaultHistoryPreviewLen
	}
	return &SearchChatHistoryTool{retriever: retriever, topK: topK, previewLen: previewLen}
}

func (t *SearchChatHistoryTool) Name() string { return ToolSearchChatHistory }

func (t *SearchChatHistoryTool) Description() string {
	return "Search the user's previous questions and answers for earlier context."
}

func (t *SearchChatHistoryTool) Run(ctx context.Context, inv Invocation, args map[string]any) (string, error) {
	var params SearchChatHistoryArgs
	if err := decodeArgs(args, &params); err != nil {
		return "", err
	}
	if params.Query == "" {
		return "", fmt.Errorf("search_chat_history: query is required")
	}

	filter := retrieval.Filter{
		Type:   knowledge.TypeChatHistory,
		UserID: inv.User.ID,
	}
	hits, err := t.retriever.Search(ctx, params.Query, t.topK, filter)
	if err != nil {
		return "", fmt.Errorf("search_chat_history: %w", err)
	}
	if len(hits) == 0 {
		return "No previous conversations found.", nil
	}

	var sb strings.Builder
	for i, hit := range hits {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(preview(hit.Document.Content, t.previewLen))
	}
	return sb.String(), nil
}

// FetchUserDataArgs are the arguments for fetch_user_data.
type FetchUserDataArgs struct {
	DataType string `json:"data_type"`
}

// FetchUserDataTool retrieves personal records from the employee portal.
type FetchUserDataTool struct {
	portal PortalFetcher
	logger log.Logger
}

// NewFetchUserDataTool creates the portal data tool. client may be nil when
// no portal is configured; the tool then reports the portal as unavailable
// instead of disappearing from the catalog.
func NewFetchUserDataTool(client PortalFetcher, logger log.Logger) *FetchUserDataTool {
	if logger == nil {
		logger = log.NewNop()
	}
	return &FetchUserDataTool{portal: client, logger: logger}
}

func (t *FetchUserDataTool) Name() string { return ToolFetchUserData }

func (t *FetchUserDataTool) Description() string {
	return "Fetch the requesting user's personal data from the employee portal, " +
		"for example leave balance, payroll summary or benefits."
}

func (t *FetchUserDataTool) Run(ctx context.Context, inv Invocation, args map[string]any) (string, error) {
	var params FetchUserDataArgs
	if err := decodeArgs(args, &params); err != nil {
		return "", err
	}
	if params.DataType == "" {
		return "", fmt.Errorf("fetch_user_data: data_type is required")
	}
	if t.portal == nil {
		return "The employee portal is not configured. Personal data cannot be retrieved right now.", nil
	}

	body, err := t.portal.Fetch(ctx, inv.User.ID, params.DataType, inv.User.PortalToken)
	switch {
	case errors.Is(err, portal.ErrAuthenticationRequired):
		return "Personal data is unavailable: the request carries no valid portal session. " +
			"Ask the user to sign in to the employee portal.", nil
	case errors.Is(err, portal.ErrUnavailable):
		t.logger.Warn("portal unreachable", "data_type", params.DataType, "error", err)
		return "The employee portal is currently unreachable. Personal data cannot be retrieved right now.", nil
	case err != nil:
		return "", fmt.Errorf("fetch_user_data: %w", err)
	}
	return body, nil
}

// FormatResponseArgs are the arguments for format_response.
type FormatResponseArgs struct {
	Data any `json:"data"`
}

// FormatResponseTool renders structured data as indented JSON so the model
// can quote it verbatim.
type FormatResponseTool struct{}

// NewFormatResponseTool creates the formatting tool.
func NewFormatResponseTool() *FormatResponseTool { return &FormatResponseTool{} }

func (t *FormatResponseTool) Name() string { return ToolFormatResponse }

func (t *FormatResponseTool) Description() string {
	return "Format structured data as readable JSON for inclusion in the answer."
}

func (t *FormatResponseTool) Run(_ context.Context, _ Invocation, args map[string]any) (string, error) {
	var params FormatResponseArgs
	if err := decodeArgs(args, &params); err != nil {
		return "", err
	}
	if params.Data == nil {
		params.Data = args
	}
	out, err := json.MarshalIndent(params.Data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("format_response: %w", err)
	}
	return string(out), nil
}
