package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bureauhq/bureau/internal/agent"
)

const maxQueryBodyBytes = 64 << 10

// QueryRunner answers one user question. *agent.Orchestrator is the
// production implementation.
type QueryRunner interface {
	Query(ctx context.Context, input string, user agent.UserContext) *agent.Result
}

type queryHandler struct {
	runner QueryRunner
	logger *slog.Logger
}

type queryRequest struct {
	Query       string `json:"query"`
	UserID      string `json:"user_id"`
	Department  string `json:"department,omitempty"`
	PortalToken string `json:"portal_token,omitempty"`
}

type sourceResponse struct {
	Filename     string `json:"filename"`
	DocumentType string `json:"document_type,omitempty"`
	Department   string `json:"department,omitempty"`
	Origin       string `json:"origin,omitempty"`
}

type queryResponse struct {
	Answer    string           `json:"answer"`
	Sources   []sourceResponse `json:"sources"`
	ToolsUsed []string         `json:"tools_used"`
	Success   bool             `json:"success"`
	Error     string           `json:"error,omitempty"`
}

func (h *queryHandler) ask(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req, maxQueryBodyBytes); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body", h.logger)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "query is required", h.logger)
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "user_id is required", h.logger)
		return
	}

	result := h.runner.Query(r.Context(), req.Query, agent.UserContext{
		ID:          req.UserID,
		Department:  req.Department,
		PortalToken: req.PortalToken,
	})

	resp := queryResponse{
		Answer:    result.Answer,
		Sources:   make([]sourceResponse, 0, len(result.Sources)),
		ToolsUsed: result.ToolsUsed,
		Success:   result.Success,
		Error:     result.Err,
	}
	if resp.ToolsUsed == nil {
		resp.ToolsUsed = []string{}
	}
	for _, src := range result.Sources {
		resp.Sources = append(resp.Sources, sourceResponse{
			Filename:     src.Filename,
			DocumentType: src.DocumentType,
			Department:   src.Department,
			Origin:       src.Origin,
		})
	}

	// Emptiness is rejected before Query runs, so any failure here is the
	// orchestrator's.
	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, resp, h.logger)
}
