package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/bureauhq/bureau/internal/ingest"
)

const maxUploadBytes = 32 << 20

// Ingestor indexes uploaded files. *ingest.Pipeline is the production
// implementation.
type Ingestor interface {
	IngestFile(ctx context.Context, path string, baseMeta map[string]string) ([]string, error)
}

// DocumentStore covers the index maintenance operations the handlers need.
type DocumentStore interface {
	DeleteByIDs(ctx context.Context, ids []string) error
	Count(ctx context.Context, filter map[string]string) (int64, error)
}

type documentHandler struct {
	ingestor Ingestor
	store    DocumentStore
	logger   *slog.Logger
}

type ingestResponse struct {
	Filename string   `json:"filename"`
	ChunkIDs []string `json:"chunk_ids"`
	Chunks   int      `json:"chunks"`
}

// upload accepts a multipart form with a "file" part and optional
// document_type and department fields.
func (h *documentHandler) upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid multipart form", h.logger)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "file part is required", h.logger)
		return
	}
	defer file.Close()

	// Copy to a temp file keeping the original extension for format dispatch.
	tmp, err := os.CreateTemp("", "bureau-upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "could not buffer upload", h.logger)
		return
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		writeError(w, http.StatusInternalServerError, "internal_error", "could not buffer upload", h.logger)
		return
	}
	tmp.Close()

	metadata := map[string]string{
		ingest.MetaFilename: filepath.Base(header.Filename),
	}
	if docType := r.FormValue("document_type"); docType != "" {
		metadata[ingest.MetaDocumentType] = docType
	}
	if department := r.FormValue("department"); department != "" {
		metadata[ingest.MetaDepartment] = department
	}

	ids, err := h.ingestor.IngestFile(r.Context(), tmpPath, metadata)
	switch {
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_format",
			"file format is not supported", h.logger)
		return
	case errors.Is(err, ingest.ErrIndexUnavailable):
		writeError(w, http.StatusServiceUnavailable, "index_unavailable",
			"document index is unavailable", h.logger)
		return
	case err != nil:
		h.logger.Error("ingestion failed", "filename", header.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "ingestion failed", h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, ingestResponse{
		Filename: filepath.Base(header.Filename),
		ChunkIDs: ids,
		Chunks:   len(ids),
	}, h.logger)
}

type deleteRequest struct {
	IDs []string `json:"ids"`
}

func (h *documentHandler) remove(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := decodeJSON(r, &req, maxQueryBodyBytes); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body", h.logger)
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "ids are required", h.logger)
		return
	}

	if err := h.store.DeleteByIDs(r.Context(), req.IDs); err != nil {
		writeError(w, http.StatusServiceUnavailable, "index_unavailable", "delete failed", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": len(req.IDs)}, h.logger)
}

func (h *documentHandler) stats(w http.ResponseWriter, r *http.Request) {
	filter := map[string]string{}
	if docType := r.URL.Query().Get("type"); docType != "" {
		filter[ingest.MetaType] = docType
	}

	count, err := h.store.Count(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "index_unavailable", "count failed", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"documents": count}, h.logger)
}
