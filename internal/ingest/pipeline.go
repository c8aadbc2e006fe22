// Package ingest turns raw documents into indexed chunks.
//
// The pipeline loads a file through the format registry, splits the text with
// the chunker, merges caller metadata into every chunk, and writes the whole
// batch to the index store. Any backend failure fails the entire call: chunk
// IDs are only ever returned for content that is actually searchable.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/bureauhq/bureau/internal/knowledge"
	"github.com/bureauhq/bureau/internal/log"
)

// Metadata keys the pipeline writes on every chunk.
const (
	MetaType         = "type"
	MetaFilename     = "filename"
	MetaSource       = "source"
	MetaDocumentType = "document_type"
	MetaDepartment   = "department"
	MetaUserID       = "user_id"
	MetaTimestamp    = "timestamp"
)

// Indexer is the slice of the knowledge store the pipeline needs.
type Indexer interface {
	AddBatch(ctx context.Context, docs []knowledge.Document) ([]string, error)
}

// Pipeline is the document ingestion pipeline.
type Pipeline struct {
	registry *Registry
	chunker  Chunker
	store    Indexer
	logger   log.Logger
}

// NewPipeline creates a Pipeline with the default format registry.
func NewPipeline(store Indexer, chunker Chunker, logger log.Logger) *Pipeline {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Pipeline{
		registry: NewRegistry(),
		chunker:  chunker,
		store:    store,
		logger:   logger,
	}
}

// IngestFile loads the file at path, chunks it, and indexes every chunk with
// the merged metadata. The pipeline contributes filename and source defaults;
// caller-supplied keys in baseMeta always win.
//
// Returns ErrUnsupportedFormat for extensions outside the registry and
// ErrIndexUnavailable when the gateway or store fails.
func (p *Pipeline) IngestFile(ctx context.Context, path string, baseMeta map[string]string) ([]string, error) {
	loader, err := p.registry.Lookup(path)
	if err != nil {
		return nil, err
	}

	content, err := loader.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading %q: %w", path, err)
	}

	meta := map[string]string{
		MetaFilename: filepath.Base(path),
		MetaSource:   path,
	}
	for k, v := range baseMeta {
		meta[k] = v
	}

	ids, err := p.IngestText(ctx, content, meta)
	if err != nil {
		return nil, err
	}

	p.logger.Info("ingested document", "path", path, "chunks", len(ids))
	return ids, nil
}

// IngestText chunks the given content and indexes it with the given metadata.
// Every chunk gets its own copy of the metadata map. Records default to the
// official document type unless the metadata says otherwise. Empty content
// yields no chunks and no error.
func (p *Pipeline) IngestText(ctx context.Context, content string, meta map[string]string) ([]string, error) {
	chunks := p.chunker.Chunk(content)
	if len(chunks) == 0 {
		return nil, nil
	}

	docs := make([]knowledge.Document, len(chunks))
	for i, chunk := range chunks {
		chunkMeta := make(map[string]string, len(meta)+1)
		chunkMeta[MetaType] = knowledge.TypeOfficialDocument
		for k, v := range meta {
			chunkMeta[k] = v
		}
		docs[i] = knowledge.Document{Content: chunk, Metadata: chunkMeta}
	}

	ids, err := p.store.AddBatch(ctx, docs)
	if err != nil {
		if errors.Is(err, knowledge.ErrUnavailable) {
			return nil, fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
		}
		return nil, fmt.Errorf("indexing %d chunks: %w", len(chunks), err)
	}
	return ids, nil
}
