// Package history records completed question and answer exchanges back into
// the knowledge store so later queries can recall them.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/bureauhq/bureau/internal/ingest"
	"github.com/bureauhq/bureau/internal/knowledge"
	"github.com/bureauhq/bureau/internal/log"
)

// DefaultDepartment is recorded when the caller does not supply one.
const DefaultDepartment = "general"

// Ingester is the slice of the ingestion pipeline the recorder needs.
type Ingester interface {
	IngestText(ctx context.Context, content string, metadata map[string]string) ([]string, error)
}

// Recorder writes finished exchanges into the index as chat history records.
type Recorder struct {
	pipeline Ingester
	logger   log.Logger
	now      func() time.Time
}

// New creates a Recorder.
func New(pipeline Ingester, logger log.Logger) *Recorder {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Recorder{pipeline: pipeline, logger: logger, now: time.Now}
}

// Record indexes one exchange. Both query and answer must be non-empty.
// Failures are returned so the caller can decide whether the request as a
// whole still succeeded; recording is expected to be best effort.
func (r *Recorder) Record(ctx context.Context, query, answer, userID, department string) error {
	if query == "" || answer == "" {
		return fmt.Errorf("history: query and answer must be non-empty")
	}
	if department == "" {
		department = DefaultDepartment
	}

	content := fmt.Sprintf("Query: %s\nAnswer: %s", query, answer)
	metadata := map[string]string{
		ingest.MetaType:       knowledge.TypeChatHistory,
		ingest.MetaUserID:     userID,
		ingest.MetaDepartment: department,
		ingest.MetaTimestamp:  r.now().UTC().Format(time.RFC3339),
	}

	ids, err := r.pipeline.IngestText(ctx, content, metadata)
	if err != nil {
		return fmt.Errorf("history: record exchange: %w", err)
	}
	r.logger.Debug("exchange recorded", "user_id", userID, "chunks", len(ids))
	return nil
}
