package ingest

import "errors"

// Sentinel errors for ingestion operations. Checked with errors.Is().
var (
	// ErrUnsupportedFormat indicates a file extension outside the loader
	// registry. Ingestion fails outright instead of guessing a format.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrIndexUnavailable indicates the embedding gateway or index store
	// could not complete the write. The whole ingest call fails; no
	// placeholder chunk IDs are ever fabricated.
	ErrIndexUnavailable = errors.New("index unavailable")
)
