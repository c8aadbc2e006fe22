package ingest

import "strings"

// Default chunking parameters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// Chunker splits raw text into overlapping windows of at most Size runes,
// with consecutive windows sharing up to Overlap runes. It prefers to break
// at a paragraph, then a sentence, then a word boundary before falling back
// to a hard cut.
//
// Chunking is deterministic: the same input and parameters always produce
// the same sequence, which is what makes ingestion idempotence testable.
type Chunker struct {
	Size    int // maximum chunk length in runes
	Overlap int // desired overlap between consecutive chunks, 0 <= Overlap < Size
}

// NewChunker returns a Chunker with defaults applied for out-of-range values.
func NewChunker(size, overlap int) Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 10
		}
	}
	return Chunker{Size: size, Overlap: overlap}
}

// Chunk splits text into an ordered sequence of windows. Empty or
// whitespace-only input yields nil.
func (c Chunker) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	var chunks []string

	start := 0
	for start < len(runes) {
		if len(runes)-start <= c.Size {
			if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
				chunks = append(chunks, tail)
			}
			break
		}

		cut := c.breakPoint(runes, start)
		if chunk := strings.TrimSpace(string(runes[start:cut])); chunk != "" {
			chunks = append(chunks, chunk)
		}

		// Step back by the overlap, but always make forward progress.
		next := cut - c.Overlap
		if next <= start {
			next = cut
		}
		start = next
	}

	return chunks
}

// breakPoint picks the cut position for the window starting at start. It
// scans backwards from the size limit looking for a natural boundary, but
// never shrinks the window below half its size.
func (c Chunker) breakPoint(runes []rune, start int) int {
	limit := start + c.Size
	floor := start + c.Size/2

	// Paragraph boundary: blank line.
	for i := limit; i > floor; i-- {
		if runes[i-1] == '\n' && i >= 2 && runes[i-2] == '\n' {
			return i
		}
	}
	// Sentence boundary: terminator followed by whitespace.
	for i := limit; i > floor; i-- {
		r := runes[i-1]
		if (r == '.' || r == '!' || r == '?' || r == '\n') && isSpace(runes[i]) {
			return i
		}
	}
	// Word boundary.
	for i := limit; i > floor; i-- {
		if isSpace(runes[i-1]) {
			return i
		}
	}
	// Hard cut.
	return limit
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
