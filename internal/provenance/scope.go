// Package provenance tracks which indexed sources contributed to a single
// answer.
//
// A Scope is created per request, handed explicitly to every tool invocation
// for that request, and drained exactly once when the orchestration loop
// finishes. Scopes are never shared across requests: a process-wide collector
// would let one request's Reset wipe another's in-flight citations.
package provenance

import "sync"

// Source identifies one indexed document that backed part of an answer.
type Source struct {
	Filename     string // display name; required for the record to count
	DocumentType string
	Department   string
	Origin       string // origin path or identifier of the indexed file
}

// key is the dedup identity of a Source. Two sources with equal keys are the
// same citation.
type key struct {
	filename     string
	documentType string
	department   string
	origin       string
}

func (s Source) key() key {
	return key{s.Filename, s.DocumentType, s.Department, s.Origin}
}

// Scope accumulates sources surfaced by retrieval calls during one
// orchestration run. It is safe for concurrent use within that run.
type Scope struct {
	mu      sync.Mutex
	seen    map[key]struct{}
	sources []Source
}

// NewScope creates an empty scope for a single request.
func NewScope() *Scope {
	return &Scope{seen: make(map[key]struct{})}
}

// Record appends the given sources, skipping records without a filename and
// records whose dedup key has already been seen. First-seen order is
// preserved across calls.
func (s *Scope) Record(sources []Source) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, src := range sources {
		if src.Filename == "" {
			continue
		}
		k := src.key()
		if _, dup := s.seen[k]; dup {
			continue
		}
		s.seen[k] = struct{}{}
		s.sources = append(s.sources, src)
	}
}

// Drain returns the accumulated sources in first-seen order and empties the
// scope. A second call before the scope is reused returns an empty list.
func (s *Scope) Drain() []Source {
	s.mu.Lock()
	defer s.mu.Unlock()

	drained := s.sources
	s.sources = nil
	s.seen = make(map[key]struct{})
	return drained
}

// Reset empties the scope without returning data. Used defensively before
// starting a new orchestration run on a reused scope object.
func (s *Scope) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sources = nil
	s.seen = make(map[key]struct{})
}

// Len reports the number of recorded sources.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sources)
}
