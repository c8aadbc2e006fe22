package provenance

import (
	"fmt"
	"sync"
	"testing"
)

func TestScope_RecordDedup(t *testing.T) {
	a := Source{Filename: "a.pdf", DocumentType: "policy", Department: "HR", Origin: "/docs/a.pdf"}
	b := Source{Filename: "b.pdf", DocumentType: "circular", Department: "IT", Origin: "/docs/b.pdf"}

	scope := NewScope()
	scope.Record([]Source{a, b, a})

	got := scope.Drain()
	if len(got) != 2 {
		t.Fatalf("expected 2 sources after dedup, got %d", len(got))
	}
	if got[0].Filename != "a.pdf" || got[1].Filename != "b.pdf" {
		t.Errorf("expected first-seen order [a.pdf b.pdf], got [%s %s]",
			got[0].Filename, got[1].Filename)
	}
}

func TestScope_KeyIsFullTuple(t *testing.T) {
	// Same filename but different metadata is a different citation.
	scope := NewScope()
	scope.Record([]Source{
		{Filename: "handbook.pdf", Department: "HR"},
		{Filename: "handbook.pdf", Department: "Legal"},
	})

	if got := scope.Len(); got != 2 {
		t.Errorf("expected 2 distinct sources, got %d", got)
	}
}

func TestScope_DropsEmptyFilenames(t *testing.T) {
	scope := NewScope()
	scope.Record([]Source{
		{Filename: "", DocumentType: "policy"},
		{Filename: "ok.txt"},
	})

	got := scope.Drain()
	if len(got) != 1 || got[0].Filename != "ok.txt" {
		t.Fatalf("expected only ok.txt to survive, got %v", got)
	}
}

func TestScope_DrainEmptiesScope(t *testing.T) {
	scope := NewScope()
	scope.Record([]Source{{Filename: "a.pdf"}})

	if got := scope.Drain(); len(got) != 1 {
		t.Fatalf("first drain: expected 1 source, got %d", len(got))
	}
	if got := scope.Drain(); len(got) != 0 {
		t.Fatalf("second drain: expected empty, got %d", len(got))
	}

	// A drained scope accepts and dedups fresh records.
	scope.Record([]Source{{Filename: "a.pdf"}, {Filename: "a.pdf"}})
	if got := scope.Len(); got != 1 {
		t.Errorf("expected 1 source after reuse, got %d", got)
	}
}

func TestScope_Reset(t *testing.T) {
	scope := NewScope()
	scope.Record([]Source{{Filename: "a.pdf"}})
	scope.Reset()

	if got := scope.Drain(); len(got) != 0 {
		t.Errorf("expected empty scope after reset, got %d sources", len(got))
	}
}

func TestScope_IsolationBetweenScopes(t *testing.T) {
	// Two concurrent requests must never observe each other's records.
	scopeA := NewScope()
	scopeB := NewScope()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			scopeA.Record([]Source{{Filename: fmt.Sprintf("a-%d.pdf", n)}})
		}(i)
		go func(n int) {
			defer wg.Done()
			scopeB.Record([]Source{{Filename: fmt.Sprintf("b-%d.pdf", n)}})
		}(i)
	}
	wg.Wait()

	for _, src := range scopeA.Drain() {
		if src.Filename[0] != 'a' {
			t.Fatalf("scope A observed foreign source %q", src.Filename)
		}
	}
	for _, src := range scopeB.Drain() {
		if src.Filename[0] != 'b' {
			t.Fatalf("scope B observed foreign source %q", src.Filename)
		}
	}
}

func TestScope_ConcurrentRecordKeepsDedup(t *testing.T) {
	scope := NewScope()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scope.Record([]Source{
				{Filename: "shared.pdf", DocumentType: "policy"},
			})
		}()
	}
	wg.Wait()

	if got := scope.Len(); got != 1 {
		t.Errorf("expected concurrent duplicates collapsed to 1, got %d", got)
	}
}
