package agent

import (
	"sync"
	"time"

	"github.com/firebase/genkit/go/ai"
)

// DefaultMemoryWindow is the number of recent exchanges replayed into each
// model call.
const DefaultMemoryWindow = 5

// Exchange is one completed query and answer pair.
type Exchange struct {
	Query  string
	Answer string
}

// Memory keeps a bounded window of recent exchanges for one user session.
// Older exchanges fall off the front; durable recall goes through the chat
// history index instead.
type Memory struct {
	mu        sync.Mutex
	window    int
	exchanges []Exchange
}

// NewMemory creates a Memory holding at most window exchanges.
func NewMemory(window int) *Memory {
	if window <= 0 {
		window = DefaultMemoryWindow
	}
	return &Memory{window: window}
}

// Add appends an exchange, evicting the oldest once the window is full.
func (m *Memory) Add(query, answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exchanges = append(m.exchanges, Exchange{Query: query, Answer: answer})
	if len(m.exchanges) > m.window {
		m.exchanges = m.exchanges[len(m.exchanges)-m.window:]
	}
}

// Len returns the number of retained exchanges.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.exchanges)
}

// Messages renders the retained exchanges as alternating user and model
// messages, oldest first.
func (m *Memory) Messages() []*ai.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := make([]*ai.Message, 0, len(m.exchanges)*2)
	for _, ex := range m.exchanges {
		msgs = append(msgs,
			ai.NewUserMessage(ai.NewTextPart(ex.Query)),
			ai.NewModelMessage(ai.NewTextPart(ex.Answer)),
		)
	}
	return msgs
}

const (
	sessionSweepInterval = 10 * time.Minute
	sessionIdleTTL       = time.Hour
)

type memorySession struct {
	memory   *Memory
	lastSeen time.Time
}

// MemoryStore hands out one Memory per conversation so concurrent users never
// share a window. Sessions idle past sessionIdleTTL are swept on access.
type MemoryStore struct {
	mu        sync.Mutex
	window    int
	sessions  map[string]*memorySession
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryStore creates a store whose sessions hold at most window exchanges.
func NewMemoryStore(window int) *MemoryStore {
	if window <= 0 {
		window = DefaultMemoryWindow
	}
	return &MemoryStore{
		window:    window,
		sessions:  make(map[string]*memorySession),
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// Session returns the memory for one conversation, creating it on first use.
func (s *MemoryStore) Session(id string) *Memory {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) > sessionSweepInterval {
		for key, sess := range s.sessions {
			if now.Sub(sess.lastSeen) > sessionIdleTTL {
				delete(s.sessions, key)
			}
		}
		s.lastSweep = now
	}

	sess, ok := s.sessions[id]
	if !ok {
		sess = &memorySession{memory: NewMemory(s.window)}
		s.sessions[id] = sess
	}
	sess.lastSeen = now
	return sess.memory
}

// Sessions returns the number of live sessions.
func (s *MemoryStore) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
