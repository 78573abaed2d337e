package agent

import (
	"sync"
	"time"

	"github.com/glintcart/glintbot/internal/domain"
)

const (
	// maxContextTurns bounds the history sent to the model per turn.
	maxContextTurns = 20
	// contextTTL expires idle conversations. Any append slides the window.
	contextTTL = 24 * time.Hour
)

// ContextStore keeps rolling conversation history per customer and
// channel.
type ContextStore interface {
	History(key domain.ConversationKey) []domain.ConversationTurn
	Append(key domain.ConversationKey, turns ...domain.ConversationTurn)
	Clear(key domain.ConversationKey)
}

type contextEntry struct {
	turns   []domain.ConversationTurn
	touched time.Time
}

// MemoryContextStore is the in-process ContextStore. History is capped
// to the most recent turns and evicted after a period of inactivity.
type MemoryContextStore struct {
	mu       sync.Mutex
	entries  map[string]*contextEntry
	maxTurns int
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryContextStore() *MemoryContextStore {
	return &MemoryContextStore{
		entries:  make(map[string]*contextEntry),
		maxTurns: maxContextTurns,
		ttl:      contextTTL,
		now:      time.Now,
	}
}

// History returns a copy of the live turns for key, oldest first.
// Expired conversations read as empty.
func (s *MemoryContextStore) History(key domain.ConversationKey) []domain.ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key.String()]
	if !ok {
		return nil
	}
	if s.now().Sub(e.touched) > s.ttl {
		delete(s.entries, key.String())
		return nil
	}
	out := make([]domain.ConversationTurn, len(e.turns))
	copy(out, e.turns)
	return out
}

// Append adds turns and trims history to the window. Appending to an
// expired conversation starts a fresh one.
func (s *MemoryContextStore) Append(key domain.ConversationKey, turns ...domain.ConversationTurn) {
	if len(turns) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key.String()]
	if !ok || now.Sub(e.touched) > s.ttl {
		e = &contextEntry{}
		s.entries[key.String()] = e
	}
	e.turns = append(e.turns, turns...)
	if over := len(e.turns) - s.maxTurns; over > 0 {
		e.turns = append([]domain.ConversationTurn(nil), e.turns[over:]...)
	}
	e.touched = now
}

func (s *MemoryContextStore) Clear(key domain.ConversationKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key.String())
}
