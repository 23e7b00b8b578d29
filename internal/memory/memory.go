package memory

import (
	"sync"

	"github.com/xaenox/calbot/internal/models"
)

// DefaultLimit is the number of turns retained per user when no explicit
// limit is configured.
const DefaultLimit = 10

// Store keeps a bounded, in-process conversation history per user. History
// is volatile: a restart clears it for everyone.
type Store struct {
	mu       sync.RWMutex
	limit    int
	sessions map[string]*session
}

type session struct {
	// turnMu serializes whole turns for one user: it is held from the
	// moment a message is picked up until its reply is recorded, so a
	// user's second message never reads history mid-update.
	turnMu sync.Mutex
	turns  []models.Turn
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{
		limit:    limit,
		sessions: make(map[string]*session),
	}
}

func (s *Store) get(userID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[userID]
	if !exists {
		sess = &session{}
		s.sessions[userID] = sess
	}
	return sess
}

// Acquire blocks until the caller owns userID's turn lock and returns the
// release function. Turns for distinct users proceed independently.
func (s *Store) Acquire(userID string) func() {
	sess := s.get(userID)
	sess.turnMu.Lock()
	return sess.turnMu.Unlock
}

// History returns a copy of the user's retained turns, oldest first. Unknown
// users get an empty history.
func (s *Store) History(userID string) []models.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, exists := s.sessions[userID]
	if !exists {
		return nil
	}
	turns := make([]models.Turn, len(sess.turns))
	copy(turns, sess.turns)
	return turns
}

// Append records turns at the tail of the user's history in one step, then
// evicts the oldest entries beyond the limit. Passing both sides of an
// exchange keeps the history free of dangling user turns when a reply
// never materializes.
func (s *Store) Append(userID string, turns ...models.Turn) {
	if len(turns) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[userID]
	if !exists {
		sess = &session{}
		s.sessions[userID] = sess
	}
	sess.turns = append(sess.turns, turns...)
	if excess := len(sess.turns) - s.limit; excess > 0 {
		trimmed := make([]models.Turn, s.limit)
		copy(trimmed, sess.turns[excess:])
		sess.turns = trimmed
	}
}

// Clear drops the user's history. Other users are unaffected.
func (s *Store) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, exists := s.sessions[userID]; exists {
		sess.turns = nil
	}
}
