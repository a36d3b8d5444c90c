package session

import (
	"errors"
	"time"

	"github.com/samber/lo"
)

var (
	ErrInvalidStage    = errors.New("stage must be 1 or 2")
	ErrSessionNotFound = errors.New("engagement session not found")
)

// RequiredStages lists the impression stages that complete a session.
var RequiredStages = []int{1, 2}

type engagement struct {
	linkID int64
	stages map[int]struct{}
}

// Progress describes a session right after a stage was marked.
type Progress struct {
	LinkID  int64
	Stages  int
	Done    bool
	Already bool
}

// Store tracks which impression stages each nonce has completed.
// States per nonce: absent, active, complete; a complete session must be
// cleared by the caller.
type Store struct {
	sessions *expiring[*engagement]
}

func NewStore(now Clock) *Store {
	return &Store{sessions: newExpiring[*engagement](now)}
}

// Open creates an active session for nonce unless a live one already exists.
func (s *Store) Open(nonce string, linkID int64, ttl time.Duration) {
	s.sessions.mu.Lock()
	defer s.sessions.mu.Unlock()

	if _, ok := s.sessions.live(nonce); ok {
		return
	}
	s.sessions.items[nonce] = &item[*engagement]{
		value:     &engagement{linkID: linkID, stages: make(map[int]struct{}, len(RequiredStages))},
		expiresAt: s.sessions.now().Add(ttl),
	}
}

// Advance marks stage as done. Marking is idempotent; completion depends
// only on how many distinct stages were seen.
func (s *Store) Advance(nonce string, stage int) (Progress, error) {
	if !ValidStage(stage) {
		return Progress{}, ErrInvalidStage
	}

	s.sessions.mu.Lock()
	defer s.sessions.mu.Unlock()

	it, ok := s.sessions.live(nonce)
	if !ok {
		return Progress{}, ErrSessionNotFound
	}

	eng := it.value
	_, already := eng.stages[stage]
	eng.stages[stage] = struct{}{}

	return Progress{
		LinkID:  eng.linkID,
		Stages:  len(eng.stages),
		Done:    len(eng.stages) >= len(RequiredStages),
		Already: already,
	}, nil
}

// Clear destroys the session. Called once it is complete.
func (s *Store) Clear(nonce string) {
	s.sessions.mu.Lock()
	defer s.sessions.mu.Unlock()
	delete(s.sessions.items, nonce)
}

func (s *Store) Len() int { return s.sessions.len() }

func (s *Store) Sweep() int { return s.sessions.sweep() }

func (s *Store) StartJanitor(interval time.Duration) { s.sessions.startJanitor(interval) }

func (s *Store) Stop() { s.sessions.stopJanitor() }

func ValidStage(stage int) bool {
	return lo.Contains(RequiredStages, stage)
}
