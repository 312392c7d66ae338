// Package session owns the one mutable shared entity in the system: the
// per-conversation record of history, order stage and draft, plus the store
// that serializes access to it per session key.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/room4-2/OpenCanteen/order"
)

// Role identifies the author of a history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one immutable history entry. Stopped marks an assistant turn whose
// stream was cancelled by the client before completion.
type Turn struct {
	Role    Role
	Text    string
	Stopped bool
}

// Session is the durable record of one conversation. History is append-only;
// stage and draft are mutated only by the dialogue controller, which holds
// the session's turn slot for the duration of a turn.
type Session struct {
	ID        string
	CreatedAt time.Time

	turnSlot chan struct{} // capacity 1; held for a whole turn

	mu           sync.RWMutex
	lastActivity time.Time
	history      []Turn
	stage        order.Stage
	draft        *order.Draft
	lastInquiry  []order.Item // items from the most recent availability answer
}

func newSession(id string) *Session {
	s := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		turnSlot:  make(chan struct{}, 1),
	}
	s.lastActivity = s.CreatedAt
	return s
}

// BeginTurn acquires the session's turn slot. A second request for the same
// session queues here until the first turn's stream has closed, so turns for
// one session never interleave.
func (s *Session) BeginTurn(ctx context.Context) error {
	select {
	case s.turnSlot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EndTurn releases the turn slot.
func (s *Session) EndTurn() {
	<-s.turnSlot
}

// AppendTurn adds a history entry. Entries are never edited afterwards.
func (s *Session) AppendTurn(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, t)
	s.lastActivity = time.Now()
}

// SeedHistory installs client-supplied history, but only into a session that
// has none yet: once the session owns a log, it is authoritative.
func (s *Session) SeedHistory(turns []Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 && len(turns) > 0 {
		s.history = append(s.history, turns...)
	}
}

// History returns a copy of the conversation log.
func (s *Session) History() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Turn(nil), s.history...)
}

func (s *Session) Stage() order.Stage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stage
}

// Draft returns the live draft pointer; callers that may abandon a turn must
// clone before mutating.
func (s *Session) Draft() *order.Draft {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draft
}

// SetFlow installs the committed stage and draft together so the invariant
// (draft non-nil iff an order flow is in progress) holds at every commit.
func (s *Session) SetFlow(stage order.Stage, draft *order.Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !stage.InProgress() {
		draft = nil
	}
	s.stage = stage
	s.draft = draft
	s.lastActivity = time.Now()
}

// LastInquiry returns the items resolved by the most recent availability
// answer, used when the user later says "yes, order it".
func (s *Session) LastInquiry() []order.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]order.Item(nil), s.lastInquiry...)
}

func (s *Session) SetLastInquiry(items []order.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastInquiry = append([]order.Item(nil), items...)
}

// LastActivity reports when the session last saw traffic.
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}
