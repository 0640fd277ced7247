// Package dialog implements the FSM-driven booking conversation: one
// utterance in, one reply out, with all progress held in an explicit
// per-user session.
package dialog

import (
	"sync"
	"time"

	"github.com/keanulaw/NeoCare-App/internal/models"
)

// State represents the current stage of a booking conversation.
type State string

const (
	StateIdle              State = "idle"
	StateAwaitingBooking   State = "awaiting_booking_confirmation"
	StateSelectingDate     State = "selecting_date"
	StateSelectingTime     State = "selecting_time"
	StateSelectingPlatform State = "selecting_platform"
	StateAwaitingFinal     State = "awaiting_final_confirmation"
	StateCommitted         State = "committed"
	StateCancelled         State = "cancelled"
)

// IsTerminal reports whether no further input is accepted for this session.
func (s State) IsTerminal() bool {
	return s == StateCommitted || s == StateCancelled
}

// Session holds one conversation's progress. It is created on the first
// inbound utterance, mutated only by the Engine, and discarded on commit,
// cancellation or replacement.
type Session struct {
	ID               string
	UserID           string
	FullName         string
	State            State
	Consultant       *models.Consultant
	UpcomingDates    []time.Time
	SelectedDate     time.Time // zero value means not selected yet
	SelectedSlot     string
	SelectedPlatform string
	StartedAt        time.Time
	UpdatedAt        time.Time
}

// HasDate reports whether a date has been selected.
func (s *Session) HasDate() bool {
	return !s.SelectedDate.IsZero()
}

// DateOffered reports whether date is one of the precomputed upcoming dates.
func (s *Session) DateOffered(date time.Time) bool {
	key := date.Format("2006-01-02")
	for _, d := range s.UpcomingDates {
		if d.Format("2006-01-02") == key {
			return true
		}
	}
	return false
}

// FSM guards state transitions for the booking dialog.
type FSM struct {
	transitions map[State][]State
}

// NewFSM creates the FSM with the booking flow's allowed transitions.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[State][]State{
			StateIdle:              {StateAwaitingBooking, StateCancelled},
			StateAwaitingBooking:   {StateSelectingDate, StateIdle, StateCancelled},
			StateSelectingDate:     {StateSelectingTime, StateCancelled},
			StateSelectingTime:     {StateSelectingPlatform, StateCancelled},
			StateSelectingPlatform: {StateAwaitingFinal, StateCancelled},
			StateAwaitingFinal:     {StateCommitted, StateSelectingTime, StateCancelled},
			StateCommitted:         {},
			StateCancelled:         {},
		},
	}
}

// CanTransition checks if a transition is allowed.
func (f *FSM) CanTransition(from, to State) bool {
	for _, s := range f.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// SessionStore manages the active sessions, at most one per user. Starting
// a new conversation replaces any stale session for that user.
type SessionStore struct {
	sessions map[string]*Session
	timeout  time.Duration
	mu       sync.Mutex
	now      func() time.Time
}

// DefaultSessionTimeout discards conversations abandoned mid-flow.
const DefaultSessionTimeout = 30 * time.Minute

// NewSessionStore creates a session store with the given idle timeout.
func NewSessionStore(timeout time.Duration) *SessionStore {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		timeout:  timeout,
		now:      time.Now,
	}
}

// Get returns the user's active session, or nil if none or expired.
func (ss *SessionStore) Get(userID string) *Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	s, ok := ss.sessions[userID]
	if !ok {
		return nil
	}
	if ss.now().Sub(s.UpdatedAt) > ss.timeout {
		delete(ss.sessions, userID)
		return nil
	}
	return s
}

// Put stores (or replaces) the user's session.
func (ss *SessionStore) Put(s *Session) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.sessions[s.UserID] = s
}

// Delete removes the user's session.
func (ss *SessionStore) Delete(userID string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, userID)
}

// Cleanup removes expired sessions and returns how many were removed.
func (ss *SessionStore) Cleanup() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	removed := 0
	for userID, s := range ss.sessions {
		if ss.now().Sub(s.UpdatedAt) > ss.timeout {
			delete(ss.sessions, userID)
			removed++
		}
	}
	return removed
}

// Len returns the number of live sessions.
func (ss *SessionStore) Len() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.sessions)
}
