package dialog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFSMTransitions(t *testing.T) {
	fsm := NewFSM()

	allowed := []struct{ from, to State }{
		{StateIdle, StateAwaitingBooking},
		{StateAwaitingBooking, StateSelectingDate},
		{StateAwaitingBooking, StateIdle},
		{StateSelectingDate, StateSelectingTime},
		{StateSelectingTime, StateSelectingPlatform},
		{StateSelectingPlatform, StateAwaitingFinal},
		{StateAwaitingFinal, StateCommitted},
		{StateAwaitingFinal, StateSelectingTime},
		{StateSelectingDate, StateCancelled},
	}
	for _, tr := range allowed {
		assert.True(t, fsm.CanTransition(tr.from, tr.to), "%s -> %s", tr.from, tr.to)
	}

	blocked := []struct{ from, to State }{
		{StateIdle, StateSelectingTime},
		{StateSelectingDate, StateAwaitingFinal},
		{StateSelectingTime, StateCommitted},
		{StateCommitted, StateIdle},
		{StateCancelled, StateAwaitingBooking},
	}
	for _, tr := range blocked {
		assert.False(t, fsm.CanTransition(tr.from, tr.to), "%s -> %s", tr.from, tr.to)
	}
}

func TestStateIsTerminal(t *testing.T) {
	assert.True(t, StateCommitted.IsTerminal())
	assert.True(t, StateCancelled.IsTerminal())
	assert.False(t, StateIdle.IsTerminal())
	assert.False(t, StateSelectingTime.IsTerminal())
}

func TestSessionStoreExpiry(t *testing.T) {
	store := NewSessionStore(10 * time.Minute)
	current := time.Date(2025, 5, 7, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	store.Put(&Session{UserID: "u1", State: StateAwaitingBooking, UpdatedAt: current})
	assert.NotNil(t, store.Get("u1"))

	current = current.Add(11 * time.Minute)
	assert.Nil(t, store.Get("u1"), "expired session should be dropped on access")
	assert.Equal(t, 0, store.Len())
}

func TestSessionStoreCleanup(t *testing.T) {
	store := NewSessionStore(10 * time.Minute)
	current := time.Date(2025, 5, 7, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	store.Put(&Session{UserID: "stale", UpdatedAt: current.Add(-20 * time.Minute)})
	store.Put(&Session{UserID: "fresh", UpdatedAt: current})

	assert.Equal(t, 1, store.Cleanup())
	assert.Equal(t, 1, store.Len())
	assert.NotNil(t, store.Get("fresh"))
}

func TestSessionStoreReplace(t *testing.T) {
	store := NewSessionStore(0)

	store.Put(&Session{UserID: "u1", State: StateSelectingDate, UpdatedAt: time.Now()})
	store.Put(&Session{UserID: "u1", State: StateAwaitingBooking, UpdatedAt: time.Now()})

	assert.Equal(t, 1, store.Len())
	assert.Equal(t, StateAwaitingBooking, store.Get("u1").State)
}

func TestSessionDateOffered(t *testing.T) {
	loc, _ := time.LoadLocation("Asia/Manila")
	s := &Session{UpcomingDates: []time.Time{
		time.Date(2025, 5, 12, 0, 0, 0, 0, loc),
		time.Date(2025, 5, 14, 0, 0, 0, 0, loc),
	}}

	assert.True(t, s.DateOffered(time.Date(2025, 5, 12, 15, 30, 0, 0, loc)))
	assert.False(t, s.DateOffered(time.Date(2025, 5, 13, 0, 0, 0, 0, loc)))
}
