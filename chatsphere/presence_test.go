package chatsphere

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPresenceDedupAndRefresh(t *testing.T) {
	now := time.Now()
	p := NewPresenceTracker("self", 2*time.Second)
	p.now = func() time.Time { return now }

	require.True(t, p.OnTyping("u1", "alice"))
	require.False(t, p.OnTyping("u1", "alice")) // refresh, not a duplicate
	require.Len(t, p.Typing(), 1)

	// The refresh moved the deadline: still present just before it.
	now = now.Add(1500 * time.Millisecond)
	require.False(t, p.OnTyping("u1", "alice"))
	now = now.Add(1900 * time.Millisecond)
	require.Len(t, p.Typing(), 1)
}

func TestPresenceExpiry(t *testing.T) {
	now := time.Now()
	p := NewPresenceTracker("self", 2*time.Second)
	p.now = func() time.Time { return now }

	p.OnTyping("u1", "alice")
	now = now.Add(2100 * time.Millisecond)
	require.Empty(t, p.Typing())
	require.False(t, p.Sweep()) // already gone
}

func TestPresenceStopTyping(t *testing.T) {
	p := NewPresenceTracker("self", 2*time.Second)
	p.OnTyping("u1", "alice")
	p.OnTyping("u2", "bob")

	require.True(t, p.OnStopTyping("u1"))
	require.False(t, p.OnStopTyping("u1"))

	active := p.Typing()
	require.Len(t, active, 1)
	require.Equal(t, "bob", active[0].Username)
}

func TestPresenceIgnoresSelf(t *testing.T) {
	p := NewPresenceTracker("self", 2*time.Second)
	require.False(t, p.OnTyping("self", "me"))
	require.Empty(t, p.Typing())
}

func TestPresenceSweepReportsChange(t *testing.T) {
	now := time.Now()
	p := NewPresenceTracker("self", 2*time.Second)
	p.now = func() time.Time { return now }

	p.OnTyping("u1", "alice")
	require.False(t, p.Sweep())
	now = now.Add(3 * time.Second)
	require.True(t, p.Sweep())
	require.Empty(t, p.Typing())
}

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func TestTypingSignalerDebounce(t *testing.T) {
	rec := &eventRecorder{}
	sig := newTypingSignaler("self", "me", time.Hour, rec.record)
	defer sig.Cancel()

	now := time.Now()
	sig.now = func() time.Time { return now }

	sig.InputChanged()
	sig.InputChanged()
	now = now.Add(time.Minute)
	sig.InputChanged()

	// One typing signal for the whole burst.
	require.Equal(t, []EventType{EventTyping}, rec.types())
	require.Equal(t, "self", rec.events[0].UserID)
}

func TestTypingSignalerStopAfterQuiet(t *testing.T) {
	rec := &eventRecorder{}
	sig := newTypingSignaler("self", "me", 30*time.Millisecond, rec.record)
	defer sig.Cancel()

	sig.InputChanged()
	require.Eventually(t, func() bool {
		got := rec.types()
		return len(got) == 2 && got[1] == EventStopTyping
	}, time.Second, 5*time.Millisecond)
}

func TestTypingSignalerStopOnSubmit(t *testing.T) {
	rec := &eventRecorder{}
	sig := newTypingSignaler("self", "me", time.Hour, rec.record)

	sig.InputChanged()
	sig.Stop()
	require.Equal(t, []EventType{EventTyping, EventStopTyping}, rec.types())

	// Stop is unconditional: a submit with no prior keystroke still clears
	// the server-side typing state.
	sig.Stop()
	require.Equal(t, []EventType{EventTyping, EventStopTyping, EventStopTyping}, rec.types())
}

func TestTypingSignalerCancelEmitsNothing(t *testing.T) {
	rec := &eventRecorder{}
	sig := newTypingSignaler("self", "me", time.Hour, rec.record)

	sig.InputChanged()
	sig.Cancel()
	require.Equal(t, []EventType{EventTyping}, rec.types())
}
