package chatsphere

import (
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

// PresenceEntry is one peer currently typing in the active room.
type PresenceEntry struct {
	UserID   string
	Username string
}

type presenceState struct {
	entry    PresenceEntry
	deadline time.Time
}

// PresenceTracker maintains the set of peers typing in the active room.
// A peer is dropped on stop_typing or when its deadline passes, whichever
// comes first; the deadline guard covers peers that vanish without a
// stop_typing (connection drop). Self events are ignored.
type PresenceTracker struct {
	mu      sync.Mutex
	selfID  string
	timeout time.Duration
	peers   map[string]*presenceState
	now     func() time.Time
}

func NewPresenceTracker(selfID string, timeout time.Duration) *PresenceTracker {
	return &PresenceTracker{
		selfID:  selfID,
		timeout: timeout,
		peers:   make(map[string]*presenceState),
		now:     time.Now,
	}
}

// OnTyping inserts or refreshes a peer. A peer already marked typing gets
// a deadline refresh, not a duplicate entry. Returns true when the
// visible set changed.
func (p *PresenceTracker) OnTyping(userID, username string) bool {
	if userID == "" || userID == p.selfID {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	deadline := p.now().Add(p.timeout)
	if st, ok := p.peers[userID]; ok {
		st.deadline = deadline
		return false
	}
	p.peers[userID] = &presenceState{
		entry:    PresenceEntry{UserID: userID, Username: username},
		deadline: deadline,
	}
	return true
}

// OnStopTyping removes a peer immediately. Returns true when it was present.
func (p *PresenceTracker) OnStopTyping(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.peers[userID]; !ok {
		return false
	}
	delete(p.peers, userID)
	return true
}

// Sweep removes entries whose deadline has passed. Returns true when any
// entry was dropped.
func (p *PresenceTracker) Sweep() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.expireLocked(p.now())
}

// Typing returns the active set, expiring stale entries first.
func (p *PresenceTracker) Typing() []PresenceEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expireLocked(p.now())
	out := lo.Map(lo.Values(p.peers), func(st *presenceState, _ int) PresenceEntry { return st.entry })
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// Clear drops all entries; used on room teardown.
func (p *PresenceTracker) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.peers = make(map[string]*presenceState)
}

func (p *PresenceTracker) expireLocked(now time.Time) bool {
	changed := false
	for id, st := range p.peers {
		if now.After(st.deadline) {
			delete(p.peers, id)
			changed = true
		}
	}
	return changed
}

// typingSignaler drives the local composer's typing presence: a typing
// event at most once per window while keys arrive, and a stop_typing once
// input goes quiet, on submit, or on room switch. One signaler per room;
// Cancel is mandatory on teardown so a dead room's timer cannot leak a
// stop_typing into the next one.
type typingSignaler struct {
	mu       sync.Mutex
	send     func(Event)
	selfID   string
	username string
	window   time.Duration
	now      func() time.Time

	lastSignal time.Time
	active     bool
	timer      *time.Timer
}

func newTypingSignaler(selfID, username string, window time.Duration, send func(Event)) *typingSignaler {
	return &typingSignaler{
		send:     send,
		selfID:   selfID,
		username: username,
		window:   window,
		now:      time.Now,
	}
}

// InputChanged is called on every local keystroke.
func (t *typingSignaler) InputChanged() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if !t.active || now.Sub(t.lastSignal) >= t.window {
		t.send(Event{Type: EventTyping, UserID: t.selfID, Username: t.username})
		t.lastSignal = now
		t.active = true
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.window, t.expire)
}

// Stop emits stop_typing immediately and cancels the inactivity timer.
// Called on submit and on room switch; the emit is unconditional so the
// server side never carries a ghost typing state for this user.
func (t *typingSignaler) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearTimerLocked()
	t.send(Event{Type: EventStopTyping, UserID: t.selfID})
	t.active = false
}

// Cancel drops the timer without emitting; for teardown after the channel
// is already gone.
func (t *typingSignaler) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearTimerLocked()
	t.active = false
}

func (t *typingSignaler) expire() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearTimerLocked()
	if t.active {
		t.send(Event{Type: EventStopTyping, UserID: t.selfID})
	}
	t.active = false
}

func (t *typingSignaler) clearTimerLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
