package chatsphere

import (
	"context"
	"sync"
	"time"

	"github.com/chatsphere/sdk-go/chatsphere/rest"
)

// HistoryLoader fetches the bounded, chronologically ordered snapshot for
// a room.
type HistoryLoader interface {
	RoomMessages(ctx context.Context, roomID string, limit int) ([]Message, error)
}

// presenceSweepInterval is how often a live room prunes expired typing
// entries between inbound events.
const presenceSweepInterval = 500 * time.Millisecond

// Session orchestrates the engine for exactly one active room at a time.
// Activating a room tears the previous one down completely before the new
// one is built. Store, presence and receipt state are fresh instances per
// activation, so a fetch result or stream event that arrives after a room
// switch lands at most on the dead instance and is additionally discarded
// by an epoch check before any subscriber sees it.
type Session struct {
	cfg        Config
	logger     Logger
	loader     HistoryLoader
	opener     ChannelOpener
	dispatcher Dispatcher
	composer   *Composer

	mu           sync.Mutex
	state        SessionState
	room         *Room
	epoch        uint64
	store        *MessageStore
	presence     *PresenceTracker
	receipts     *ReadReceiptCoordinator
	channel      EventChannel
	signaler     *typingSignaler
	cancel       context.CancelFunc
	snapshotDone bool
	channelOpen  bool
}

// NewSession wires a session against the standard REST history loader and
// websocket dialer for the configured endpoints.
func NewSession(cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rc := rest.NewClient(cfg.APIBaseURL)
	rc.SetToken(cfg.Token)
	return NewSessionWith(cfg, &restHistory{c: rc}, NewDialer(cfg))
}

// NewSessionWith wires a session against explicit collaborators.
func NewSessionWith(cfg Config, loader HistoryLoader, opener ChannelOpener) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		cfg:      cfg,
		logger:   noopLogger{},
		loader:   loader,
		opener:   opener,
		state:    StateIdle,
		store:    NewMessageStore(),
		presence: NewPresenceTracker(cfg.SelfID, cfg.TypingTimeout),
		receipts: NewReadReceiptCoordinator(cfg.SelfID),
	}
	s.composer = newComposer(s)
	return s, nil
}

// SetLogger overrides logger (optional).
func (s *Session) SetLogger(l Logger) {
	if l == nil {
		return
	}
	s.logger = l
	if d, ok := s.opener.(*Dialer); ok {
		d.SetLogger(l)
	}
}

// Subscription hooks; register before the first activation.

func (s *Session) OnSnapshot(fn func([]Message))               { s.dispatcher.SetOnSnapshot(fn) }
func (s *Session) OnMessageCreated(fn func(Message))           { s.dispatcher.SetOnMessageCreated(fn) }
func (s *Session) OnMessageEdited(fn func(Message))            { s.dispatcher.SetOnMessageEdited(fn) }
func (s *Session) OnMessageDeleted(fn func(string))            { s.dispatcher.SetOnMessageDeleted(fn) }
func (s *Session) OnTypingChanged(fn func([]PresenceEntry))    { s.dispatcher.SetOnTypingChanged(fn) }
func (s *Session) OnReceipt(fn func(messageID, userID string)) { s.dispatcher.SetOnReceipt(fn) }
func (s *Session) OnState(fn func(StateEvent))                 { s.dispatcher.SetOnState(fn) }
func (s *Session) OnError(fn func(error))                      { s.dispatcher.SetOnError(fn) }

// State returns the current connection state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ActiveRoom returns the active room, or nil.
func (s *Session) ActiveRoom() *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room == nil {
		return nil
	}
	r := *s.room
	return &r
}

// Messages returns the active room's messages in canonical order.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	store := s.store
	s.mu.Unlock()
	return store.Messages()
}

// Typing returns the peers currently typing in the active room.
func (s *Session) Typing() []PresenceEntry {
	s.mu.Lock()
	presence := s.presence
	s.mu.Unlock()
	return presence.Typing()
}

// Composer returns the outbound composer bound to this session.
func (s *Session) Composer() *Composer { return s.composer }

// DeleteMessage asks the server to remove a message. The local store
// updates when the delete event echoes back on the stream.
func (s *Session) DeleteMessage(ctx context.Context, messageID string) error {
	s.mu.Lock()
	ch := s.channel
	live := s.state == StateLive
	s.mu.Unlock()
	if ch == nil || !live {
		return NewError(ErrorNotConnected, "channel not open")
	}
	ch.Send(ctx, Event{Type: EventDelete, MessageID: messageID})
	return nil
}

// ActivateRoom begins a room switch. Any previous room is torn down
// first: its channel is closed and its presence, receipts and timers are
// cleared, after which the history fetch and the channel open for the new
// room run concurrently. The session goes live once both complete, in
// either order.
func (s *Session) ActivateRoom(ctx context.Context, room Room) {
	s.mu.Lock()
	s.teardownLocked()
	epoch := s.epoch
	r := room
	s.room = &r
	s.store = NewMessageStore()
	s.presence = NewPresenceTracker(s.cfg.SelfID, s.cfg.TypingTimeout)
	s.receipts = NewReadReceiptCoordinator(s.cfg.SelfID)
	s.composer.reset()
	fire := s.setStateLocked(StateLoading, nil)
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	store := s.store
	s.mu.Unlock()
	fire()

	go s.loadHistory(ctx, epoch, room.ID, store)
	go s.openChannel(ctx, runCtx, epoch, room.ID)
}

// Deactivate tears down to an empty idle state, used when the user leaves
// the chat context entirely.
func (s *Session) Deactivate() {
	s.mu.Lock()
	s.teardownLocked()
	s.room = nil
	s.composer.reset()
	var fires []func()
	if s.state == StateLoading || s.state == StateLive {
		fires = append(fires, s.setStateLocked(StateClosed, nil))
	}
	fires = append(fires, s.setStateLocked(StateIdle, nil))
	s.mu.Unlock()
	for _, fire := range fires {
		fire()
	}
}

// Close is engine shutdown; equivalent to leaving the chat context.
func (s *Session) Close() error {
	s.Deactivate()
	return nil
}

func (s *Session) loadHistory(ctx context.Context, epoch uint64, roomID string, store *MessageStore) {
	msgs, err := s.loader.RoomMessages(ctx, roomID, s.cfg.HistoryLimit)

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		s.logger.Debug("stale history discarded", map[string]any{"room": roomID})
		return
	}
	var fireErr error
	if err != nil {
		// Non-fatal: the stream can still deliver live messages.
		fireErr = WrapError(ErrorFetchFailed, "history for "+roomID, err)
		s.logger.Warn("history unavailable, empty baseline", map[string]any{"room": roomID, "error": err.Error()})
		msgs = nil
	}
	store.LoadSnapshot(msgs)
	s.snapshotDone = true
	fireState := s.maybeLiveLocked()
	snapshot := store.Messages()
	receipts := s.receipts
	ch := s.channel
	s.mu.Unlock()

	s.dispatcher.fireError(fireErr)
	s.dispatcher.fireSnapshot(snapshot)
	fireState()
	if ch != nil {
		reconcile(receipts, store, ch)
	}
}

func (s *Session) openChannel(ctx, runCtx context.Context, epoch uint64, roomID string) {
	ch, err := s.opener.Open(ctx, roomID)

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		if ch != nil {
			_ = ch.Close()
		}
		s.logger.Debug("stale channel discarded", map[string]any{"room": roomID})
		return
	}
	if err != nil {
		fire := s.setStateLocked(StateClosed, err)
		s.mu.Unlock()
		fire()
		s.dispatcher.fireError(err)
		return
	}
	s.channel = ch
	s.channelOpen = true
	s.signaler = newTypingSignaler(s.cfg.SelfID, s.cfg.Username, s.cfg.TypingTimeout, func(ev Event) {
		ch.Send(context.Background(), ev)
	})
	fireState := s.maybeLiveLocked()
	snapshotDone := s.snapshotDone
	store, presence, receipts := s.store, s.presence, s.receipts
	s.mu.Unlock()
	fireState()

	// The snapshot may have landed before the channel existed; unread
	// messages from it still need acknowledging.
	if snapshotDone {
		reconcile(receipts, store, ch)
	}

	go s.pumpEvents(epoch, ch, store, presence, receipts)
	go s.sweepPresence(runCtx, epoch, presence)
}

func (s *Session) pumpEvents(epoch uint64, ch EventChannel, store *MessageStore, presence *PresenceTracker, receipts *ReadReceiptCoordinator) {
	for ev := range ch.Events() {
		s.handleEvent(epoch, ev, ch, store, presence, receipts)
	}

	// Inbound sequence terminated: remote close or local teardown.
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	fire := func() {}
	var dropErr error
	if s.state == StateLive || s.state == StateLoading {
		// Teardown bumps the epoch, so reaching this transition means
		// the remote end dropped the channel.
		dropErr = NewError(ErrorDisconnected, "event channel closed by remote")
		fire = s.setStateLocked(StateClosed, dropErr)
	}
	s.mu.Unlock()
	fire()
	if dropErr != nil {
		s.dispatcher.fireError(dropErr)
	}
}

// handleEvent applies one inbound event to this activation's components.
// The components belong to the epoch that started the pump, so a racing
// room switch can never leak an old room's event into the new store; the
// epoch check just silences subscriber callbacks for a dead room.
func (s *Session) handleEvent(epoch uint64, ev Event, ch EventChannel, store *MessageStore, presence *PresenceTracker, receipts *ReadReceiptCoordinator) {
	s.mu.Lock()
	stale := epoch != s.epoch
	wrongRoom := ev.RoomID != "" && s.room != nil && ev.RoomID != s.room.ID
	s.mu.Unlock()
	if stale {
		s.logger.Debug("stale event discarded", map[string]any{"type": string(ev.Type)})
		return
	}
	if wrongRoom {
		s.logger.Debug("event for inactive room discarded", map[string]any{"room": ev.RoomID})
		return
	}

	switch ev.Type {
	case EventCreate:
		if !store.Apply(ev) {
			return
		}
		if m, ok := store.Get(ev.ID); ok {
			s.dispatcher.fireMessageCreated(m)
		}
		reconcile(receipts, store, ch)
	case EventEdit:
		if !store.Apply(ev) {
			return
		}
		if m, ok := store.Get(ev.TargetID()); ok {
			s.dispatcher.fireMessageEdited(m)
		}
	case EventDelete:
		if store.Apply(ev) {
			s.dispatcher.fireMessageDeleted(ev.TargetID())
		}
	case EventReadReceipt:
		if store.Apply(ev) {
			s.dispatcher.fireReceipt(ev.TargetID(), ev.UserID)
		}
	case EventTyping:
		if presence.OnTyping(ev.UserID, ev.Username) {
			s.dispatcher.fireTypingChanged(presence.Typing())
		}
	case EventStopTyping:
		if presence.OnStopTyping(ev.UserID) {
			s.dispatcher.fireTypingChanged(presence.Typing())
		}
	case EventRead:
		// Client-to-server only; a server echoing it back is noise.
		s.logger.Debug("ignoring inbound read event", map[string]any{"message": ev.TargetID()})
	}
}

// reconcile acknowledges everything unread-by-self, at most once each.
func reconcile(receipts *ReadReceiptCoordinator, store *MessageStore, ch EventChannel) {
	receipts.Reconcile(store, func(messageID string) {
		ch.Send(context.Background(), Event{Type: EventRead, MessageID: messageID})
	})
}

func (s *Session) sweepPresence(ctx context.Context, epoch uint64, presence *PresenceTracker) {
	ticker := time.NewTicker(presenceSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			stale := epoch != s.epoch
			s.mu.Unlock()
			if stale {
				return
			}
			if presence.Sweep() {
				s.dispatcher.fireTypingChanged(presence.Typing())
			}
		}
	}
}

// teardownLocked dismantles the current room instance: stop_typing is
// flushed while the channel is still open, then the channel, timers and
// per-room state all go. Bumping the epoch invalidates every in-flight
// fetch, open and inbound event for the old room.
func (s *Session) teardownLocked() {
	s.epoch++
	if s.signaler != nil {
		if s.channel != nil {
			s.signaler.Stop()
		} else {
			s.signaler.Cancel()
		}
		s.signaler = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.channel != nil {
		_ = s.channel.Close()
		s.channel = nil
	}
	s.channelOpen = false
	s.snapshotDone = false
	s.presence.Clear()
	s.receipts.Reset()
	s.store.Reset()
}

func (s *Session) maybeLiveLocked() func() {
	if s.state == StateLoading && s.snapshotDone && s.channelOpen {
		return s.setStateLocked(StateLive, nil)
	}
	return func() {}
}

// setStateLocked records the transition and returns the callback to fire
// once the lock is released.
func (s *Session) setStateLocked(next SessionState, err error) func() {
	if s.state == next {
		return func() {}
	}
	ev := StateEvent{Old: s.state, New: next, Err: err}
	s.state = next
	return func() { s.dispatcher.fireState(ev) }
}

// restHistory adapts the REST client to the HistoryLoader contract.
type restHistory struct {
	c *rest.Client
}

func (h *restHistory) RoomMessages(ctx context.Context, roomID string, limit int) ([]Message, error) {
	infos, err := h.c.RoomMessages(ctx, roomID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Message, 0, len(infos))
	for _, mi := range infos {
		out = append(out, Message{
			ID:        mi.ID,
			RoomID:    mi.RoomID,
			SenderID:  mi.SenderID,
			Content:   mi.Content,
			ImageURL:  mi.ImageURL,
			CreatedAt: mi.CreatedAt,
			UpdatedAt: mi.UpdatedAt,
			ReadBy:    mi.ReadBy,
		})
	}
	return out, nil
}
