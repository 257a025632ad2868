package chatsphere

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// MessageStore owns the ordered message collection of the active room.
// All application functions are total: unknown identifiers and duplicate
// deliveries are defined as no-ops, never errors.
//
// Canonical order is ascending creation time with ties broken by arrival:
// a stream message with the same timestamp as an existing one lands after
// it, while an out-of-order stream message sorts by its own timestamp.
type MessageStore struct {
	mu         sync.Mutex
	entries    []*storeEntry
	byID       map[string]*storeEntry
	tombstones map[string]struct{}
	seq        uint64
}

type storeEntry struct {
	msg        Message
	seq        uint64
	fromStream bool
}

func NewMessageStore() *MessageStore {
	return &MessageStore{
		byID:       make(map[string]*storeEntry),
		tombstones: make(map[string]struct{}),
	}
}

// LoadSnapshot establishes the history baseline. A second call replaces
// the previous baseline rather than appending to it. Messages already
// applied from the stream survive the load: their edits and receipts win
// over the snapshot copy of the same id, and ids deleted via the stream
// are not resurrected.
func (s *MessageStore) LoadSnapshot(msgs []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inSnapshot := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		inSnapshot[m.ID] = struct{}{}
	}

	// Drop prior snapshot-only entries absent from the new baseline.
	kept := s.entries[:0]
	for _, e := range s.entries {
		if _, ok := inSnapshot[e.msg.ID]; !ok && !e.fromStream {
			delete(s.byID, e.msg.ID)
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept

	for _, m := range msgs {
		if _, dead := s.tombstones[m.ID]; dead {
			continue
		}
		if e, ok := s.byID[m.ID]; ok {
			if e.fromStream {
				// Stream-applied edits and receipts win over the
				// snapshot copy; only the read set is unioned.
				e.msg.ReadBy = unionReaders(e.msg.ReadBy, m.ReadBy, e.msg.SenderID)
			} else {
				reads := unionReaders(e.msg.ReadBy, m.ReadBy, m.SenderID)
				e.msg = m
				e.msg.ReadBy = reads
			}
			continue
		}
		s.insertLocked(m, false)
	}
	s.sortLocked()
}

// Apply folds one stream event into the store and reports whether the
// visible set changed. Typing and presence events are not store events
// and are ignored here.
func (s *MessageStore) Apply(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Type {
	case EventCreate:
		// Duplicate delivery of an already-known id is a no-op, which
		// also covers the echo of a message this client just sent.
		if _, ok := s.byID[ev.ID]; ok {
			return false
		}
		if _, dead := s.tombstones[ev.ID]; dead {
			return false
		}
		s.insertLocked(ev.message(), true)
		s.sortLocked()
		return true
	case EventEdit:
		e, ok := s.byID[ev.TargetID()]
		if !ok {
			return false
		}
		e.msg.Content = ev.Content
		e.msg.UpdatedAt = ev.UpdatedAt
		e.fromStream = true
		return true
	case EventDelete:
		id := ev.TargetID()
		e, ok := s.byID[id]
		if !ok {
			return false
		}
		delete(s.byID, id)
		s.entries = lo.Without(s.entries, e)
		s.tombstones[id] = struct{}{}
		return true
	case EventReadReceipt:
		e, ok := s.byID[ev.TargetID()]
		if !ok {
			return false
		}
		return s.markReadLocked(e, ev.UserID)
	default:
		return false
	}
}

// MarkRead performs the local optimistic read union used by the receipt
// coordinator. Idempotent with the eventual server read_receipt echo.
func (s *MessageStore) MarkRead(messageID, readerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[messageID]
	if !ok {
		return false
	}
	return s.markReadLocked(e, readerID)
}

func (s *MessageStore) markReadLocked(e *storeEntry, readerID string) bool {
	// A sender never reads their own message.
	if readerID == "" || readerID == e.msg.SenderID {
		return false
	}
	if lo.Contains(e.msg.ReadBy, readerID) {
		return false
	}
	e.msg.ReadBy = append(e.msg.ReadBy, readerID)
	e.fromStream = true
	return true
}

// Get returns a message by id.
func (s *MessageStore) Get(id string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return Message{}, false
	}
	return e.msg, true
}

// Messages returns a copy of the store in canonical order.
func (s *MessageStore) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Map(s.entries, func(e *storeEntry, _ int) Message { return e.msg })
}

func (s *MessageStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Reset drops everything; used on room teardown.
func (s *MessageStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.byID = make(map[string]*storeEntry)
	s.tombstones = make(map[string]struct{})
	s.seq = 0
}

func (s *MessageStore) insertLocked(m Message, fromStream bool) {
	m.ReadBy = unionReaders(nil, m.ReadBy, m.SenderID)
	s.seq++
	e := &storeEntry{msg: m, seq: s.seq, fromStream: fromStream}
	s.entries = append(s.entries, e)
	s.byID[m.ID] = e
}

func (s *MessageStore) sortLocked() {
	sort.SliceStable(s.entries, func(i, j int) bool {
		a, b := s.entries[i], s.entries[j]
		if !a.msg.CreatedAt.Equal(b.msg.CreatedAt) {
			return a.msg.CreatedAt.Before(b.msg.CreatedAt)
		}
		return a.seq < b.seq
	})
}

// unionReaders merges two read sets, keeping the sender out.
func unionReaders(dst, src []string, senderID string) []string {
	out := lo.Uniq(append(dst, src...))
	return lo.Without(out, senderID)
}
