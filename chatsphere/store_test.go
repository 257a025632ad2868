package chatsphere

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func msgAt(id, sender, content string, at time.Time) Message {
	return Message{ID: id, RoomID: "r1", SenderID: sender, Content: content, CreatedAt: at}
}

func ids(msgs []Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func TestStoreOrderingStability(t *testing.T) {
	base := time.Now()
	s := NewMessageStore()
	s.LoadSnapshot([]Message{
		msgAt("m1", "A", "first", base),
		msgAt("m2", "A", "second", base.Add(time.Second)),
	})

	at := base.Add(2 * time.Second)
	changed := s.Apply(Event{Type: EventCreate, ID: "m3", SenderID: "B", Content: "third", CreatedAt: &at})
	require.True(t, changed)
	require.Equal(t, []string{"m1", "m2", "m3"}, ids(s.Messages()))
}

func TestStoreStreamMessageSortsByOwnTimestamp(t *testing.T) {
	base := time.Now()
	s := NewMessageStore()
	s.LoadSnapshot([]Message{
		msgAt("m1", "A", "first", base),
		msgAt("m3", "A", "third", base.Add(2*time.Second)),
	})

	at := base.Add(time.Second)
	s.Apply(Event{Type: EventCreate, ID: "m2", SenderID: "B", Content: "second", CreatedAt: &at})
	require.Equal(t, []string{"m1", "m2", "m3"}, ids(s.Messages()))
}

func TestStoreMergeAfterRace(t *testing.T) {
	base := time.Now()
	s := NewMessageStore()

	// Stream create lands before the snapshot does.
	at := base.Add(3 * time.Second)
	s.Apply(Event{Type: EventCreate, ID: "m4", SenderID: "B", Content: "live", CreatedAt: &at})

	s.LoadSnapshot([]Message{
		msgAt("m1", "A", "one", base),
		msgAt("m2", "A", "two", base.Add(time.Second)),
		msgAt("m3", "A", "three", base.Add(2*time.Second)),
	})
	require.Equal(t, []string{"m1", "m2", "m3", "m4"}, ids(s.Messages()))
}

func TestStoreSnapshotKeepsStreamEdits(t *testing.T) {
	base := time.Now()
	s := NewMessageStore()

	at := base
	updated := base.Add(time.Minute)
	s.Apply(Event{Type: EventCreate, ID: "m1", SenderID: "A", Content: "old", CreatedAt: &at})
	s.Apply(Event{Type: EventEdit, MessageID: "m1", Content: "new", UpdatedAt: &updated})

	s.LoadSnapshot([]Message{msgAt("m1", "A", "old", base)})

	m, ok := s.Get("m1")
	require.True(t, ok)
	require.Equal(t, "new", m.Content)
	require.True(t, m.Edited())
}

func TestStoreSnapshotDoesNotResurrectDeleted(t *testing.T) {
	base := time.Now()
	s := NewMessageStore()

	at := base
	s.Apply(Event{Type: EventCreate, ID: "m1", SenderID: "A", Content: "hi", CreatedAt: &at})
	require.True(t, s.Apply(Event{Type: EventDelete, MessageID: "m1"}))

	s.LoadSnapshot([]Message{msgAt("m1", "A", "hi", base)})
	require.Zero(t, s.Len())
}

func TestStoreSecondSnapshotReplaces(t *testing.T) {
	base := time.Now()
	s := NewMessageStore()
	snap := []Message{
		msgAt("m1", "A", "one", base),
		msgAt("m2", "A", "two", base.Add(time.Second)),
	}
	s.LoadSnapshot(snap)
	s.LoadSnapshot(snap)
	require.Equal(t, []string{"m1", "m2"}, ids(s.Messages()))
}

func TestStoreUnknownIDNoOps(t *testing.T) {
	s := NewMessageStore()
	require.False(t, s.Apply(Event{Type: EventEdit, MessageID: "ghost", Content: "boo"}))
	require.False(t, s.Apply(Event{Type: EventDelete, MessageID: "ghost"}))
	require.False(t, s.Apply(Event{Type: EventReadReceipt, MessageID: "ghost", UserID: "B"}))
	require.Zero(t, s.Len())
}

func TestStoreDuplicateCreateNoOp(t *testing.T) {
	at := time.Now()
	s := NewMessageStore()
	ev := Event{Type: EventCreate, ID: uuid.NewString(), SenderID: "A", Content: "once", CreatedAt: &at}
	require.True(t, s.Apply(ev))
	require.False(t, s.Apply(ev))
	require.Equal(t, 1, s.Len())
}

func TestStoreEditThenDelete(t *testing.T) {
	at := time.Now()
	updated := at.Add(time.Minute)
	s := NewMessageStore()
	s.Apply(Event{Type: EventCreate, ID: "7", SenderID: "A", Content: "old", CreatedAt: &at})

	require.True(t, s.Apply(Event{Type: EventEdit, MessageID: "7", Content: "new", UpdatedAt: &updated}))
	m, ok := s.Get("7")
	require.True(t, ok)
	require.Equal(t, "new", m.Content)
	require.Equal(t, updated, *m.UpdatedAt)

	require.True(t, s.Apply(Event{Type: EventDelete, MessageID: "7"}))
	_, ok = s.Get("7")
	require.False(t, ok)
}

func TestStoreReadReceiptIdempotent(t *testing.T) {
	at := time.Now()
	s := NewMessageStore()
	s.Apply(Event{Type: EventCreate, ID: "m1", SenderID: "A", CreatedAt: &at})

	require.True(t, s.Apply(Event{Type: EventReadReceipt, MessageID: "m1", UserID: "B"}))
	require.False(t, s.Apply(Event{Type: EventReadReceipt, MessageID: "m1", UserID: "B"}))

	m, _ := s.Get("m1")
	require.Equal(t, []string{"B"}, m.ReadBy)
}

func TestStoreNeverSelfReceipt(t *testing.T) {
	at := time.Now()
	s := NewMessageStore()
	s.Apply(Event{Type: EventCreate, ID: "m1", SenderID: "A", CreatedAt: &at})

	require.False(t, s.Apply(Event{Type: EventReadReceipt, MessageID: "m1", UserID: "A"}))
	require.False(t, s.MarkRead("m1", "A"))

	// A snapshot claiming a self-read is scrubbed too.
	s.LoadSnapshot([]Message{{ID: "m2", RoomID: "r1", SenderID: "A", CreatedAt: at, ReadBy: []string{"A", "B"}}})
	m, _ := s.Get("m2")
	require.Equal(t, []string{"B"}, m.ReadBy)

	m, _ = s.Get("m1")
	require.Empty(t, m.ReadBy)
}

func TestStoreMarkReadIdempotentWithEcho(t *testing.T) {
	at := time.Now()
	s := NewMessageStore()
	s.Apply(Event{Type: EventCreate, ID: "m1", SenderID: "A", CreatedAt: &at})

	require.True(t, s.MarkRead("m1", "B"))
	// Server echo of the same receipt changes nothing.
	require.False(t, s.Apply(Event{Type: EventReadReceipt, MessageID: "m1", UserID: "B"}))
	m, _ := s.Get("m1")
	require.Equal(t, []string{"B"}, m.ReadBy)
}
