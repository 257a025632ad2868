package chatsphere

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReconcileAcksUnreadOnce(t *testing.T) {
	store := NewMessageStore()
	store.LoadSnapshot([]Message{
		{ID: "1", RoomID: "R1", SenderID: "A", Content: "hi", CreatedAt: time.Now()},
	})
	coord := NewReadReceiptCoordinator("B")

	var sent []string
	send := func(id string) { sent = append(sent, id) }

	coord.Reconcile(store, send)
	require.Equal(t, []string{"1"}, sent)
	m, _ := store.Get("1")
	require.Equal(t, []string{"B"}, m.ReadBy)

	// Second pass with no new messages emits zero sends.
	coord.Reconcile(store, send)
	require.Len(t, sent, 1)
}

func TestReconcileSkipsOwnAndAlreadyRead(t *testing.T) {
	now := time.Now()
	store := NewMessageStore()
	store.LoadSnapshot([]Message{
		{ID: "1", RoomID: "R1", SenderID: "B", Content: "mine", CreatedAt: now},
		{ID: "2", RoomID: "R1", SenderID: "A", Content: "seen", CreatedAt: now.Add(time.Second), ReadBy: []string{"B"}},
		{ID: "3", RoomID: "R1", SenderID: "A", Content: "new", CreatedAt: now.Add(2 * time.Second)},
	})
	coord := NewReadReceiptCoordinator("B")

	var sent []string
	coord.Reconcile(store, func(id string) { sent = append(sent, id) })
	require.Equal(t, []string{"3"}, sent)
}

func TestReconcileOptimisticMarkSurvivesEcho(t *testing.T) {
	now := time.Now()
	store := NewMessageStore()
	store.LoadSnapshot([]Message{
		{ID: "1", RoomID: "R1", SenderID: "A", CreatedAt: now},
	})
	coord := NewReadReceiptCoordinator("B")

	var sent []string
	coord.Reconcile(store, func(id string) { sent = append(sent, id) })

	// Server-confirmed receipt arrives after the optimistic mark.
	store.Apply(Event{Type: EventReadReceipt, MessageID: "1", UserID: "B"})
	coord.Reconcile(store, func(id string) { sent = append(sent, id) })

	require.Len(t, sent, 1)
	m, _ := store.Get("1")
	require.Equal(t, []string{"B"}, m.ReadBy)
}

func TestReconcileAcksLateStreamMessage(t *testing.T) {
	now := time.Now()
	store := NewMessageStore()
	coord := NewReadReceiptCoordinator("B")

	var sent []string
	send := func(id string) { sent = append(sent, id) }

	coord.Reconcile(store, send)
	require.Empty(t, sent)

	at := now
	store.Apply(Event{Type: EventCreate, ID: "9", SenderID: "A", Content: "late", CreatedAt: &at})
	coord.Reconcile(store, send)
	require.Equal(t, []string{"9"}, sent)
}
