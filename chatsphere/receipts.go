package chatsphere

import "sync"

// ReadReceiptCoordinator emits read acknowledgements at most once per
// (message, reader) pair. It marks each acknowledged message read locally
// before the server echo arrives, so a later reconcile pass never
// re-submits it; the local mark is idempotent with the echo.
type ReadReceiptCoordinator struct {
	mu     sync.Mutex
	selfID string
	sent   map[string]struct{}
}

func NewReadReceiptCoordinator(selfID string) *ReadReceiptCoordinator {
	return &ReadReceiptCoordinator{
		selfID: selfID,
		sent:   make(map[string]struct{}),
	}
}

// Reconcile walks the store's visible set and acknowledges every message
// not sent by self and not yet read by self. Runs after snapshot load and
// after every applied stream event.
func (r *ReadReceiptCoordinator) Reconcile(store *MessageStore, sendReceipt func(messageID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range store.Messages() {
		if m.SenderID == r.selfID || m.ReadByUser(r.selfID) {
			continue
		}
		if _, ok := r.sent[m.ID]; ok {
			continue
		}
		r.sent[m.ID] = struct{}{}
		store.MarkRead(m.ID, r.selfID)
		sendReceipt(m.ID)
	}
}

// Reset drops the sent set; used on room teardown.
func (r *ReadReceiptCoordinator) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = make(map[string]struct{})
}
