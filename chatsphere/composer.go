package chatsphere

import (
	"context"
	"strings"
	"sync"
)

// Composer holds the outbound draft for the active room. At most one
// message is in edit mode at a time; starting a new edit implicitly
// cancels the prior one. The draft is cleared on every room switch.
type Composer struct {
	session *Session

	mu    sync.Mutex
	draft PendingSend
}

func newComposer(s *Session) *Composer {
	return &Composer{session: s}
}

// SetText updates the draft text and signals typing presence for the
// keystroke when the channel is live.
func (c *Composer) SetText(text string) {
	c.mu.Lock()
	changed := text != c.draft.Text
	c.draft.Text = text
	c.mu.Unlock()
	if !changed {
		return
	}
	c.session.mu.Lock()
	signaler := c.session.signaler
	c.session.mu.Unlock()
	if signaler != nil {
		signaler.InputChanged()
	}
}

// Text returns the current draft text.
func (c *Composer) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft.Text
}

// Attach references an already-uploaded attachment by URL. Ignored while
// editing: edits carry text only.
func (c *Composer) Attach(imageURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft.EditTarget != "" {
		return
	}
	c.draft.ImageURL = imageURL
}

// ClearAttachment drops the attachment reference.
func (c *Composer) ClearAttachment() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.ImageURL = ""
}

// StartEdit switches the composer to edit mode for a message, seeding the
// draft with its current text.
func (c *Composer) StartEdit(messageID, currentText string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = PendingSend{Text: currentText, EditTarget: messageID}
}

// CancelEdit leaves edit mode and clears the draft.
func (c *Composer) CancelEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft.EditTarget == "" {
		return
	}
	c.draft = PendingSend{}
}

// EditingID returns the message under edit, or empty.
func (c *Composer) EditingID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft.EditTarget
}

// Submit emits the draft: an edit event in edit mode, a create event
// otherwise. Rejected without emitting when the draft is empty (no
// non-whitespace text and no attachment) or the channel is not open.
// An accepted submit first emits stop_typing and cancels the typing timer.
func (c *Composer) Submit(ctx context.Context) error {
	c.mu.Lock()
	draft := c.draft
	c.mu.Unlock()

	if draft.empty() {
		return NewError(ErrorInvalidMessage, "empty draft")
	}

	c.session.mu.Lock()
	ch := c.session.channel
	signaler := c.session.signaler
	live := c.session.state == StateLive
	c.session.mu.Unlock()
	if ch == nil || !live {
		return NewError(ErrorNotConnected, "channel not open")
	}

	if signaler != nil {
		signaler.Stop()
	}

	if draft.EditTarget != "" {
		ch.Send(ctx, Event{
			Type:      EventEdit,
			MessageID: draft.EditTarget,
			Content:   strings.TrimSpace(draft.Text),
		})
	} else {
		ch.Send(ctx, Event{
			Type:     EventCreate,
			Content:  strings.TrimSpace(draft.Text),
			ImageURL: draft.ImageURL,
		})
	}

	c.mu.Lock()
	c.draft = PendingSend{}
	c.mu.Unlock()
	return nil
}

// reset clears the draft; called by the session on room switch.
func (c *Composer) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = PendingSend{}
}
