package chatsphere

import (
	"strings"
	"time"

	"github.com/samber/lo"
)

// RoomKind distinguishes one-to-one conversations from named groups.
type RoomKind string

const (
	RoomDirect RoomKind = "direct"
	RoomGroup  RoomKind = "group"
)

// Room is a conversation context. It is immutable once fetched; a
// re-fetch replaces the whole value, fields are never merged.
type Room struct {
	ID           string   `json:"id"`
	Name         string   `json:"name,omitempty"`
	IsGroup      bool     `json:"is_group"`
	Participants []string `json:"participants"`
}

func (r Room) Kind() RoomKind {
	if r.IsGroup {
		return RoomGroup
	}
	return RoomDirect
}

// Message is a single chat message. ID and SenderID are immutable after
// creation; Content, UpdatedAt and ReadBy may change over the message's
// lifetime.
type Message struct {
	ID        string     `json:"id"`
	RoomID    string     `json:"room_id"`
	SenderID  string     `json:"sender_id"`
	Content   string     `json:"content,omitempty"`
	ImageURL  string     `json:"image_url,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	ReadBy    []string   `json:"read_by,omitempty"`
}

// Edited reports whether the message has been edited since creation.
func (m Message) Edited() bool { return m.UpdatedAt != nil }

// ReadByUser reports whether the given user is in the message's read set.
func (m Message) ReadByUser(userID string) bool {
	return lo.Contains(m.ReadBy, userID)
}

// SeenByAny reports whether any participant other than the sender has
// read the message. Group rooms double-tick on the first reader rather
// than waiting for all participants; the full ReadBy set is kept so a
// stricter rule can be layered on without a wire change.
func (m Message) SeenByAny() bool { return len(m.ReadBy) > 0 }

// PendingSend is an outbound draft: free text, an attachment reference,
// or both, optionally targeting an existing message as an edit.
type PendingSend struct {
	Text       string
	ImageURL   string
	EditTarget string
}

func (p PendingSend) empty() bool {
	return strings.TrimSpace(p.Text) == "" && p.ImageURL == ""
}
