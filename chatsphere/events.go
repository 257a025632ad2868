package chatsphere

import (
	"encoding/json"
	"time"
)

// EventType discriminates every unit crossing the event channel. The set
// is closed: an inbound event outside it is rejected as malformed, not
// silently skipped.
type EventType string

const (
	EventCreate      EventType = "create"
	EventEdit        EventType = "edit"
	EventDelete      EventType = "delete"
	EventTyping      EventType = "typing"
	EventStopTyping  EventType = "stop_typing"
	EventRead        EventType = "read"         // client -> server
	EventReadReceipt EventType = "read_receipt" // server -> client
)

// Event is the wire envelope for both directions. Which fields are set
// depends on Type; DecodeEvent validates the per-type requirements.
type Event struct {
	Type      EventType  `json:"type,omitempty"`
	ID        string     `json:"id,omitempty"`
	MessageID string     `json:"message_id,omitempty"`
	RoomID    string     `json:"room_id,omitempty"`
	SenderID  string     `json:"sender_id,omitempty"`
	UserID    string     `json:"user_id,omitempty"`
	Username  string     `json:"username,omitempty"`
	Content   string     `json:"content,omitempty"`
	ImageURL  string     `json:"image_url,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	ReadBy    []string   `json:"read_by,omitempty"`
}

// TargetID is the message identifier an edit/delete/receipt refers to.
// Older server builds put it in "id", newer ones in "message_id".
func (e Event) TargetID() string {
	if e.MessageID != "" {
		return e.MessageID
	}
	return e.ID
}

// message builds the store representation of a create event.
func (e Event) message() Message {
	var created time.Time
	if e.CreatedAt != nil {
		created = *e.CreatedAt
	}
	return Message{
		ID:        e.ID,
		RoomID:    e.RoomID,
		SenderID:  e.SenderID,
		Content:   e.Content,
		ImageURL:  e.ImageURL,
		CreatedAt: created,
		UpdatedAt: e.UpdatedAt,
		ReadBy:    e.ReadBy,
	}
}

// DecodeEvent parses an inbound frame. A frame without a type tag is a
// legacy message broadcast and decodes as a create. A frame that is not
// an event object fails with a serialization error; unknown types and
// frames missing their required fields fail with a malformed_event error.
func DecodeEvent(raw []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event{}, WrapError(ErrorSerialization, "undecodable frame", err)
	}
	if ev.Type == "" {
		ev.Type = EventCreate
	}
	switch ev.Type {
	case EventCreate:
		if ev.ID == "" {
			return Event{}, NewError(ErrorMalformedEvent, "create without id")
		}
	case EventEdit, EventDelete, EventRead:
		if ev.TargetID() == "" {
			return Event{}, NewError(ErrorMalformedEvent, string(ev.Type)+" without message id")
		}
	case EventReadReceipt:
		if ev.TargetID() == "" || ev.UserID == "" {
			return Event{}, NewError(ErrorMalformedEvent, "read_receipt without message id or user id")
		}
	case EventTyping:
		if ev.UserID == "" {
			return Event{}, NewError(ErrorMalformedEvent, "typing without user id")
		}
	case EventStopTyping:
		if ev.UserID == "" {
			return Event{}, NewError(ErrorMalformedEvent, "stop_typing without user id")
		}
	default:
		return Event{}, NewError(ErrorMalformedEvent, "unknown event type "+string(ev.Type))
	}
	return ev, nil
}
