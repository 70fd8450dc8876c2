package ws

import (
	"encoding/json"
	"time"

	"github.com/scribe-notes/server/domain"
)

// Event types on the live-event surface.
const (
	// client -> server
	EventJoinNote  = "join-note"
	EventLeaveNote = "leave-note"
	EventEditNote  = "edit-note"

	// server -> client
	EventNoteUpdated  = "note-updated"
	EventNotification = "notification"
)

// Event is the inbound wire envelope. Payload stays raw until the type is
// known; unknown types are ignored rather than rejected so older servers
// tolerate newer clients.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Message is the outbound wire envelope.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// JoinPayload is carried by join-note and leave-note.
type JoinPayload struct {
	NoteID domain.NoteID `json:"noteId"`
}

// EditPayload is carried by edit-note. A nil Title leaves the title
// untouched.
type EditPayload struct {
	NoteID  domain.NoteID `json:"noteId"`
	Content string        `json:"content"`
	Title   *string       `json:"title,omitempty"`
}

// NoteUpdatedPayload is broadcast to room members after an accepted edit.
type NoteUpdatedPayload struct {
	NoteID      domain.NoteID `json:"noteId"`
	Content     string        `json:"content"`
	Title       *string       `json:"title,omitempty"`
	LastUpdated time.Time     `json:"lastUpdated"`
}

// NotificationPayload is pushed to each live session of a notification's
// recipient.
type NotificationPayload struct {
	ID        domain.NotificationID   `json:"id"`
	Message   string                  `json:"message"`
	NoteID    domain.NoteID           `json:"noteId"`
	Kind      domain.NotificationKind `json:"kind"`
	Timestamp time.Time               `json:"timestamp"`
}
