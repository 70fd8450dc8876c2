package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind classifies what a notification is about.
type NotificationKind string

const (
	NotificationUpdate  NotificationKind = "update"
	NotificationShare   NotificationKind = "share"
	NotificationArchive NotificationKind = "archive"
)

// Notification is a durable per-user record of an action on a note the user
// can access. Immutable once created except for the Read flag.
type Notification struct {
	ID        NotificationID   `json:"id"`
	UserID    UserID           `json:"userId"`
	NoteID    NoteID           `json:"noteId"`
	Message   string           `json:"message"`
	Kind      NotificationKind `json:"kind"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}

func NewNotification(userID UserID, noteID NoteID, message string, kind NotificationKind) *Notification {
	return &Notification{
		ID:        uuid.New(),
		UserID:    userID,
		NoteID:    noteID,
		Message:   message,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}
}
