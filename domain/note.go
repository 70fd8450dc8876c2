package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidPermission is returned when a permission value other than
	// "read" or "write" reaches a sharing operation.
	ErrInvalidPermission = errors.New("permission must be read or write")

	// ErrNotFound is the shared sentinel for absent notes, users and
	// notifications, whatever repository they live in.
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied is surfaced by owner-gated operations (share, delete,
	// REST update). Live events drop silently instead.
	ErrAccessDenied = errors.New("access denied")
)

type (
	NoteID         = uuid.UUID
	UserID         = uuid.UUID
	NotificationID = uuid.UUID
)

// Permission is a collaborator's access level on a note.
type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
)

// Valid reports whether p is one of the accepted permission values.
func (p Permission) Valid() bool {
	return p == PermissionRead || p == PermissionWrite
}

// Collaborator is one entry of a note's collaborator list.
type Collaborator struct {
	UserID     UserID     `json:"userId"`
	Permission Permission `json:"permission"`
}

// Note is a shared text document. The owner never appears in Collaborators,
// and a user appears in Collaborators at most once.
type Note struct {
	ID            NoteID         `json:"id"`
	Title         string         `json:"title"`
	Content       string         `json:"content"`
	OwnerID       UserID         `json:"ownerId"`
	Collaborators []Collaborator `json:"collaborators"`
	LastUpdated   time.Time      `json:"lastUpdated"`
	CreatedAt     time.Time      `json:"createdAt"`
	Archived      bool           `json:"archived"`
	ArchivedAt    *time.Time     `json:"archivedAt,omitempty"`
}

// NewNote creates a note owned by ownerID.
func NewNote(ownerID UserID, title, content string) *Note {
	now := time.Now().UTC()
	return &Note{
		ID:          uuid.New(),
		Title:       title,
		Content:     content,
		OwnerID:     ownerID,
		LastUpdated: now,
		CreatedAt:   now,
	}
}

// UpsertCollaborator returns the collaborator list with userID granted the
// given permission. An existing entry is updated in place; otherwise a new
// entry is appended, preserving insertion order. The input slice is not
// modified.
func UpsertCollaborator(list []Collaborator, userID UserID, perm Permission) []Collaborator {
	out := make([]Collaborator, len(list))
	copy(out, list)
	for i := range out {
		if out[i].UserID == userID {
			out[i].Permission = perm
			return out
		}
	}
	return append(out, Collaborator{UserID: userID, Permission: perm})
}
