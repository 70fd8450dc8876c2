package ws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/scribe-notes/server/domain"
)

// NoteRepository is the persistence collaborator for notes. Get returns
// domain.ErrNotFound for absent ids.
type NoteRepository interface {
	Get(ctx context.Context, id domain.NoteID) (*domain.Note, error)
	Save(ctx context.Context, note *domain.Note) error
	Delete(ctx context.Context, id domain.NoteID) error
}

// NotificationRepository is the persistence collaborator for the durable
// notification log.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
}

// UserDirectory resolves user identities to display names for notification
// messages.
type UserDirectory interface {
	GetByID(ctx context.Context, id domain.UserID) (*domain.User, error)
}

// Rooms is the broadcast capability the broker is constructed with: room
// admission plus live delivery to rooms and to a user's sessions. The Hub
// implements it; tests substitute their own.
type Rooms interface {
	Join(noteID domain.NoteID, s *Session)
	Broadcast(noteID domain.NoteID, exclude *Session, msg Message)
	Push(userID domain.UserID, msg Message)
}

// Broker orchestrates every mutating operation on a note: access check,
// last-write-wins apply, room broadcast, durable notification fan-out. A
// per-note mutex serializes racing mutations of one note and keeps the
// broadcast order equal to the accepted order; unrelated notes proceed in
// parallel.
type Broker struct {
	notes         NoteRepository
	notifications NotificationRepository
	users         UserDirectory
	rooms         Rooms
	locks         *noteLocks
	log           zerolog.Logger
}

func NewBroker(notes NoteRepository, notifications NotificationRepository, users UserDirectory, rooms Rooms, log zerolog.Logger) *Broker {
	return &Broker{
		notes:         notes,
		notifications: notifications,
		users:         users,
		rooms:         rooms,
		locks:         newNoteLocks(),
		log:           log.With().Str("component", "broker").Logger(),
	}
}

// Join admits a session into a note's room if the session's user can read
// the note. Missing notes and NoAccess verdicts are dropped without any
// reply, so a non-collaborator cannot probe which note ids exist.
func (b *Broker) Join(ctx context.Context, s *Session, noteID domain.NoteID) {
	note, err := b.notes.Get(ctx, noteID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			b.log.Error().Err(err).Stringer("noteId", noteID).Msg("join: load failed")
		}
		return
	}
	if !domain.Evaluate(note, s.userID).CanRead() {
		b.log.Debug().Stringer("noteId", noteID).Stringer("userId", s.userID).Msg("join denied")
		return
	}
	b.rooms.Join(noteID, s)
	b.log.Debug().Stringer("noteId", noteID).Stringer("userId", s.userID).Msg("joined room")
}

// Edit applies an edit-note event: write gate, last-write-wins persist,
// broadcast to the room minus the actor, update fan-out to everyone else
// with access. Unauthorized and not-found edits are dropped silently,
// mirroring Join's non-disclosure policy.
func (b *Broker) Edit(ctx context.Context, s *Session, p EditPayload) {
	release := b.locks.Acquire(p.NoteID)
	defer release()

	note, err := b.notes.Get(ctx, p.NoteID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			b.log.Error().Err(err).Stringer("noteId", p.NoteID).Msg("edit: load failed")
		}
		return
	}
	if !domain.Evaluate(note, s.userID).CanWrite() {
		b.log.Debug().Stringer("noteId", p.NoteID).Stringer("userId", s.userID).Msg("edit denied")
		return
	}

	note.Content = p.Content
	if p.Title != nil {
		note.Title = *p.Title
	}
	note.LastUpdated = time.Now().UTC()

	if err := b.notes.Save(ctx, note); err != nil {
		b.log.Error().Err(err).Stringer("noteId", p.NoteID).Msg("edit: save failed")
		return
	}

	b.rooms.Broadcast(p.NoteID, s, Message{
		Type: EventNoteUpdated,
		Payload: NoteUpdatedPayload{
			NoteID:      note.ID,
			Content:     note.Content,
			Title:       p.Title,
			LastUpdated: note.LastUpdated,
		},
	})

	b.fanOut(ctx, note, b.updateMessage(ctx, note, s.userID), s.userID, domain.NotificationUpdate, nil)
}

// Update is the REST-facing edit: same last-write-wins apply and fan-out,
// but access failures surface as errors since the caller is authenticated
// request/response, not an anonymous-feeling live event.
func (b *Broker) Update(ctx context.Context, noteID domain.NoteID, actorID domain.UserID, title, content *string) (*domain.Note, error) {
	release := b.locks.Acquire(noteID)
	defer release()

	note, err := b.notes.Get(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if !domain.Evaluate(note, actorID).CanWrite() {
		return nil, domain.ErrAccessDenied
	}

	if title != nil {
		note.Title = *title
	}
	if content != nil {
		note.Content = *content
	}
	note.LastUpdated = time.Now().UTC()

	if err := b.notes.Save(ctx, note); err != nil {
		return nil, err
	}

	b.rooms.Broadcast(noteID, nil, Message{
		Type: EventNoteUpdated,
		Payload: NoteUpdatedPayload{
			NoteID:      note.ID,
			Content:     note.Content,
			Title:       title,
			LastUpdated: note.LastUpdated,
		},
	})

	b.fanOut(ctx, note, b.updateMessage(ctx, note, actorID), actorID, domain.NotificationUpdate, nil)
	return note, nil
}

// Share grants or changes a collaborator's permission. Owner-only; the
// permission value is validated before any mutation; re-sharing updates the
// existing entry in place; sharing with the owner is a no-op. On success the
// grantee alone receives a share-kind notification.
func (b *Broker) Share(ctx context.Context, noteID domain.NoteID, actorID, granteeID domain.UserID, perm domain.Permission) (*domain.Note, error) {
	if !perm.Valid() {
		return nil, domain.ErrInvalidPermission
	}

	release := b.locks.Acquire(noteID)
	defer release()

	note, err := b.notes.Get(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if !domain.Evaluate(note, actorID).Owner() {
		return nil, domain.ErrAccessDenied
	}
	if granteeID == note.OwnerID {
		// The owner already has full access and must never appear in the
		// collaborators list.
		return note, nil
	}

	note.Collaborators = domain.UpsertCollaborator(note.Collaborators, granteeID, perm)
	if err := b.notes.Save(ctx, note); err != nil {
		return nil, err
	}

	msg := fmt.Sprintf("You were given %s access to %q by %s", perm, note.Title, b.actorName(ctx, actorID))
	b.fanOut(ctx, note, msg, actorID, domain.NotificationShare, []domain.UserID{granteeID})
	return note, nil
}

// Delete removes a note. Owner-only.
func (b *Broker) Delete(ctx context.Context, noteID domain.NoteID, actorID domain.UserID) error {
	release := b.locks.Acquire(noteID)
	defer release()

	note, err := b.notes.Get(ctx, noteID)
	if err != nil {
		return err
	}
	if !domain.Evaluate(note, actorID).Owner() {
		return domain.ErrAccessDenied
	}
	return b.notes.Delete(ctx, noteID)
}

// Notify loads the note and fans a notification out to its eligible
// recipients. Used by callers outside the edit path, such as the archival
// sweep.
func (b *Broker) Notify(ctx context.Context, noteID domain.NoteID, message string, excludeUserID domain.UserID, kind domain.NotificationKind, targetUserIDs []domain.UserID) {
	note, err := b.notes.Get(ctx, noteID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			b.log.Error().Err(err).Stringer("noteId", noteID).Msg("notify: load failed")
		}
		return
	}
	b.fanOut(ctx, note, message, excludeUserID, kind, targetUserIDs)
}

// fanOut persists one notification per recipient and pushes it live to each
// recipient's active sessions. Each recipient is handled independently: a
// storage failure for one aborts only that recipient's record.
func (b *Broker) fanOut(ctx context.Context, note *domain.Note, message string, excludeUserID domain.UserID, kind domain.NotificationKind, targetUserIDs []domain.UserID) {
	for _, userID := range recipients(note, excludeUserID, targetUserIDs) {
		n := domain.NewNotification(userID, note.ID, message, kind)
		if err := b.notifications.Create(ctx, n); err != nil {
			b.log.Error().Err(err).Stringer("userId", userID).Stringer("noteId", note.ID).
				Msg("notification persist failed")
			continue
		}
		b.rooms.Push(userID, Message{
			Type: EventNotification,
			Payload: NotificationPayload{
				ID:        n.ID,
				Message:   n.Message,
				NoteID:    n.NoteID,
				Kind:      n.Kind,
				Timestamp: n.CreatedAt,
			},
		})
	}
}

// recipients resolves who a notification goes to: the note's owner and
// collaborators, minus the actor — or, when targets is given, only those
// targets that actually have access.
func recipients(note *domain.Note, exclude domain.UserID, targets []domain.UserID) []domain.UserID {
	eligible := make([]domain.UserID, 0, len(note.Collaborators)+1)
	eligible = append(eligible, note.OwnerID)
	for _, c := range note.Collaborators {
		eligible = append(eligible, c.UserID)
	}

	if targets != nil {
		targetSet := make(map[domain.UserID]struct{}, len(targets))
		for _, id := range targets {
			targetSet[id] = struct{}{}
		}
		out := eligible[:0]
		for _, id := range eligible {
			if _, ok := targetSet[id]; ok {
				out = append(out, id)
			}
		}
		return out
	}

	out := eligible[:0]
	for _, id := range eligible {
		if id != exclude {
			out = append(out, id)
		}
	}
	return out
}

func (b *Broker) updateMessage(ctx context.Context, note *domain.Note, actorID domain.UserID) string {
	return fmt.Sprintf("Note %q was updated by %s", note.Title, b.actorName(ctx, actorID))
}

func (b *Broker) actorName(ctx context.Context, actorID domain.UserID) string {
	user, err := b.users.GetByID(ctx, actorID)
	if err != nil {
		return "a collaborator"
	}
	return user.Name
}
