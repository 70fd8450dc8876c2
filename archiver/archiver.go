// Package archiver runs the background sweep that archives idle notes.
package archiver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scribe-notes/server/domain"
)

// NoteArchiver flags notes untouched since the cutoff and returns them.
type NoteArchiver interface {
	ArchiveIdle(ctx context.Context, cutoff time.Time) ([]*domain.Note, error)
}

// Notifier fans notifications out to a note's eligible recipients.
type Notifier interface {
	Notify(ctx context.Context, noteID domain.NoteID, message string, excludeUserID domain.UserID, kind domain.NotificationKind, targetUserIDs []domain.UserID)
}

// Sweeper periodically archives notes that have been idle longer than
// IdleAfter and notifies each note's owner.
type Sweeper struct {
	notes    NoteArchiver
	notifier Notifier
	idle     time.Duration
	interval time.Duration
	log      zerolog.Logger
}

func New(notes NoteArchiver, notifier Notifier, idleAfter, interval time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		notes:    notes,
		notifier: notifier,
		idle:     idleAfter,
		interval: interval,
		log:      log.With().Str("component", "archiver").Logger(),
	}
}

// Run sweeps on each tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.log.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

// Sweep archives every idle note and notifies its owner.
func (s *Sweeper) Sweep(ctx context.Context) error {
	archived, err := s.notes.ArchiveIdle(ctx, time.Now().Add(-s.idle))
	if err != nil {
		return err
	}
	for _, note := range archived {
		msg := fmt.Sprintf("Note %q was archived after %d days of inactivity",
			note.Title, int(s.idle.Hours()/24))
		s.notifier.Notify(ctx, note.ID, msg, uuid.Nil, domain.NotificationArchive,
			[]domain.UserID{note.OwnerID})
	}
	if len(archived) > 0 {
		s.log.Info().Int("count", len(archived)).Msg("archived idle notes")
	}
	return nil
}
