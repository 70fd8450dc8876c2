package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scribe-notes/server/domain"
)

// NoteStore persists notes and their collaborator lists.
type NoteStore struct {
	pool *pgxpool.Pool
}

// Get loads a note with its collaborators in insertion order.
func (s *NoteStore) Get(ctx context.Context, id domain.NoteID) (*domain.Note, error) {
	note := &domain.Note{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, content, owner_id, last_updated, created_at, archived, archived_at
		FROM notes WHERE id = $1`, id).
		Scan(&note.ID, &note.Title, &note.Content, &note.OwnerID,
			&note.LastUpdated, &note.CreatedAt, &note.Archived, &note.ArchivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT user_id, permission FROM note_collaborators
		WHERE note_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("get collaborators: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c domain.Collaborator
		if err := rows.Scan(&c.UserID, &c.Permission); err != nil {
			return nil, fmt.Errorf("scan collaborator: %w", err)
		}
		note.Collaborators = append(note.Collaborators, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get collaborators: %w", err)
	}
	return note, nil
}

// Create inserts a new note.
func (s *NoteStore) Create(ctx context.Context, note *domain.Note) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notes (id, title, content, owner_id, last_updated, created_at, archived, archived_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		note.ID, note.Title, note.Content, note.OwnerID,
		note.LastUpdated, note.CreatedAt, note.Archived, note.ArchivedAt)
	if err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	return nil
}

// Save replaces the note row and reconciles the collaborator list in one
// transaction. Existing collaborator rows keep their insertion order.
// Archive state is owned by ArchiveIdle and never written here, so an edit
// holding a copy loaded before a sweep cannot quietly un-archive the note.
func (s *NoteStore) Save(ctx context.Context, note *domain.Note) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("save note: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE notes SET title = $2, content = $3, last_updated = $4
		WHERE id = $1`,
		note.ID, note.Title, note.Content, note.LastUpdated)
	if err != nil {
		return fmt.Errorf("save note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	keep := make([]domain.UserID, 0, len(note.Collaborators))
	for _, c := range note.Collaborators {
		keep = append(keep, c.UserID)
		_, err := tx.Exec(ctx, `
			INSERT INTO note_collaborators (note_id, user_id, permission)
			VALUES ($1, $2, $3)
			ON CONFLICT (note_id, user_id) DO UPDATE SET permission = EXCLUDED.permission`,
			note.ID, c.UserID, c.Permission)
		if err != nil {
			return fmt.Errorf("save collaborator: %w", err)
		}
	}
	_, err = tx.Exec(ctx, `
		DELETE FROM note_collaborators WHERE note_id = $1 AND user_id != ALL($2)`,
		note.ID, keep)
	if err != nil {
		return fmt.Errorf("prune collaborators: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("save note: %w", err)
	}
	return nil
}

// Delete removes a note. Collaborator rows cascade.
func (s *NoteStore) Delete(ctx context.Context, id domain.NoteID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the notes userID owns or collaborates on, newest first, plus
// the total count before pagination.
func (s *NoteStore) List(ctx context.Context, userID domain.UserID, archived bool, offset, limit int) ([]*domain.Note, int, error) {
	const visible = `(n.owner_id = $1 OR EXISTS (
		SELECT 1 FROM note_collaborators c WHERE c.note_id = n.id AND c.user_id = $1))`

	var total int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM notes n WHERE `+visible+` AND n.archived = $2`,
		userID, archived).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count notes: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT n.id, n.title, n.content, n.owner_id, n.last_updated, n.created_at, n.archived, n.archived_at
		FROM notes n
		WHERE `+visible+` AND n.archived = $2
		ORDER BY n.last_updated DESC
		OFFSET $3 LIMIT $4`,
		userID, archived, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []*domain.Note
	for rows.Next() {
		note := &domain.Note{}
		if err := rows.Scan(&note.ID, &note.Title, &note.Content, &note.OwnerID,
			&note.LastUpdated, &note.CreatedAt, &note.Archived, &note.ArchivedAt); err != nil {
			return nil, 0, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list notes: %w", err)
	}
	return notes, total, nil
}

// ArchiveIdle flags every unarchived note untouched since the cutoff and
// returns the affected notes.
func (s *NoteStore) ArchiveIdle(ctx context.Context, cutoff time.Time) ([]*domain.Note, error) {
	now := time.Now().UTC()
	rows, err := s.pool.Query(ctx, `
		UPDATE notes SET archived = true, archived_at = $2
		WHERE archived = false AND last_updated < $1
		RETURNING id, title, content, owner_id, last_updated, created_at, archived, archived_at`,
		cutoff, now)
	if err != nil {
		return nil, fmt.Errorf("archive notes: %w", err)
	}
	defer rows.Close()

	var notes []*domain.Note
	for rows.Next() {
		note := &domain.Note{}
		if err := rows.Scan(&note.ID, &note.Title, &note.Content, &note.OwnerID,
			&note.LastUpdated, &note.CreatedAt, &note.Archived, &note.ArchivedAt); err != nil {
			return nil, fmt.Errorf("scan archived note: %w", err)
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive notes: %w", err)
	}
	return notes, nil
}
