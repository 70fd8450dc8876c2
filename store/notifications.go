package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scribe-notes/server/domain"
)

// NotificationStore is the durable append-only log of per-user
// notifications.
type NotificationStore struct {
	pool *pgxpool.Pool
}

func (s *NotificationStore) Create(ctx context.Context, n *domain.Notification) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, note_id, message, kind, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.UserID, n.NoteID, n.Message, n.Kind, n.Read, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// List returns userID's notifications, newest first, plus the total count
// before pagination.
func (s *NotificationStore) List(ctx context.Context, userID domain.UserID, unreadOnly bool, offset, limit int) ([]*domain.Notification, int, error) {
	where := `WHERE user_id = $1`
	if unreadOnly {
		where += ` AND read = false`
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM notifications `+where, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, note_id, message, kind, read, created_at
		FROM notifications `+where+`
		ORDER BY created_at DESC
		OFFSET $2 LIMIT $3`, userID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []*domain.Notification
	for rows.Next() {
		n := &domain.Notification{}
		if err := rows.Scan(&n.ID, &n.UserID, &n.NoteID, &n.Message, &n.Kind, &n.Read, &n.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	return out, total, nil
}

// MarkRead flags the given notifications as read. Rows belonging to other
// users are ignored.
func (s *NotificationStore) MarkRead(ctx context.Context, ids []domain.NotificationID, userID domain.UserID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE notifications SET read = true
		WHERE id = ANY($1) AND user_id = $2`, ids, userID)
	if err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}

// Delete removes the given notifications. Rows belonging to other users are
// ignored.
func (s *NotificationStore) Delete(ctx context.Context, ids []domain.NotificationID, userID domain.UserID) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM notifications WHERE id = ANY($1) AND user_id = $2`, ids, userID)
	if err != nil {
		return fmt.Errorf("delete notifications: %w", err)
	}
	return nil
}
