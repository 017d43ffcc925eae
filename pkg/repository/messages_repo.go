package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/tendant/true-feedback/pkg/domain"
)

// AppendMessage inserts msg for the user while the user accepts messages.
// The acceptance row is locked for the duration of the insert.
func (s *SQLStore) AppendMessage(ctx context.Context, userID uuid.UUID, msg *domain.Message) error {
	return Tx(ctx, s.db, func(tx *sqlx.Tx) error {
		lock := tx.Rebind(`
			UPDATE users
			SET updated_at = ?
			WHERE id = ? AND is_accepting_messages = ?
		`)
		result, err := tx.ExecContext(ctx, lock, time.Now().UTC(), userID, true)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return closedOrMissing(ctx, tx, userID)
		}

		insert := tx.Rebind(`INSERT INTO messages (id, user_id, content, created_at) VALUES (?, ?, ?, ?)`)
		_, err = tx.ExecContext(ctx, insert, msg.ID, userID, msg.Content, msg.CreatedAt)
		return err
	})
}

func closedOrMissing(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) error {
	var exists bool
	query := tx.Rebind(`SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`)
	if err := tx.QueryRowxContext(ctx, query, userID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrUserNotFound
	}
	return domain.ErrMessagesClosed
}

// ListMessages returns the user's messages, newest first.
func (s *SQLStore) ListMessages(ctx context.Context, userID uuid.UUID) ([]domain.Message, error) {
	query := s.db.Rebind(`
		SELECT id, content, created_at
		FROM messages
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`)
	messages := []domain.Message{}
	if err := s.db.SelectContext(ctx, &messages, query, userID); err != nil {
		return nil, err
	}
	return messages, nil
}

// DeleteMessage removes one message from the user's own inbox.
func (s *SQLStore) DeleteMessage(ctx context.Context, userID uuid.UUID, messageID string) error {
	query := s.db.Rebind(`DELETE FROM messages WHERE id = ? AND user_id = ?`)
	result, err := s.db.ExecContext(ctx, query, messageID, userID)
	if err != nil {
		return err
	}
	return expectRows(result, domain.ErrMessageNotFound)
}
