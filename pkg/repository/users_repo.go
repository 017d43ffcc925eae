package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/tendant/true-feedback/pkg/domain"
)

var _ Store = (*SQLStore)(nil)

const userColumns = `id, username, email, password_hash, verify_code, verify_code_expiry,
	is_verified, is_accepting_messages, created_at, updated_at`

// SQLStore persists users and their messages in PostgreSQL or SQLite.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore creates a store over an open database handle.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// GetUserByID retrieves a user by ID.
func (s *SQLStore) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := s.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	return s.getUser(ctx, query, id)
}

// GetUserByUsername retrieves a user by username.
func (s *SQLStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := s.db.Rebind(`
		SELECT ` + userColumns + `
		FROM users
		WHERE username = ?
		ORDER BY is_verified DESC, created_at DESC
		LIMIT 1
	`)
	return s.getUser(ctx, query, username)
}

// GetUserByEmail retrieves a user by email.
func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := s.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE email = ?`)
	return s.getUser(ctx, query, email)
}

func (s *SQLStore) getUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	user := &domain.User{}
	err := s.db.GetContext(ctx, user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// VerifiedUsernameExists checks whether a verified user holds the username.
func (s *SQLStore) VerifiedUsernameExists(ctx context.Context, username string) (bool, error) {
	query := s.db.Rebind(`SELECT EXISTS(SELECT 1 FROM users WHERE username = ? AND is_verified = ?)`)
	var exists bool
	err := s.db.QueryRowxContext(ctx, query, username, true).Scan(&exists)
	return exists, err
}

// CreateUser creates a new user.
func (s *SQLStore) CreateUser(ctx context.Context, user *domain.User) error {
	query := s.db.Rebind(`
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.Username, user.Email, user.PasswordHash, user.VerifyCode, user.VerifyCodeExpiry,
		user.IsVerified, user.IsAcceptingMessages, user.CreatedAt, user.UpdatedAt,
	)
	return mapUniqueViolation(err)
}

// ResetPendingRegistration overwrites the registration fields of an unverified user.
func (s *SQLStore) ResetPendingRegistration(ctx context.Context, id uuid.UUID, reg PendingRegistration) error {
	query := s.db.Rebind(`
		UPDATE users
		SET username = ?, password_hash = ?, verify_code = ?, verify_code_expiry = ?, updated_at = ?
		WHERE id = ? AND is_verified = ?
	`)
	result, err := s.db.ExecContext(ctx, query,
		reg.Username, reg.PasswordHash, reg.VerifyCode, reg.VerifyCodeExpiry, reg.UpdatedAt,
		id, false,
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	return expectRows(result, domain.ErrUserNotFound)
}

// MarkVerified sets is_verified when the code matches and is unexpired at now.
func (s *SQLStore) MarkVerified(ctx context.Context, id uuid.UUID, code string, now time.Time) (bool, error) {
	query := s.db.Rebind(`
		UPDATE users
		SET is_verified = ?, updated_at = ?
		WHERE id = ? AND verify_code = ? AND verify_code_expiry >= ?
	`)
	result, err := s.db.ExecContext(ctx, query, true, now, id, code, now)
	if err != nil {
		return false, mapUniqueViolation(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// SetAcceptingMessages updates the acceptance flag and returns the stored value.
func (s *SQLStore) SetAcceptingMessages(ctx context.Context, id uuid.UUID, accepting bool) (bool, error) {
	query := s.db.Rebind(`
		UPDATE users
		SET is_accepting_messages = ?, updated_at = ?
		WHERE id = ?
		RETURNING is_accepting_messages
	`)
	var stored bool
	err := s.db.QueryRowxContext(ctx, query, accepting, time.Now().UTC(), id).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, domain.ErrUserNotFound
	}
	if err != nil {
		return false, err
	}
	return stored, nil
}

// DeleteUser permanently deletes a user. Messages cascade.
func (s *SQLStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	query := s.db.Rebind(`DELETE FROM users WHERE id = ?`)
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return expectRows(result, domain.ErrUserNotFound)
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func expectRows(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

// mapUniqueViolation translates unique index violations from either driver.
func mapUniqueViolation(err error) error {
	if err == nil {
		return nil
	}

	var detail string
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code != "23505" {
			return err
		}
		detail = pqErr.Constraint
	} else if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		detail = err.Error()
	} else {
		return err
	}

	switch {
	case strings.Contains(detail, "email"):
		return domain.ErrUserAlreadyExists
	case strings.Contains(detail, "username"):
		return domain.ErrUsernameAlreadyExists
	default:
		return err
	}
}
