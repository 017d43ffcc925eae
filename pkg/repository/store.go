package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/true-feedback/pkg/domain"
)

// Store is the persistence contract shared by the SQL and document backends.
// A user's messages live and die with the user record.
type Store interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	// GetUserByUsername prefers a verified record and falls back to the
	// newest pending registration.
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	VerifiedUsernameExists(ctx context.Context, username string) (bool, error)

	CreateUser(ctx context.Context, user *domain.User) error
	// ResetPendingRegistration replaces the pending registration fields of an
	// unverified user.
	ResetPendingRegistration(ctx context.Context, id uuid.UUID, reg PendingRegistration) error
	// MarkVerified flips the user to verified only if code matches and has not
	// expired at now. It reports whether the update was applied.
	MarkVerified(ctx context.Context, id uuid.UUID, code string, now time.Time) (bool, error)
	// SetAcceptingMessages stores the flag and returns the stored value.
	SetAcceptingMessages(ctx context.Context, id uuid.UUID, accepting bool) (bool, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error

	// AppendMessage adds msg to the user's inbox while the user accepts messages.
	AppendMessage(ctx context.Context, userID uuid.UUID, msg *domain.Message) error
	// ListMessages returns the user's messages, newest first.
	ListMessages(ctx context.Context, userID uuid.UUID) ([]domain.Message, error)
	DeleteMessage(ctx context.Context, userID uuid.UUID, messageID string) error

	Ping(ctx context.Context) error
	Close() error
}

// PendingRegistration holds the fields replaced on re-registration.
type PendingRegistration struct {
	Username         string
	PasswordHash     string
	VerifyCode       string
	VerifyCodeExpiry time.Time
	UpdatedAt        time.Time
}

// OpenConfig selects and configures a Store backend.
type OpenConfig struct {
	Driver string
	DSN    string
	Mongo  MongoConfig
	// Logger receives SQL migration output.
	Logger *slog.Logger
}

// Open constructs the Store selected by cfg.Driver.
func Open(ctx context.Context, cfg OpenConfig) (Store, error) {
	switch cfg.Driver {
	case DriverMongo:
		return NewMongoStore(ctx, cfg.Mongo)
	case DriverPostgres, DriverSQLite:
		db, err := NewDB(ctx, Config{Driver: cfg.Driver, DSN: cfg.DSN, Logger: cfg.Logger})
		if err != nil {
			return nil, err
		}
		return NewSQLStore(db), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}
