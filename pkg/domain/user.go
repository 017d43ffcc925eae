package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered identity and owns its inbox.
type User struct {
	ID                  uuid.UUID `db:"id"`
	Username            string    `db:"username"`
	Email               string    `db:"email"`
	PasswordHash        string    `db:"password_hash"`
	VerifyCode          string    `db:"verify_code"`
	VerifyCodeExpiry    time.Time `db:"verify_code_expiry"`
	IsVerified          bool      `db:"is_verified"`
	IsAcceptingMessages bool      `db:"is_accepting_messages"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
}

// CodeExpired reports whether the verification code is no longer usable at now.
// The code stays valid up to and including the expiry instant.
func (u *User) CodeExpired(now time.Time) bool {
	return now.After(u.VerifyCodeExpiry)
}

// Principal returns the session view of the user.
func (u *User) Principal() Principal {
	return Principal{
		ID:                  u.ID,
		Username:            u.Username,
		Email:               u.Email,
		IsVerified:          u.IsVerified,
		IsAcceptingMessages: u.IsAcceptingMessages,
	}
}

// Principal is the authenticated caller as carried by a session token.
type Principal struct {
	ID                  uuid.UUID
	Username            string
	Email               string
	IsVerified          bool
	IsAcceptingMessages bool
}
