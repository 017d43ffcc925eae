package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/true-feedback/pkg/domain"
	"github.com/tendant/true-feedback/pkg/repository"
)

// DefaultVerifyCodeTTL is how long a verification code stays valid.
const DefaultVerifyCodeTTL = time.Hour

// VerificationSender delivers a verification code to an email address.
type VerificationSender interface {
	SendVerificationCode(ctx context.Context, to, username, code string) error
}

// RegistrationConfig holds registration configuration.
type RegistrationConfig struct {
	VerifyCodeTTL         time.Duration
	StrictEmailValidation bool
	BlockDisposableEmail  bool
}

// RegistrationService handles sign-up, verification and password sign-in.
type RegistrationService struct {
	config RegistrationConfig
	store  repository.Store
	sender VerificationSender
	now    func() time.Time
}

// NewRegistrationService creates a new registration service.
func NewRegistrationService(config RegistrationConfig, store repository.Store, sender VerificationSender) *RegistrationService {
	if config.VerifyCodeTTL == 0 {
		config.VerifyCodeTTL = DefaultVerifyCodeTTL
	}
	return &RegistrationService{
		config: config,
		store:  store,
		sender: sender,
		now:    time.Now,
	}
}

// RegisterResult describes the outcome of a successful Register call.
type RegisterResult struct {
	User *domain.User
	// Created is false when a pending registration was reset instead.
	Created bool
}

func (s *RegistrationService) clock() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// Register creates an unverified user, or resets the pending registration
// for an unverified email, and sends a fresh verification code.
// If the email cannot be sent the stored record is kept and the error wraps
// domain.ErrEmailDelivery.
func (s *RegistrationService) Register(ctx context.Context, username, email, password string) (*RegisterResult, error) {
	username = strings.TrimSpace(username)
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email, s.config.StrictEmailValidation, s.config.BlockDisposableEmail); err != nil {
		return nil, err
	}
	email = NormalizeEmail(email)
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	taken, err := s.store.VerifiedUsernameExists(ctx, username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.ErrUsernameAlreadyExists
	}

	existing, err := s.store.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	if existing != nil && existing.IsVerified {
		return nil, domain.ErrUserAlreadyExists
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	code, err := GenerateVerifyCode(now)
	if err != nil {
		return nil, err
	}
	expiry := now.Add(s.config.VerifyCodeTTL)

	result := &RegisterResult{}
	if existing != nil {
		reg := pendingRegistration(username, hash, code, expiry, now)
		if err := s.store.ResetPendingRegistration(ctx, existing.ID, reg); err != nil {
			return nil, err
		}
		existing.Username = reg.Username
		existing.PasswordHash = reg.PasswordHash
		existing.VerifyCode = reg.VerifyCode
		existing.VerifyCodeExpiry = reg.VerifyCodeExpiry
		existing.UpdatedAt = reg.UpdatedAt
		result.User = existing
	} else {
		user := &domain.User{
			ID:                  uuid.New(),
			Username:            username,
			Email:               email,
			PasswordHash:        hash,
			VerifyCode:          code,
			VerifyCodeExpiry:    expiry,
			IsVerified:          false,
			IsAcceptingMessages: true,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := s.store.CreateUser(ctx, user); err != nil {
			return nil, err
		}
		result.User = user
		result.Created = true
	}

	if err := s.sender.SendVerificationCode(ctx, email, username, code); err != nil {
		return result, fmt.Errorf("%w: %v", domain.ErrEmailDelivery, err)
	}

	return result, nil
}

func pendingRegistration(username, hash, code string, expiry, now time.Time) repository.PendingRegistration {
	return repository.PendingRegistration{
		Username:         username,
		PasswordHash:     hash,
		VerifyCode:       code,
		VerifyCodeExpiry: expiry,
		UpdatedAt:        now,
	}
}

// Verify checks code against the user's pending code and marks the user
// verified. A correct code past its expiry reports
// domain.ErrVerificationCodeExpired.
func (s *RegistrationService) Verify(ctx context.Context, username, code string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if err := ValidateVerifyCode(code); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if subtle.ConstantTimeCompare([]byte(user.VerifyCode), []byte(code)) != 1 {
		return nil, domain.ErrInvalidVerificationCode
	}

	now := s.clock()
	if user.CodeExpired(now) {
		return nil, domain.ErrVerificationCodeExpired
	}

	ok, err := s.store.MarkVerified(ctx, user.ID, code, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// The code was replaced between the read and the update.
		return nil, domain.ErrInvalidVerificationCode
	}

	user.IsVerified = true
	user.UpdatedAt = now
	return user, nil
}

// CheckUsernameAvailable returns nil when username is well formed and not
// held by a verified user.
func (s *RegistrationService) CheckUsernameAvailable(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if err := ValidateUsername(username); err != nil {
		return err
	}

	taken, err := s.store.VerifiedUsernameExists(ctx, username)
	if err != nil {
		return err
	}
	if taken {
		return domain.ErrUsernameAlreadyExists
	}
	return nil
}

// DeleteAccount removes the user after re-checking their password.
// The user's messages are removed with it.
func (s *RegistrationService) DeleteAccount(ctx context.Context, id uuid.UUID, password string) error {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if !VerifyPassword(password, user.PasswordHash) {
		return domain.ErrInvalidCredentials
	}
	return s.store.DeleteUser(ctx, id)
}

// Authenticate verifies identifier (email or username) and password.
// Unverified users are rejected with domain.ErrEmailNotVerified.
func (s *RegistrationService) Authenticate(ctx context.Context, identifier, password string) (*domain.User, error) {
	identifier = strings.TrimSpace(identifier)

	var (
		user *domain.User
		err  error
	)
	if IsEmail(identifier) {
		user, err = s.store.GetUserByEmail(ctx, NormalizeEmail(identifier))
	} else {
		user, err = s.store.GetUserByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !VerifyPassword(password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	if !user.IsVerified {
		return nil, domain.ErrEmailNotVerified
	}

	return user, nil
}
