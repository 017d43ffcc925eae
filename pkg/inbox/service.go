// Package inbox implements the acceptance gate and the anonymous message
// inbox of each user.
package inbox

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/nrednav/cuid2"
	"github.com/tendant/true-feedback/pkg/domain"
	"github.com/tendant/true-feedback/pkg/repository"
)

const maxMessageIDLength = 64

// Recorder observes delivery outcomes.
type Recorder interface {
	MessageDelivered()
	MessageRejected(reason string)
	MessageDeleted()
}

type nopRecorder struct{}

func (nopRecorder) MessageDelivered()      {}
func (nopRecorder) MessageRejected(string) {}
func (nopRecorder) MessageDeleted()        {}

// Service handles acceptance state and the message inbox.
type Service struct {
	store    repository.Store
	recorder Recorder
	now      func() time.Time
	newID    func() string
}

// NewService creates a new inbox service. rec may be nil.
func NewService(store repository.Store, rec Recorder) *Service {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Service{
		store:    store,
		recorder: rec,
		now:      time.Now,
		newID:    cuid2.Generate,
	}
}

// PublicProfile is what an anonymous sender may learn about a recipient.
type PublicProfile struct {
	Username            string `json:"username"`
	IsAcceptingMessages bool   `json:"isAcceptingMessages"`
}

// GetAcceptance returns whether the user currently accepts messages.
func (s *Service) GetAcceptance(ctx context.Context, userID uuid.UUID) (bool, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.IsAcceptingMessages, nil
}

// SetAcceptance stores the flag and returns the value now persisted.
func (s *Service) SetAcceptance(ctx context.Context, userID uuid.UUID, accepting bool) (bool, error) {
	return s.store.SetAcceptingMessages(ctx, userID, accepting)
}

// Profile looks up the public view of username.
func (s *Service) Profile(ctx context.Context, username string) (*PublicProfile, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	return &PublicProfile{
		Username:            user.Username,
		IsAcceptingMessages: user.IsAcceptingMessages,
	}, nil
}

// Deliver stores an anonymous message for username.
// Content is cleaned of control characters and must then hold between
// domain.MinMessageLength and domain.MaxMessageLength characters.
func (s *Service) Deliver(ctx context.Context, username, content string) (*domain.Message, error) {
	content = CleanContent(content)
	if err := ValidateContent(content); err != nil {
		s.recorder.MessageRejected("invalid")
		return nil, err
	}

	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.recorder.MessageRejected("not_found")
		}
		return nil, err
	}

	if !user.IsAcceptingMessages {
		s.recorder.MessageRejected("closed")
		return nil, domain.ErrMessagesClosed
	}

	msg := &domain.Message{
		ID:        s.newID(),
		Content:   content,
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	}

	// The store re-checks the flag atomically; a toggle between the read
	// above and this append still closes the inbox.
	if err := s.store.AppendMessage(ctx, user.ID, msg); err != nil {
		switch {
		case errors.Is(err, domain.ErrMessagesClosed):
			s.recorder.MessageRejected("closed")
		case errors.Is(err, domain.ErrUserNotFound):
			s.recorder.MessageRejected("not_found")
		}
		return nil, err
	}

	s.recorder.MessageDelivered()
	return msg, nil
}

// ListMessages returns the user's messages, newest first.
func (s *Service) ListMessages(ctx context.Context, userID uuid.UUID) ([]domain.Message, error) {
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, userID)
}

// DeleteMessage removes one message from the user's own inbox.
func (s *Service) DeleteMessage(ctx context.Context, userID uuid.UUID, messageID string) error {
	if messageID == "" || len(messageID) > maxMessageIDLength || !utf8.ValidString(messageID) {
		return domain.ErrInvalidMessageID
	}
	if err := s.store.DeleteMessage(ctx, userID, messageID); err != nil {
		return err
	}
	s.recorder.MessageDeleted()
	return nil
}
