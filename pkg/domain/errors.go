package domain

import "errors"

// Account errors
var (
	ErrUserNotFound          = errors.New("user not found")
	ErrUserAlreadyExists     = errors.New("user already exists with same email")
	ErrUsernameAlreadyExists = errors.New("username is already taken")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrEmailNotVerified      = errors.New("please verify your account before login")
	ErrInvalidToken          = errors.New("invalid token")
	ErrUnauthorized          = errors.New("unauthorized")
)

// Verification errors
var (
	ErrInvalidVerificationCode = errors.New("invalid verification code")
	ErrVerificationCodeExpired = errors.New("verification code has expired")
)

// Inbox errors
var (
	ErrMessagesClosed   = errors.New("user is not accepting messages")
	ErrMessageNotFound  = errors.New("message not found")
	ErrInvalidMessage   = errors.New("message must be between 1 and 300 characters")
	ErrInvalidMessageID = errors.New("invalid message id")
)

// Validation errors
var (
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrInvalidUsername = errors.New("username must be 3-20 characters and contain only letters, numbers and underscores")
	ErrWeakPassword    = errors.New("password must be between 6 and 20 characters")
	ErrInvalidCode     = errors.New("verification code must be 6 digits")
)

// Dependency errors
var (
	ErrEmailDelivery = errors.New("error sending verification email")
)
