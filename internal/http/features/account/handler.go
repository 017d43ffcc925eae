// Package account serves sign-up, verification, sign-in and the current
// user's profile.
package account

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/true-feedback/internal/http/middleware"
	"github.com/tendant/true-feedback/internal/httputil"
	"github.com/tendant/true-feedback/pkg/auth"
	"github.com/tendant/true-feedback/pkg/domain"
)

// Handler handles account endpoints.
type Handler struct {
	logger       *slog.Logger
	registration *auth.RegistrationService
	sessions     *auth.SessionService
	cookieConfig httputil.CookieConfig
	appBaseURL   string
}

// NewHandler creates a new account handler.
func NewHandler(
	logger *slog.Logger,
	registration *auth.RegistrationService,
	sessions *auth.SessionService,
	cookieConfig httputil.CookieConfig,
	appBaseURL string,
) *Handler {
	return &Handler{
		logger:       logger,
		registration: registration,
		sessions:     sessions,
		cookieConfig: cookieConfig,
		appBaseURL:   appBaseURL,
	}
}

// SignUpRequest represents a registration request.
type SignUpRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// VerifyCodeRequest represents a verification request.
type VerifyCodeRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

// SignInRequest represents a sign-in request.
type SignInRequest struct {
	Identifier string `json:"identifier,omitempty"` // email or username
	Email      string `json:"email,omitempty"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password"`
}

// UserResponse is the caller's own profile.
type UserResponse struct {
	ID                  uuid.UUID `json:"_id"`
	Username            string    `json:"username"`
	Email               string    `json:"email"`
	IsVerified          bool      `json:"isVerified"`
	IsAcceptingMessages bool      `json:"isAcceptingMessages"`
}

// SignInResponse is returned after a successful sign-in.
type SignInResponse struct {
	Success   bool         `json:"success"`
	Message   string       `json:"message"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

// MeResponse is returned by GET /api/me.
type MeResponse struct {
	Success    bool         `json:"success"`
	User       UserResponse `json:"user"`
	ProfileURL string       `json:"profileUrl"`
}

func userResponse(p domain.Principal) UserResponse {
	return UserResponse{
		ID:                  p.ID,
		Username:            p.Username,
		Email:               p.Email,
		IsVerified:          p.IsVerified,
		IsAcceptingMessages: p.IsAcceptingMessages,
	}
}

// SignUp registers a user and emails a verification code.
// POST /api/sign-up
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	result, err := h.registration.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidUsername),
			errors.Is(err, domain.ErrInvalidEmail),
			errors.Is(err, domain.ErrWeakPassword):
			httputil.Error(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrUsernameAlreadyExists):
			httputil.Error(w, http.StatusBadRequest, "Username is already taken")
		case errors.Is(err, domain.ErrUserAlreadyExists):
			httputil.Error(w, http.StatusBadRequest, "User already exists with same email")
		case errors.Is(err, domain.ErrEmailDelivery):
			h.logger.Error("failed to send verification email", "error", err, "username", req.Username)
			httputil.Error(w, http.StatusInternalServerError, "Error sending verification email")
		default:
			h.logger.Error("registration failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "Error registering user")
		}
		return
	}

	if !result.Created {
		h.logger.Info("pending registration reset", "user_id", result.User.ID)
		httputil.Success(w, http.StatusOK, "User updated successfully, Please verify your email")
		return
	}

	h.logger.Info("user registered", "user_id", result.User.ID)
	httputil.Success(w, http.StatusCreated, "User Registered successfully, Please verify your email")
}

// VerifyCode verifies a sign-up code.
// POST /api/verify-code
func (h *Handler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	if req.Username == "" || req.Code == "" {
		httputil.Error(w, http.StatusBadRequest, "username and code are required")
		return
	}

	user, err := h.registration.Verify(r.Context(), req.Username, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCode):
			httputil.Error(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrUserNotFound):
			httputil.Error(w, http.StatusBadRequest, "User not found")
		case errors.Is(err, domain.ErrInvalidVerificationCode):
			httputil.Error(w, http.StatusBadRequest, "Invalid verification code")
		case errors.Is(err, domain.ErrVerificationCodeExpired):
			httputil.Error(w, http.StatusBadRequest, "Verification code has expired, Please Sign-Up again to get a new code")
		case errors.Is(err, domain.ErrUsernameAlreadyExists):
			// Another pending registration claimed the username first.
			httputil.Error(w, http.StatusBadRequest, "Username is already taken")
		default:
			h.logger.Error("verification failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "Error verifying user")
		}
		return
	}

	h.logger.Info("user verified", "user_id", user.ID)
	httputil.Success(w, http.StatusOK, "User verified successfully")
}

// CheckUsernameUnique reports whether a username can be claimed.
// GET /api/check-username-unique?username=
func (h *Handler) CheckUsernameUnique(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")

	err := h.registration.CheckUsernameAvailable(r.Context(), username)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidUsername):
			httputil.Error(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrUsernameAlreadyExists):
			httputil.Error(w, http.StatusBadRequest, "Username is already taken")
		default:
			h.logger.Error("username check failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "Error checking username")
		}
		return
	}

	httputil.Success(w, http.StatusOK, "Username is unique")
}

// SignIn authenticates with a username or email and issues a session.
// POST /api/sign-in
//
// For web clients: sets the HttpOnly session cookie.
// For mobile clients (X-Client-Type: mobile): only the body carries the token.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Email
	}
	if identifier == "" {
		identifier = req.Username
	}

	if identifier == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "email/username and password are required")
		return
	}

	user, err := h.registration.Authenticate(r.Context(), identifier, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			httputil.Error(w, http.StatusUnauthorized, "Invalid credentials")
		case errors.Is(err, domain.ErrEmailNotVerified):
			httputil.Error(w, http.StatusForbidden, "Please verify your account before login")
		default:
			h.logger.Error("authentication failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "Error signing in")
		}
		return
	}

	principal := user.Principal()
	session, err := h.sessions.IssueSession(principal)
	if err != nil {
		h.logger.Error("failed to issue session", "error", err, "user_id", user.ID)
		httputil.Error(w, http.StatusInternalServerError, "Error signing in")
		return
	}

	if !httputil.IsMobileClient(r) {
		httputil.SetSessionCookie(w, session.Token, h.sessions.TTL(), h.cookieConfig)
	}

	httputil.JSON(w, http.StatusOK, SignInResponse{
		Success:   true,
		Message:   "Signed in successfully",
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      userResponse(principal),
	})
}

// SignOut clears the session cookie. Tokens are stateless, so API clients
// sign out by discarding theirs.
// POST /api/sign-out
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	httputil.ClearSessionCookie(w, h.cookieConfig)
	httputil.Success(w, http.StatusOK, "Signed out successfully")
}

// Me returns the signed-in user and their shareable link.
// GET /api/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	httputil.JSON(w, http.StatusOK, MeResponse{
		Success:    true,
		User:       userResponse(*principal),
		ProfileURL: ProfileURL(h.appBaseURL, principal.Username),
	})
}

// DeleteAccountRequest confirms account deletion.
type DeleteAccountRequest struct {
	Password string `json:"password"`
}

// DeleteAccount removes the signed-in user and every message they received.
// DELETE /api/me
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req DeleteAccountRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "password is required")
		return
	}

	if err := h.registration.DeleteAccount(r.Context(), principal.ID, req.Password); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			httputil.Error(w, http.StatusUnauthorized, "Invalid credentials")
		case errors.Is(err, domain.ErrUserNotFound):
			httputil.Error(w, http.StatusNotFound, "User not found")
		default:
			h.logger.Error("failed to delete account", "error", err, "user_id", principal.ID)
			httputil.Error(w, http.StatusInternalServerError, "Error deleting account")
		}
		return
	}

	h.logger.Info("account deleted", "user_id", principal.ID)
	httputil.ClearSessionCookie(w, h.cookieConfig)
	httputil.Success(w, http.StatusOK, "Account deleted successfully")
}

// ProfileURL is the public page where anyone can message username.
func ProfileURL(baseURL, username string) string {
	return baseURL + "/u/" + url.PathEscape(username)
}
