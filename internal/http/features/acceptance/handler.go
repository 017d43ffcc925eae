package acceptance

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/true-feedback/internal/http/middleware"
	"github.com/tendant/true-feedback/internal/httputil"
	"github.com/tendant/true-feedback/pkg/auth"
	"github.com/tendant/true-feedback/pkg/domain"
	"github.com/tendant/true-feedback/pkg/inbox"
)

// Handler handles the message acceptance toggle.
type Handler struct {
	logger       *slog.Logger
	inbox        *inbox.Service
	sessions     *auth.SessionService
	cookieConfig httputil.CookieConfig
}

// NewHandler creates a new acceptance handler.
func NewHandler(logger *slog.Logger, inbox *inbox.Service, sessions *auth.SessionService, cookieConfig httputil.CookieConfig) *Handler {
	return &Handler{
		logger:       logger,
		inbox:        inbox,
		sessions:     sessions,
		cookieConfig: cookieConfig,
	}
}

// SetRequest represents a toggle request.
type SetRequest struct {
	AcceptMessages *bool `json:"acceptMessages"`
}

// Response carries the acceptance state.
type Response struct {
	Success             bool   `json:"success"`
	Message             string `json:"message"`
	IsAcceptingMessages bool   `json:"isAcceptingMessages"`
	// Token is the refreshed session, set after a change.
	Token string `json:"token,omitempty"`
}

// RegisterRoutes registers acceptance routes behind auth.
func (h *Handler) RegisterRoutes(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Use(middleware.RequireVerified())
		r.Get("/api/accept-messages", h.Get)
		r.Post("/api/accept-messages", h.Set)
	})
}

// Get returns whether the signed-in user accepts messages.
// GET /api/accept-messages
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	accepting, err := h.inbox.GetAcceptance(r.Context(), principal.ID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			httputil.Error(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("failed to read acceptance status", "error", err, "user_id", principal.ID)
		httputil.Error(w, http.StatusInternalServerError, "Error retrieving message acceptance status")
		return
	}

	httputil.JSON(w, http.StatusOK, Response{
		Success:             true,
		Message:             "User found successfully",
		IsAcceptingMessages: accepting,
	})
}

// Set stores the acceptance flag and refreshes the session so its claims
// match the stored value.
// POST /api/accept-messages
func (h *Handler) Set(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req SetRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.AcceptMessages == nil {
		httputil.Error(w, http.StatusBadRequest, "acceptMessages is required")
		return
	}

	stored, err := h.inbox.SetAcceptance(r.Context(), principal.ID, *req.AcceptMessages)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			httputil.Error(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("failed to update acceptance status", "error", err, "user_id", principal.ID)
		httputil.Error(w, http.StatusInternalServerError, "Error accepting message")
		return
	}

	resp := Response{
		Success:             true,
		Message:             "Message acceptance status updated successfully",
		IsAcceptingMessages: stored,
	}

	refreshed := *principal
	refreshed.IsAcceptingMessages = stored
	session, err := h.sessions.IssueSession(refreshed)
	if err != nil {
		// The change is stored; the old token stays valid with a stale claim.
		h.logger.Warn("failed to refresh session", "error", err, "user_id", principal.ID)
	} else {
		if !httputil.IsMobileClient(r) {
			httputil.SetSessionCookie(w, session.Token, h.sessions.TTL(), h.cookieConfig)
		}
		resp.Token = session.Token
	}

	httputil.JSON(w, http.StatusOK, resp)
}
