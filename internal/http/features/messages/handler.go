package messages

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/true-feedback/internal/http/middleware"
	"github.com/tendant/true-feedback/internal/httputil"
	"github.com/tendant/true-feedback/pkg/domain"
	"github.com/tendant/true-feedback/pkg/inbox"
)

// Handler handles message delivery, listing and deletion.
type Handler struct {
	logger *slog.Logger
	inbox  *inbox.Service
}

// NewHandler creates a new messages handler.
func NewHandler(logger *slog.Logger, inbox *inbox.Service) *Handler {
	return &Handler{logger: logger, inbox: inbox}
}

// SendRequest represents an anonymous message.
type SendRequest struct {
	Username string `json:"username"`
	Content  string `json:"content"`
}

// ListResponse carries the signed-in user's messages, newest first.
type ListResponse struct {
	Success  bool             `json:"success"`
	Messages []domain.Message `json:"messages"`
}

// ProfileResponse tells a sender whether a recipient can be messaged.
type ProfileResponse struct {
	Success bool `json:"success"`
	inbox.PublicProfile
}

// RegisterRoutes registers public and owner-scoped message routes.
func (h *Handler) RegisterRoutes(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Post("/api/send-message", h.Send)
	r.Get("/api/u/{username}", h.Profile)

	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Use(middleware.RequireVerified())
		r.Get("/api/get-messages", h.List)
		r.Delete("/api/delete-message/{messageID}", h.Delete)
	})
}

// Send delivers an anonymous message to a user.
// POST /api/send-message
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	if req.Username == "" {
		httputil.Error(w, http.StatusBadRequest, "username is required")
		return
	}

	if _, err := h.inbox.Deliver(r.Context(), req.Username, req.Content); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidMessage):
			httputil.Error(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrUserNotFound):
			httputil.Error(w, http.StatusNotFound, "User not found")
		case errors.Is(err, domain.ErrMessagesClosed):
			httputil.Error(w, http.StatusForbidden, "User not accepting messages")
		default:
			h.logger.Error("failed to deliver message", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "Error sending message")
		}
		return
	}

	httputil.Success(w, http.StatusOK, "Message sent successfully")
}

// Profile reports whether a username exists and accepts messages.
// GET /api/u/{username}
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	profile, err := h.inbox.Profile(r.Context(), username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			httputil.Error(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("failed to load profile", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "Error loading user")
		return
	}

	httputil.JSON(w, http.StatusOK, ProfileResponse{Success: true, PublicProfile: *profile})
}

// List returns the signed-in user's messages.
// GET /api/get-messages
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	messages, err := h.inbox.ListMessages(r.Context(), principal.ID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			httputil.Error(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("failed to list messages", "error", err, "user_id", principal.ID)
		httputil.Error(w, http.StatusInternalServerError, "Error getting messages")
		return
	}

	httputil.JSON(w, http.StatusOK, ListResponse{Success: true, Messages: messages})
}

// Delete removes one of the signed-in user's messages.
// DELETE /api/delete-message/{messageID}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	messageID := chi.URLParam(r, "messageID")
	err := h.inbox.DeleteMessage(r.Context(), principal.ID, messageID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidMessageID):
			httputil.Error(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrMessageNotFound):
			httputil.Error(w, http.StatusNotFound, "Message not found")
		default:
			h.logger.Error("failed to delete message", "error", err, "user_id", principal.ID)
			httputil.Error(w, http.StatusInternalServerError, "Error deleting message")
		}
		return
	}

	httputil.Success(w, http.StatusOK, "Message deleted successfully")
}
