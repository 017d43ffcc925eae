package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers account routes. auth guards the routes that need a session.
func (h *Handler) RegisterRoutes(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Post("/api/sign-up", h.SignUp)
	r.Post("/api/verify-code", h.VerifyCode)
	r.Get("/api/check-username-unique", h.CheckUsernameUnique)
	r.Post("/api/sign-in", h.SignIn)
	r.Post("/api/sign-out", h.SignOut)
	r.With(auth).Get("/api/me", h.Me)
	r.With(auth).Delete("/api/me", h.DeleteAccount)
}
