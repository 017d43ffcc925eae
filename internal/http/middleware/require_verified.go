package middleware

import (
	"net/http"

	"github.com/tendant/true-feedback/internal/httputil"
)

// RequireVerified creates middleware that requires a verified account.
// Must be used after Auth middleware.
func RequireVerified() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := GetPrincipal(r.Context())
			if !ok {
				httputil.Error(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			if !principal.IsVerified {
				httputil.Error(w, http.StatusForbidden, "please verify your account")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
