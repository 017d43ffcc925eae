package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/true-feedback/internal/http/features/acceptance"
	"github.com/tendant/true-feedback/internal/http/features/account"
	"github.com/tendant/true-feedback/internal/http/features/messages"
	"github.com/tendant/true-feedback/internal/http/middleware"
	"github.com/tendant/true-feedback/internal/httputil"
	"github.com/tendant/true-feedback/internal/metrics"
	"github.com/tendant/true-feedback/pkg/auth"
	"github.com/tendant/true-feedback/pkg/inbox"
)

const healthTimeout = 2 * time.Second

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger              *slog.Logger
	Store               Pinger
	RegistrationService *auth.RegistrationService
	SessionService      *auth.SessionService
	InboxService        *inbox.Service
	// Metrics is optional; nil disables instrumentation and /metrics.
	Metrics            *metrics.Metrics
	AppBaseURL         string
	SecurityHeaders    middleware.SecurityHeadersConfig
	MaxRequestBodySize int64
	CookieConfig       httputil.CookieConfig
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBodySize))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.Error(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := cfg.Store.Ping(ctx); err != nil {
			cfg.Logger.Error("health check failed", "error", err)
			httputil.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	authMiddleware := middleware.Auth(cfg.SessionService)

	accountHandler := account.NewHandler(
		cfg.Logger,
		cfg.RegistrationService,
		cfg.SessionService,
		cfg.CookieConfig,
		cfg.AppBaseURL,
	)
	accountHandler.RegisterRoutes(r, authMiddleware)

	acceptanceHandler := acceptance.NewHandler(cfg.Logger, cfg.InboxService, cfg.SessionService, cfg.CookieConfig)
	acceptanceHandler.RegisterRoutes(r, authMiddleware)

	messagesHandler := messages.NewHandler(cfg.Logger, cfg.InboxService)
	messagesHandler.RegisterRoutes(r, authMiddleware)

	return r
}
