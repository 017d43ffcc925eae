// Package feedback embeds the anonymous feedback API in another service.
//
// Setup:
//
//  1. Open a repository.Store (migrations run when the SQL store is opened)
//  2. Create a Feedback instance and mount its router
//
// Basic usage:
//
//	store, _ := repository.Open(ctx, repository.OpenConfig{
//	    Driver: repository.DriverPostgres,
//	    DSN:    "postgres://localhost/myapp?sslmode=disable",
//	})
//
//	fb, err := feedback.New(feedback.Config{
//	    Store:     store,
//	    JWTSecret: "your-secret-key-at-least-32-chars",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	r := chi.NewRouter()
//	r.Mount("/", fb.Router())
//	http.ListenAndServe(":8080", r)
//
// Without a Sender, verification codes are written to the logger.
package feedback

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/tendant/true-feedback/internal/http/features/acceptance"
	"github.com/tendant/true-feedback/internal/http/features/account"
	"github.com/tendant/true-feedback/internal/http/features/messages"
	"github.com/tendant/true-feedback/internal/http/middleware"
	"github.com/tendant/true-feedback/internal/httputil"
	"github.com/tendant/true-feedback/internal/notification"
	"github.com/tendant/true-feedback/pkg/auth"
	"github.com/tendant/true-feedback/pkg/domain"
	"github.com/tendant/true-feedback/pkg/inbox"
	"github.com/tendant/true-feedback/pkg/repository"
)

// Config holds the configuration for an embedded Feedback instance.
type Config struct {
	// Store is the persistence backend (required).
	Store repository.Store

	// JWTSecret is the secret key for signing session tokens (required, min 32 chars).
	JWTSecret string

	// JWTIssuer is the issuer claim in session tokens (default: "true-feedback").
	JWTIssuer string

	// SessionTTL is the lifetime of session tokens (default: 30 days).
	SessionTTL time.Duration

	// VerifyCodeTTL is how long a verification code stays valid (default: 1 hour).
	VerifyCodeTTL time.Duration

	// Sender delivers verification codes (default: log only).
	Sender auth.VerificationSender

	// AppBaseURL prefixes the shareable profile link (default: "http://localhost:8080").
	AppBaseURL string

	// CookieSecure marks the session cookie Secure.
	CookieSecure bool

	// Logger is the structured logger (default: JSON to stdout).
	Logger *slog.Logger
}

// Feedback is an embeddable instance of the feedback API.
type Feedback struct {
	config       Config
	registration *auth.RegistrationService
	sessions     *auth.SessionService
	inbox        *inbox.Service
}

// New creates a Feedback instance with the given configuration.
func New(cfg Config) (*Feedback, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &Feedback{
		config: cfg,
		registration: auth.NewRegistrationService(auth.RegistrationConfig{
			VerifyCodeTTL:         cfg.VerifyCodeTTL,
			StrictEmailValidation: true,
		}, cfg.Store, cfg.Sender),
		sessions: auth.NewSessionService(auth.SessionConfig{
			TTL:       cfg.SessionTTL,
			JWTSecret: []byte(cfg.JWTSecret),
			Issuer:    cfg.JWTIssuer,
		}),
		inbox: inbox.NewService(cfg.Store, nil),
	}, nil
}

// Router returns a chi router with every feedback route.
//
// Routes:
//
//	POST   /api/sign-up                  - Register and email a verification code
//	POST   /api/verify-code              - Confirm the code
//	GET    /api/check-username-unique    - Username availability
//	POST   /api/sign-in                  - Issue a session
//	POST   /api/sign-out                 - Clear the session cookie
//	GET    /api/me                       - Current user (protected)
//	DELETE /api/me                       - Delete account and inbox (protected)
//	GET    /api/accept-messages          - Acceptance flag (protected)
//	POST   /api/accept-messages          - Toggle acceptance (protected)
//	GET    /api/get-messages             - Inbox, newest first (protected)
//	DELETE /api/delete-message/{id}      - Delete one message (protected)
//	POST   /api/send-message             - Anonymous delivery
//	GET    /api/u/{username}             - Public profile probe
func (f *Feedback) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Logger)

	cookieConfig := httputil.DefaultCookieConfig()
	cookieConfig.Secure = f.config.CookieSecure

	authMiddleware := middleware.Auth(f.sessions)

	account.NewHandler(f.config.Logger, f.registration, f.sessions, cookieConfig, f.config.AppBaseURL).
		RegisterRoutes(r, authMiddleware)
	acceptance.NewHandler(f.config.Logger, f.inbox, f.sessions, cookieConfig).
		RegisterRoutes(r, authMiddleware)
	messages.NewHandler(f.config.Logger, f.inbox).
		RegisterRoutes(r, authMiddleware)

	return r
}

// AuthMiddleware returns middleware that validates session tokens.
// Use this to protect your own routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(fb.AuthMiddleware())
//	    r.Get("/protected", handler)
//	})
func (f *Feedback) AuthMiddleware() func(http.Handler) http.Handler {
	return middleware.Auth(f.sessions)
}

// Inbox returns the inbox service for advanced usage.
func (f *Feedback) Inbox() *inbox.Service {
	return f.inbox
}

// GetPrincipal extracts the signed-in user from a request.
// Use after AuthMiddleware.
func GetPrincipal(r *http.Request) (*domain.Principal, bool) {
	return GetPrincipalFromContext(r.Context())
}

// GetPrincipalFromContext extracts the signed-in user from a context.
func GetPrincipalFromContext(ctx context.Context) (*domain.Principal, bool) {
	return middleware.GetPrincipal(ctx)
}

// HealthHandler returns a handler that pings the store.
func (f *Feedback) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := f.config.Store.Ping(r.Context()); err != nil {
			httputil.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// Routes registers the feedback routes on an http.ServeMux with the given prefix.
//
//	mux := http.NewServeMux()
//	fb.Routes(mux, "/feedback")
func (f *Feedback) Routes(mux *http.ServeMux, prefix string) {
	mux.Handle(prefix+"/", http.StripPrefix(prefix, f.Router()))
}

func validateConfig(cfg *Config) error {
	if cfg.Store == nil {
		return errors.New("feedback: Store is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("feedback: JWTSecret is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return errors.New("feedback: JWTSecret must be at least 32 characters")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "true-feedback"
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = auth.DefaultSessionTTL
	}
	if cfg.VerifyCodeTTL == 0 {
		cfg.VerifyCodeTTL = auth.DefaultVerifyCodeTTL
	}
	if cfg.AppBaseURL == "" {
		cfg.AppBaseURL = "http://localhost:8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	if cfg.Sender == nil {
		cfg.Sender = notification.NewLogSender(cfg.Logger)
	}
}
