package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tendant/true-feedback/internal/config"
	httpserver "github.com/tendant/true-feedback/internal/http"
	"github.com/tendant/true-feedback/internal/http/middleware"
	"github.com/tendant/true-feedback/internal/httputil"
	"github.com/tendant/true-feedback/internal/logging"
	"github.com/tendant/true-feedback/internal/metrics"
	"github.com/tendant/true-feedback/internal/notification"
	"github.com/tendant/true-feedback/pkg/auth"
	"github.com/tendant/true-feedback/pkg/inbox"
	"github.com/tendant/true-feedback/pkg/repository"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	store, err := repository.Open(ctx, repository.OpenConfig{
		Driver: cfg.StoreDriver,
		DSN:    cfg.DatabaseURL,
		Mongo: repository.MongoConfig{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
		},
		Logger: logger,
	})
	cancel()
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	logger.Info("connected to store", "driver", cfg.StoreDriver)

	var m *metrics.Metrics
	var recorder inbox.Recorder
	if cfg.MetricsEnabled {
		m = metrics.New()
		recorder = m
	}

	var sender auth.VerificationSender
	if cfg.HasSMTP() {
		sender = notification.NewEmailService(notification.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		})
		logger.Info("email service enabled")
	} else {
		sender = notification.NewLogSender(logger)
		logger.Warn("SMTP not configured, verification codes will be logged")
	}

	registrationService := auth.NewRegistrationService(auth.RegistrationConfig{
		VerifyCodeTTL:         cfg.VerifyCodeTTL,
		StrictEmailValidation: cfg.StrictEmailValidation,
		BlockDisposableEmail:  cfg.BlockDisposableEmail,
	}, store, sender)

	sessionService := auth.NewSessionService(auth.SessionConfig{
		TTL:       cfg.SessionTTL,
		JWTSecret: []byte(cfg.JWTSecret),
		Issuer:    cfg.JWTIssuer,
	})

	inboxService := inbox.NewService(store, recorder)

	cookieConfig := httputil.DefaultCookieConfig()
	cookieConfig.Secure = cfg.CookieSecure

	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:              logger,
		Store:               store,
		RegistrationService: registrationService,
		SessionService:      sessionService,
		InboxService:        inboxService,
		Metrics:             m,
		AppBaseURL:          cfg.AppBaseURL,
		SecurityHeaders:     middleware.DefaultSecurityHeaders(cfg.SecurityHeadersEnabled, cfg.CookieSecure),
		MaxRequestBodySize:  cfg.MaxRequestBodySize,
		CookieConfig:        cookieConfig,
	})

	addr := cfg.ListenAddr()
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
