// Package apiservice boots the HTTP API: config, store, calendar client,
// services, router and graceful shutdown.
package apiservice

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/lifedash/lifedash/internal/api"
	"github.com/lifedash/lifedash/internal/calendar"
	"github.com/lifedash/lifedash/internal/config"
	"github.com/lifedash/lifedash/internal/logger"
	"github.com/lifedash/lifedash/internal/services"
	"github.com/lifedash/lifedash/internal/store"
	"github.com/lifedash/lifedash/internal/store/postgres"
	"github.com/lifedash/lifedash/internal/store/sqlite"
	syncengine "github.com/lifedash/lifedash/internal/sync"
	"github.com/lifedash/lifedash/internal/vault"
)

// Run starts the API service and blocks until shutdown or error.
func Run() error {
	log := logger.New("lifedash-api")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}

	log.Info().
		Bool("postgres", cfg.IsPostgres()).
		Int("http_port", cfg.HTTPPort).
		Strs("users", cfg.AllowedEmails).
		Msg("api service starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	handler, err := buildHandler(cfg, st, log)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler.Router(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("server forced to shutdown")
			return err
		}
		log.Info().Msg("server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, error) {
	if cfg.IsPostgres() {
		st, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error().Stack().Err(err).Msg("postgres unavailable")
			return nil, err
		}
		return st, nil
	}
	st, err := sqlite.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error().Stack().Err(err).Msg("sqlite unavailable")
		return nil, err
	}
	return st, nil
}

func buildHandler(cfg *config.Config, st store.Store, log zerolog.Logger) (*api.Handler, error) {
	v, err := vault.New(cfg.TokenEncryptionKey)
	if err != nil {
		log.Error().Err(err).Msg("token vault init failed")
		return nil, err
	}

	provider := calendar.NewTokenProvider(st.Tokens(), v, cfg.GoogleClientID, cfg.GoogleClientSecret, "")
	client := calendar.NewClient(provider, "", cfg.DefaultTimezone, log)
	oauth := calendar.NewOAuth(st.Tokens(), v, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURI, "", "")

	tasks := services.NewTaskService(st, cfg.CalendarFor, log)
	habits := services.NewHabitService(st)
	streaks := services.NewStreakService(st, habits)

	engine := syncengine.NewEngine(st, client, syncengine.Config{
		Users:           cfg.AllowedEmails,
		CalendarFor:     cfg.CalendarFor,
		DefaultTimezone: cfg.DefaultTimezone,
		BatchSize:       cfg.OutboxBatchSize,
	}, log)

	return api.New(cfg, st, tasks, habits, streaks, engine, oauth, log), nil
}
