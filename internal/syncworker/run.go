// Package syncworker boots the background calendar sync loop.
package syncworker

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/lifedash/lifedash/internal/calendar"
	"github.com/lifedash/lifedash/internal/config"
	"github.com/lifedash/lifedash/internal/logger"
	"github.com/lifedash/lifedash/internal/store"
	"github.com/lifedash/lifedash/internal/store/postgres"
	"github.com/lifedash/lifedash/internal/store/sqlite"
	syncengine "github.com/lifedash/lifedash/internal/sync"
	"github.com/lifedash/lifedash/internal/vault"
)

// Run starts the sync worker and blocks until shutdown or error.
func Run() error {
	log := logger.New("lifedash-sync-worker")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}

	log.Info().
		Bool("postgres", cfg.IsPostgres()).
		Int("outbox_interval_s", cfg.OutboxIntervalSeconds).
		Int("pull_interval_s", cfg.PullIntervalSeconds).
		Msg("sync worker starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var st store.Store
	if cfg.IsPostgres() {
		st, err = postgres.Open(ctx, cfg.DatabaseURL)
	} else {
		st, err = sqlite.Open(ctx, cfg.DatabaseURL)
	}
	if err != nil {
		log.Error().Stack().Err(err).Msg("store unavailable")
		return err
	}
	defer func() { _ = st.Close() }()

	v, err := vault.New(cfg.TokenEncryptionKey)
	if err != nil {
		log.Error().Err(err).Msg("token vault init failed")
		return err
	}
	provider := calendar.NewTokenProvider(st.Tokens(), v, cfg.GoogleClientID, cfg.GoogleClientSecret, "")
	client := calendar.NewClient(provider, "", cfg.DefaultTimezone, log)

	engine := syncengine.NewEngine(st, client, syncengine.Config{
		Users:           cfg.AllowedEmails,
		CalendarFor:     cfg.CalendarFor,
		DefaultTimezone: cfg.DefaultTimezone,
		BatchSize:       cfg.OutboxBatchSize,
	}, log)

	worker := syncengine.NewWorker(engine,
		time.Duration(cfg.OutboxIntervalSeconds)*time.Second,
		time.Duration(cfg.PullIntervalSeconds)*time.Second,
		cfg.OutboxBatchSize, log)

	worker.Run(ctx)
	return nil
}
