package sync

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Worker runs the engine on timers: a short tick for the outbox drain and a
// longer one for inbound pulls.
type Worker struct {
	engine         *Engine
	outboxInterval time.Duration
	pullInterval   time.Duration
	batchSize      int
	log            zerolog.Logger
}

func NewWorker(engine *Engine, outboxInterval, pullInterval time.Duration, batchSize int, log zerolog.Logger) *Worker {
	if outboxInterval <= 0 {
		outboxInterval = 5 * time.Second
	}
	if pullInterval <= 0 {
		pullInterval = 5 * time.Minute
	}
	return &Worker{
		engine:         engine,
		outboxInterval: outboxInterval,
		pullInterval:   pullInterval,
		batchSize:      batchSize,
		log:            log,
	}
}

// Run blocks until ctx is cancelled. An initial pull runs at startup so a
// fresh process converges without waiting a full interval.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info().
		Dur("outbox_interval", w.outboxInterval).
		Dur("pull_interval", w.pullInterval).
		Msg("sync worker started")

	w.engine.PullAll(ctx)

	outboxTick := time.NewTicker(w.outboxInterval)
	defer outboxTick.Stop()
	pullTick := time.NewTicker(w.pullInterval)
	defer pullTick.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("sync worker stopping")
			return
		case <-outboxTick.C:
			if _, err := w.engine.ProcessOutboxOnce(ctx, w.batchSize); err != nil {
				w.log.Error().Stack().Err(err).Msg("outbox drain failed")
			}
		case <-pullTick.C:
			w.engine.PullAll(ctx)
		}
	}
}
