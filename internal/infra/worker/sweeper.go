package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// StaleSweeper is implemented by queues that can return timed-out
// processing entries for redelivery.
type StaleSweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// VisibilitySweeper periodically returns stale in-flight deliveries to the
// queue. It is the visibility-timeout half of the at-least-once contract:
// a consumer that died mid-pipeline loses its delivery back to the queue.
type VisibilitySweeper struct {
	interval time.Duration
	queue    StaleSweeper
	log      *zerolog.Logger
}

func NewVisibilitySweeper(interval time.Duration, queue StaleSweeper, logger *zerolog.Logger) *VisibilitySweeper {
	slog := logger.With().Str("component", "VisibilitySweeper").Logger()
	return &VisibilitySweeper{interval: interval, queue: queue, log: &slog}
}

func (w *VisibilitySweeper) Run(ctx context.Context) error {
	w.log.Info().Msg("starting visibility sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping visibility sweeper")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.queue.Sweep(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("sweep error")
			}
			if n > 0 {
				w.log.Info().Int("count", n).Msg("stale deliveries returned to queue")
			}
		}
	}
}
