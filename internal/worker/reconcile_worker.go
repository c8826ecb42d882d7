package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Pinger probes backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Reconciler is the session-side delivery retry entry point.
type Reconciler interface {
	HasPending(ctx context.Context) bool
	ReconcilePending(ctx context.Context) error
}

// ReconcileWorker watches for connectivity returning and redelivers a
// pending submission. The session controller's own latch makes redelivery
// exactly-once; this loop only decides when to try.
type ReconcileWorker struct {
	backend  Pinger
	session  Reconciler
	interval time.Duration
	log      zerolog.Logger
}

func NewReconcileWorker(backend Pinger, session Reconciler, interval time.Duration, log zerolog.Logger) *ReconcileWorker {
	return &ReconcileWorker{
		backend:  backend,
		session:  session,
		interval: interval,
		log:      log.With().Str("component", "reconcile_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *ReconcileWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	online := true

	for {
		select {
		case <-ctx.Done():
			// One last delivery attempt before exit.
			w.drain()
			w.log.Info().Msg("Worker stopped")
			return
		case <-ticker.C:
			if !w.session.HasPending(ctx) {
				continue
			}

			if err := w.backend.Ping(ctx); err != nil {
				if online {
					w.log.Warn().Err(err).Msg("Backend offline, submission held")
				}
				online = false
				continue
			}
			if !online {
				w.log.Info().Msg("Backend reachable again, redelivering")
			}
			online = true

			if err := w.session.ReconcilePending(ctx); err != nil {
				w.log.Error().Err(err).Msg("Redelivery failed, will retry")
			}
		}
	}
}

// drain makes a final short-deadline delivery attempt during shutdown.
func (w *ReconcileWorker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if !w.session.HasPending(ctx) {
		return
	}
	if err := w.session.ReconcilePending(ctx); err != nil {
		w.log.Warn().Err(err).Msg("Final redelivery attempt failed, submission kept")
	}
}
