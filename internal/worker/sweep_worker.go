package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/observability"
)

// Sweeper runs one escalation sweep.
type Sweeper interface {
	RunAutomaticSweep(ctx context.Context) (int, error)
}

// Locker guards a sweep across replicas.
type Locker interface {
	Acquire(ctx context.Context) (token string, ok bool, err error)
	Release(ctx context.Context, token string) error
}

// SweepWorker triggers the escalation sweep on a fixed interval.
type SweepWorker struct {
	sweeper  Sweeper
	locker   Locker
	interval time.Duration
	logger   *zap.Logger
}

// NewSweepWorker creates the worker. locker may be nil for single-replica runs.
func NewSweepWorker(sweeper Sweeper, locker Locker, interval time.Duration, logger *zap.Logger) *SweepWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SweepWorker{sweeper: sweeper, locker: locker, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (w *SweepWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("sweep worker started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sweep worker stopped")
			return
		case <-ticker.C:
			if _, _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
				observability.ReportError(w.logger, err, "escalation sweep failed", map[string]string{"component": "sweep"})
			}
		}
	}
}

// RunOnce performs a single guarded sweep. ran is false when another
// replica holds the lease.
func (w *SweepWorker) RunOnce(ctx context.Context) (escalated int, ran bool, err error) {
	if w.locker != nil {
		token, ok, lockErr := w.locker.Acquire(ctx)
		switch {
		case lockErr != nil:
			// Escalations are idempotent per level, so a Redis outage must not stop them.
			w.logger.Warn("sweep lease unavailable; sweeping without it", zap.Error(lockErr))
		case !ok:
			w.logger.Debug("sweep lease held elsewhere; skipping")
			return 0, false, nil
		default:
			defer func() {
				if err := w.locker.Release(context.WithoutCancel(ctx), token); err != nil {
					w.logger.Warn("sweep lease release failed", zap.Error(err))
				}
			}()
		}
	}

	escalated, err = w.sweeper.RunAutomaticSweep(ctx)
	return escalated, true, err
}
