package scheduler

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/courtmate/tennis-platform/pkg/errors"
	"go.uber.org/zap"
)

const (
	// Sweep for overdue shared booking proposals every minute
	defaultSweepInterval = 1 * time.Minute
	// Upper bound for one sweep
	sweepTimeout = 30 * time.Second
)

// Expirer moves overdue proposals to expired and reports how many changed.
type Expirer interface {
	ExpireDue(ctx context.Context) (int, error)
}

// Worker runs periodic shared booking maintenance
type Worker struct {
	expirer  Expirer
	interval time.Duration
	logger   *zap.Logger
	done     chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a new scheduler worker. A non-positive interval uses
// the default.
func NewWorker(expirer Expirer, interval time.Duration, logger *zap.Logger) *Worker {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Worker{
		expirer:  expirer,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start runs the sweep immediately and then on every tick until ctx is
// cancelled or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Starting scheduler worker", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.expireProposals(ctx)

	for {
		select {
		case <-ticker.C:
			w.expireProposals(ctx)
		case <-ctx.Done():
			w.logger.Info("Scheduler worker stopped")
			return
		case <-w.done:
			w.logger.Info("Scheduler worker shutdown requested")
			return
		}
	}
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

// expireProposals runs one expiry sweep. Failures are logged and retried on
// the next tick.
func (w *Worker) expireProposals(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	start := time.Now()
	n, err := w.expirer.ExpireDue(sweepCtx)
	sweepDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		sweepErrors.Inc()
		w.logger.Error("Failed to expire shared booking proposals", zap.Error(err))
		apperrors.CaptureErrorWithContext(ctx, err, map[string]interface{}{"job": "expire_proposals"})
		return
	}

	if n == 0 {
		w.logger.Debug("No overdue proposals")
		return
	}
	proposalsExpired.Add(float64(n))
	w.logger.Info("Expired overdue proposals", zap.Int("count", n))
}
