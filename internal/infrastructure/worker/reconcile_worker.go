// Package worker hosts the background reconciliation loop.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lodgetix/invoicing/internal/application/service"
)

// Runner is the batch operation the worker drives on its interval.
// *service.ReconcileService satisfies it.
type Runner interface {
	Run(ctx context.Context, withReport bool) (*service.RunSummary, error)
}

// ReconcileWorkerConfig holds configuration for the reconcile worker.
type ReconcileWorkerConfig struct {
	PollInterval time.Duration
	RunTimeout   time.Duration
	WriteReports bool
}

// DefaultReconcileWorkerConfig returns the default configuration.
func DefaultReconcileWorkerConfig() ReconcileWorkerConfig {
	return ReconcileWorkerConfig{
		PollInterval: 30 * time.Second,
		RunTimeout:   120 * time.Second,
		WriteReports: false,
	}
}

// Status is a point-in-time snapshot of the worker's run history.
type Status struct {
	Running  bool
	LastRun  time.Time
	RunCount int
	LastErr  error
}

// ReconcileWorker periodically matches unprocessed payments against
// registrations and records the outcomes. One run executes at a time:
// the first immediately on Start, then one per poll interval, and Stop
// does not return until an in-flight run has finished.
type ReconcileWorker struct {
	config ReconcileWorkerConfig
	runner Runner
	logger *zap.Logger

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	lastRun  time.Time
	runCount int
	lastErr  error
}

// NewReconcileWorker creates a reconcile worker around the batch
// runner.
func NewReconcileWorker(config ReconcileWorkerConfig, runner Runner, logger *zap.Logger) *ReconcileWorker {
	return &ReconcileWorker{
		config: config,
		runner: runner,
		logger: logger,
	}
}

// Start launches the polling loop. The first run happens immediately
// rather than after the first tick, so a restart drains any backlog
// without waiting out the interval.
func (w *ReconcileWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("reconcile worker already running")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.running = true

	go w.loop(ctx, w.done)

	w.logger.Info("Reconcile worker started",
		zap.Duration("poll_interval", w.config.PollInterval))
	return nil
}

// Stop cancels the loop and waits for any in-flight run to finish.
// Stopping a worker that is not running is a no-op.
func (w *ReconcileWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.mu.Lock()
	runs := w.runCount
	w.mu.Unlock()
	w.logger.Info("Reconcile worker stopped", zap.Int("run_count", runs))
	return nil
}

// Status returns a snapshot of the worker's state.
func (w *ReconcileWorker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Status{
		Running:  w.running,
		LastRun:  w.lastRun,
		RunCount: w.runCount,
		LastErr:  w.lastErr,
	}
}

func (w *ReconcileWorker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	w.runOnce(ctx)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *ReconcileWorker) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, w.config.RunTimeout)
	defer cancel()

	summary, err := w.runner.Run(runCtx, w.config.WriteReports)

	w.mu.Lock()
	w.lastRun = time.Now()
	w.runCount++
	w.lastErr = err
	w.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			// Shutdown interrupted the run; not a batch failure.
			return
		}
		w.logger.Error("Reconcile run failed", zap.Error(err))
		return
	}
	if summary.Statistics.Total > 0 {
		w.logger.Info("Reconcile run complete",
			zap.Int("total", summary.Statistics.Total),
			zap.Int("matched", summary.Statistics.Matched))
	}
}
