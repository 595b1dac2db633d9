package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/discussion-review/internal/application/service"
	"go.uber.org/zap"
)

// Reconciler runs one reconciliation pass
type Reconciler interface {
	ReconcileStatuses(ctx context.Context, dryRun bool) (*service.ReconcileResult, error)
}

// ReconcileWorkerConfig holds configuration for the reconcile worker
type ReconcileWorkerConfig struct {
	// Interval between passes; zero disables the worker
	Interval time.Duration
	// Timeout bounds a single pass
	Timeout time.Duration
}

// ReconcileStats describes the worker's activity since Start
type ReconcileStats struct {
	Runs      int
	Failures  int
	Updates   int
	LastRun   time.Time
	LastError error
}

// ReconcileWorker periodically re-derives every task status
type ReconcileWorker struct {
	config     ReconcileWorkerConfig
	reconciler Reconciler
	logger     *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	stats   ReconcileStats
}

// NewReconcileWorker creates a new reconcile worker
func NewReconcileWorker(config ReconcileWorkerConfig, reconciler Reconciler, logger *zap.Logger) *ReconcileWorker {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}
	return &ReconcileWorker{
		config:     config,
		reconciler: reconciler,
		logger:     logger,
	}
}

// Name returns the worker name for identification
func (w *ReconcileWorker) Name() string {
	return "ReconcileWorker"
}

// Start begins the polling loop. A zero interval leaves the worker idle.
func (w *ReconcileWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("reconcile worker already running")
	}
	if w.config.Interval <= 0 {
		w.logger.Info("ReconcileWorker disabled, interval is zero")
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true

	w.logger.Info("ReconcileWorker started", zap.Duration("interval", w.config.Interval))
	go w.pollLoop(loopCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for a running pass to return
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

	stats := w.Stats()
	w.logger.Info("ReconcileWorker stopped",
		zap.Int("runs", stats.Runs),
		zap.Int("failures", stats.Failures),
		zap.Int("updates", stats.Updates))
	return nil
}

// Stats returns a snapshot of the worker's counters
func (w *ReconcileWorker) Stats() ReconcileStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *ReconcileWorker) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.Interval)
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
	runCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	result, err := w.reconciler.ReconcileStatuses(runCtx, false)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.Runs++
	w.stats.LastRun = time.Now()
	w.stats.LastError = err

	if err != nil {
		w.stats.Failures++
		w.logger.Error("Reconciliation pass failed", zap.Error(err))
		return
	}

	w.stats.Updates += len(result.Updates)
	if len(result.Updates) > 0 || len(result.Errors) > 0 {
		w.logger.Info("Reconciliation pass finished",
			zap.Int("discussions", result.Discussions),
			zap.Int("updates", len(result.Updates)),
			zap.Int("preserved", len(result.PreservedRework)),
			zap.Int("errors", len(result.Errors)),
			zap.Duration("duration", result.Duration))
	}
}
