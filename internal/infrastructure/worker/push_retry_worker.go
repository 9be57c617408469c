package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PushRetrier re-delivers notifications whose chat push failed
type PushRetrier interface {
	RetryPush(ctx context.Context, limit int) (int, error)
}

// PushRetryWorkerConfig holds configuration for the push retry worker
type PushRetryWorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	Timeout      time.Duration
}

// DefaultPushRetryWorkerConfig returns default configuration
func DefaultPushRetryWorkerConfig() PushRetryWorkerConfig {
	return PushRetryWorkerConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    20,
		Timeout:      30 * time.Second,
	}
}

// PushRetryWorker periodically retries Lark delivery of inbox notifications
type PushRetryWorker struct {
	config  PushRetryWorkerConfig
	retrier PushRetrier
	logger  *zap.Logger

	mu          sync.RWMutex
	cancel      context.CancelFunc
	done        chan struct{}
	isRunning   bool
	pushedCount int
	failedRuns  int
	lastError   error
}

// NewPushRetryWorker creates a new push retry worker
func NewPushRetryWorker(config PushRetryWorkerConfig, retrier PushRetrier, logger *zap.Logger) *PushRetryWorker {
	defaults := DefaultPushRetryWorkerConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &PushRetryWorker{
		config:  config,
		retrier: retrier,
		logger:  logger,
	}
}

// Start begins the polling loop
func (w *PushRetryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("push retry worker already running")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("PushRetryWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize))

	go w.pollLoop(ctx, w.done)
	return nil
}

// Stop cancels the loop and waits for the current batch to finish
func (w *PushRetryWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.logger.Info("PushRetryWorker stopped",
		zap.Int("pushed_count", w.PushedCount()),
		zap.Int("failed_runs", w.failedRunCount()))
	return nil
}

// Name returns the worker name for identification
func (w *PushRetryWorker) Name() string {
	return "PushRetryWorker"
}

// PushedCount returns how many notifications the worker delivered
func (w *PushRetryWorker) PushedCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pushedCount
}

// LastError returns the error of the most recent failed run, if any
func (w *PushRetryWorker) LastError() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastError
}

func (w *PushRetryWorker) failedRunCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.failedRuns
}

func (w *PushRetryWorker) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

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

// runOnce retries a single batch
func (w *PushRetryWorker) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	pushed, err := w.retrier.RetryPush(runCtx, w.config.BatchSize)

	w.mu.Lock()
	w.pushedCount += pushed
	if err != nil {
		w.failedRuns++
		w.lastError = err
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("Notification push retry failed", zap.Error(err))
		return
	}
	if pushed > 0 {
		w.logger.Info("Notifications re-pushed", zap.Int("count", pushed))
	}
}
