package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rijksuitgaven/mailengine/internal/pkg/distlock"
	"github.com/rijksuitgaven/mailengine/internal/pkg/logger"
	"github.com/rijksuitgaven/mailengine/internal/service/sequence"
)

// =============================================================================
// SEQUENCE WORKER
// =============================================================================
// Runs the sequence scheduler on a cron schedule in the configured timezone.
// Every run is guarded by a distributed lock so only one replica ticks at a
// time. Skipping a run is safe: the next tick catches up, and the store's
// unique constraints keep repeated sends out.

// DefaultSchedule fires at the top of every hour.
const DefaultSchedule = "0 * * * *"

// Ticker runs one scheduler pass. Satisfied by *sequence.Service.
type Ticker interface {
	Tick(ctx context.Context) (sequence.TickResult, error)
}

// SequenceConfig configures a SequenceWorker.
type SequenceConfig struct {
	Schedule string
	Location *time.Location
	// Timeout bounds a single tick. A Redis lease is renewed while the tick
	// runs, so it may exceed the lock TTL.
	Timeout time.Duration
}

// SequenceWorker runs Ticker on a cron schedule.
type SequenceWorker struct {
	ticker   Ticker
	lock     distlock.DistLock
	cron     *cron.Cron
	schedule cron.Schedule
	location *time.Location
	timeout  time.Duration

	mu      sync.Mutex
	running bool
	lastRun time.Time
	lastErr error
}

// NewSequenceWorker validates the schedule and returns a stopped worker.
func NewSequenceWorker(t Ticker, lock distlock.DistLock, cfg SequenceConfig) (*SequenceWorker, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 25 * time.Minute
	}

	schedule, err := cron.ParseStandard(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", cfg.Schedule, err)
	}

	w := &SequenceWorker{
		ticker:   t,
		lock:     lock,
		schedule: schedule,
		location: cfg.Location,
		timeout:  cfg.Timeout,
	}
	w.cron = cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
	)
	w.cron.Schedule(schedule, cron.FuncJob(w.run))
	return w, nil
}

// Start begins firing on schedule. It does not block.
func (w *SequenceWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.cron.Start()
	logger.Info("sequence worker started", "next_run", w.Next(time.Now()).Format(time.RFC3339))
}

// Stop halts the schedule and waits for a running tick, or for ctx.
func (w *SequenceWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	done := w.cron.Stop()
	select {
	case <-done.Done():
		logger.Info("sequence worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce ticks under the lock. It returns distlock.ErrNotAcquired when
// another replica holds it.
func (w *SequenceWorker) RunOnce(ctx context.Context) (sequence.TickResult, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	var res sequence.TickResult
	err := distlock.Run(ctx, w.lock, func(ctx context.Context) error {
		var tickErr error
		res, tickErr = w.ticker.Tick(ctx)
		return tickErr
	})

	w.mu.Lock()
	w.lastRun = time.Now()
	w.lastErr = err
	w.mu.Unlock()
	return res, err
}

// LastRun reports when the most recent tick finished and how it ended.
func (w *SequenceWorker) LastRun() (time.Time, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRun, w.lastErr
}

func (w *SequenceWorker) run() {
	res, err := w.RunOnce(context.Background())
	switch {
	case errors.Is(err, distlock.ErrNotAcquired):
		logger.Info("sequence tick skipped, lock held elsewhere")
	case err != nil:
		logger.Error("sequence tick failed", "error", err.Error(),
			"processed", res.Processed, "sent", res.Sent, "errors", res.Errors)
	default:
		logger.Info("sequence tick done", "processed", res.Processed, "sent", res.Sent,
			"skipped", res.Skipped, "errors", res.Errors, "reason", res.Reason)
	}
}

// Next returns the first scheduled run after t in the worker's timezone.
func (w *SequenceWorker) Next(t time.Time) time.Time {
	return w.schedule.Next(t.In(w.location))
}

// cronLogger adapts the package logger to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("cron: "+msg, append(keysAndValues, "error", err.Error())...)
}
