package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fennwick/docshelf/internal/domain"
	"github.com/fennwick/docshelf/internal/store"
	"github.com/google/uuid"
)

// Common errors returned by the Runner.
var (
	ErrQueueFull = errors.New("job queue is full")
	ErrStopped   = errors.New("runner is stopped")
)

// pendingSweepLimit bounds how many pending jobs one monitor sweep
// re-offers to the queue.
const pendingSweepLimit = 100

// RunnerConfig holds configuration for the worker pool.
type RunnerConfig struct {
	// WorkerCount determines how many concurrent workers process jobs.
	WorkerCount int

	// QueueSize determines the buffer size of the in-memory job ID queue.
	QueueSize int

	// StuckJobAge defines how long a job may sit in processing state
	// before the monitor releases it back to pending.
	StuckJobAge time.Duration

	// MonitorInterval defines how often the monitor sweeps for stuck
	// processing jobs and unqueued pending jobs. If zero, defaults to
	// 5 minutes.
	MonitorInterval time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:     2,
		QueueSize:       100,
		StuckJobAge:     30 * time.Minute,
		MonitorInterval: 5 * time.Minute,
	}
}

// Runner manages background job processing: it owns the queue, the worker
// goroutines, startup recovery, and the stale-job monitor.
type Runner struct {
	jobs      store.JobStore
	processor *Processor
	queue     chan uuid.UUID
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	cfg       RunnerConfig
	logger    *slog.Logger

	// running tracks the cancel function of every in-flight job so a
	// user cancellation can cut the conversion promptly instead of
	// waiting for the next progress checkpoint.
	mu      sync.Mutex
	running map[uuid.UUID]context.CancelFunc
	stopped bool
}

// NewRunner creates a new Runner.
func NewRunner(
	jobs store.JobStore,
	processor *Processor,
	cfg RunnerConfig,
	logger *slog.Logger,
) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", cfg.WorkerCount,
			"default_count", 1)
		cfg.WorkerCount = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultRunnerConfig().QueueSize
	}
	if cfg.MonitorInterval == 0 {
		cfg.MonitorInterval = 5 * time.Minute
	}
	// A zero age would make every sweep release all in-flight jobs.
	if cfg.StuckJobAge <= 0 {
		cfg.StuckJobAge = DefaultRunnerConfig().StuckJobAge
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		jobs:      jobs,
		processor: processor,
		queue:     make(chan uuid.UUID, cfg.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
		cfg:       cfg,
		logger:    logger.With("component", "worker_runner"),
		running:   make(map[uuid.UUID]context.CancelFunc),
	}
}

// Enqueue offers a job ID to the pool without blocking.
// Returns ErrQueueFull when the buffer is exhausted; the job stays
// pending in the store and the monitor sweep re-offers it later.
func (r *Runner) Enqueue(jobID uuid.UUID) error {
	// The send stays inside the critical section so it cannot race the
	// queue close in Stop.
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return ErrStopped
	}

	select {
	case r.queue <- jobID:
		return nil
	default:
		return fmt.Errorf("%w: capacity %d reached", ErrQueueFull, cap(r.queue))
	}
}

// CancelRunning cuts the context of an in-flight job, if any worker in
// this process currently holds it. Returns whether a worker was signalled.
func (r *Runner) CancelRunning(jobID uuid.UUID) bool {
	r.mu.Lock()
	cancel, ok := r.running[jobID]
	r.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// Start recovers unfinished jobs from previous runs and launches the
// worker and monitor goroutines.
func (r *Runner) Start() error {
	if err := r.recover(); err != nil {
		return fmt.Errorf("failed to recover jobs: %w", err)
	}

	for i := 0; i < r.cfg.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(1)
	go r.monitor()

	r.logger.Info("worker pool started",
		"worker_count", r.cfg.WorkerCount,
		"queue_size", r.cfg.QueueSize)
	return nil
}

// Stop shuts the pool down: in-flight jobs are cancelled and workers
// drain out. Safe to call once.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	close(r.queue)
	r.logger.Info("worker pool stopped")
}

// recover releases every job left in processing state by a previous run
// (their workers are gone) and re-offers all pending jobs, oldest first.
func (r *Runner) recover() error {
	ctx := context.Background()

	released, err := r.jobs.ReleaseStale(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to release interrupted jobs: %w", err)
	}

	pending, err := r.jobs.FindByStatus(ctx, domain.JobStatusPending, 0)
	if err != nil {
		return fmt.Errorf("failed to load pending jobs: %w", err)
	}

	r.logger.Info("recovering unfinished jobs",
		"released_count", len(released),
		"pending_count", len(pending))

	for _, job := range pending {
		select {
		case r.queue <- job.ID:
		default:
			// Queue full; the monitor sweep picks the rest up.
			r.logger.Warn("queue full during recovery, deferring job",
				"job_id", job.ID)
			return nil
		}
	}

	return nil
}

// worker consumes job IDs and processes one claimed job at a time.
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case jobID, ok := <-r.queue:
			if !ok {
				return
			}
			r.handle(jobID, id)
		}
	}
}

// handle claims and processes a single job. A lost claim race is normal
// operation; any other failure is isolated to this job.
func (r *Runner) handle(jobID uuid.UUID, workerID int) {
	logger := r.logger.With("job_id", jobID, "worker_id", workerID)

	job, err := r.jobs.Claim(r.ctx, jobID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrJobClaimed):
			logger.Debug("lost claim race, skipping job")
		case errors.Is(err, store.ErrJobNotFound):
			logger.Debug("job vanished before claim, skipping")
		case errors.Is(err, store.ErrInvalidTransition):
			logger.Debug("job no longer pending, skipping", "error", err)
		default:
			logger.Error("failed to claim job", "error", err)
		}
		return
	}

	jobCtx, cancelJob := context.WithCancel(r.ctx)
	r.mu.Lock()
	r.running[jobID] = cancelJob
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.running, jobID)
		r.mu.Unlock()
		cancelJob()

		if p := recover(); p != nil {
			// A panicking strategy must not take the worker down.
			logger.Error("panic while processing job", "panic", p)
			detached := context.WithoutCancel(jobCtx)
			if err := r.jobs.MarkFailed(detached, jobID, fmt.Sprintf("internal error: %v", p)); err != nil &&
				!errors.Is(err, store.ErrInvalidTransition) {
				logger.Error("failed to record panic failure", "error", err)
			}
		}
	}()

	logger.Info("processing job", "source_type", job.SourceType)
	r.processor.Process(jobCtx, job)
}

// monitor periodically releases jobs stuck in processing state and
// re-offers pending jobs that fell out of the queue (full buffer at
// submission time, or a retry while saturated). Re-offering an already
// queued ID is harmless: the claim is atomic.
func (r *Runner) monitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep runs one monitor pass.
func (r *Runner) sweep() {
	ctx := context.Background()

	released, err := r.jobs.ReleaseStale(ctx, r.cfg.StuckJobAge)
	if err != nil {
		r.logger.Error("failed to release stuck jobs", "error", err)
	} else if len(released) > 0 {
		r.logger.Info("released stuck jobs", "count", len(released))
	}

	pending, err := r.jobs.FindByStatus(ctx, domain.JobStatusPending, pendingSweepLimit)
	if err != nil {
		r.logger.Error("failed to sweep pending jobs", "error", err)
		return
	}

	for _, job := range pending {
		select {
		case r.queue <- job.ID:
		default:
			return
		}
	}
}
