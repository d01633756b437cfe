package job

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mockmate/eval-api/internal/domain"
	"github.com/mockmate/eval-api/internal/platform/metrics"
	"github.com/mockmate/eval-api/internal/store"
)

// Executor runs the actual evaluation for a job's request. It is the
// worker-side collaborator boundary: the orchestration layer never calls the
// AI backend directly.
type Executor interface {
	Execute(ctx context.Context, req *domain.EvaluationRequest) (*domain.EvaluationResult, error)
}

// RunnerConfig holds configuration for the job runner.
type RunnerConfig struct {
	// WorkerCount determines how many concurrent workers process jobs.
	WorkerCount int

	// StuckJobAge defines how long a job can sit in active state before
	// it is considered stuck and reset.
	StuckJobAge time.Duration

	// StuckJobCheckInterval defines how often to check for stuck jobs.
	// If zero, defaults to 5 minutes.
	StuckJobCheckInterval time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:           4,
		StuckJobAge:           30 * time.Minute,
		StuckJobCheckInterval: 5 * time.Minute,
	}
}

// Runner drives background job processing: workers consume from the queue,
// execute the evaluation, commit the result to the result store, and only
// then mark the job completed. The result write is the commit point: a job
// is never reported completed without a stored result.
type Runner struct {
	queue   *Queue
	store   Store
	results store.ResultStore
	exec    Executor

	config     RunnerConfig
	logger     *slog.Logger
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewRunner creates a new Runner. The job store must be the same one the
// queue writes through.
func NewRunner(
	queue *Queue,
	jobStore Store,
	results store.ResultStore,
	exec Executor,
	config RunnerConfig,
	logger *slog.Logger,
) *Runner {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if config.StuckJobCheckInterval == 0 {
		config.StuckJobCheckInterval = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		queue:      queue,
		store:      jobStore,
		results:    results,
		exec:       exec,
		config:     config,
		logger:     logger,
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start recovers unfinished jobs and launches the worker pool plus the
// stuck-job monitor.
func (r *Runner) Start() error {
	if err := r.queue.Recover(r.ctx); err != nil {
		return fmt.Errorf("failed to recover jobs: %w", err)
	}

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(1)
	go r.stuckJobMonitor()

	return nil
}

// Stop shuts the runner down. Dispatched work runs to completion; there is
// no caller-initiated cancellation of in-flight jobs.
func (r *Runner) Stop() {
	r.cancelFunc()
	r.wg.Wait()
}

// worker processes jobs from the queue until shutdown.
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case j, ok := <-r.queue.Channel():
			if !ok {
				r.logger.Debug("job channel closed, stopping worker", "worker_id", id)
				return
			}
			metrics.UpdateQueueDepth(len(r.queue.Channel()))
			r.processJob(j, id)
		}
	}
}

// processJob handles execution of a single job.
func (r *Runner) processJob(j *Job, workerID int) {
	ctx := context.Background()
	logger := r.logger.With(
		"job_id", j.ID,
		"request_id", j.RequestID,
		"worker_id", workerID,
	)

	var req domain.EvaluationRequest
	if err := json.Unmarshal(j.Payload, &req); err != nil {
		logger.Error("failed to decode job payload", "error", err)
		r.failJob(ctx, j, "malformed job payload", logger)
		return
	}

	if err := r.store.UpdateJobState(ctx, j.ID, StateActive, ""); err != nil {
		logger.Error("failed to mark job active", "error", err)
		return
	}
	if h, ok := r.queue.lookup(j.ID); ok {
		h.markActive()
	}

	logger.Info("processing job")

	start := time.Now()
	result, err := r.exec.Execute(ctx, &req)
	elapsed := time.Since(start)
	metrics.ObserveJobDuration(elapsed.Seconds())

	if err != nil {
		logger.Error("job execution failed", "error", err)
		r.failJob(ctx, j, err.Error(), logger)
		return
	}

	result.RequestID = req.RequestID
	result.JobID = j.ID
	result.DurationMs = elapsed.Milliseconds()

	// Commit point: the result must be durable before the job is marked
	// completed, otherwise pollers would see a completed job with nothing
	// to show for it.
	if err := r.results.UpsertResult(ctx, result); err != nil {
		logger.Error("failed to persist evaluation result", "error", err)
		r.failJob(ctx, j, "failed to persist result", logger)
		return
	}

	if err := r.store.UpdateJobState(ctx, j.ID, StateCompleted, ""); err != nil {
		logger.Error("failed to mark job completed", "error", err)
	}
	if h, ok := r.queue.lookup(j.ID); ok {
		h.complete()
		r.queue.unregister(h)
	}

	metrics.RecordJobCompleted()
	logger.Info("job completed", "duration_ms", elapsed.Milliseconds())
}

// failJob records a terminal failure in the store and on the live handle.
func (r *Runner) failJob(ctx context.Context, j *Job, reason string, logger *slog.Logger) {
	if err := r.store.UpdateJobState(ctx, j.ID, StateFailed, reason); err != nil {
		logger.Error("failed to mark job failed", "error", err)
	}
	if h, ok := r.queue.lookup(j.ID); ok {
		h.fail(reason)
		r.queue.unregister(h)
	}
	metrics.RecordJobFailed()
}

// stuckJobMonitor periodically resets jobs that have been active for too
// long, typically left behind by a worker that died mid-execution.
func (r *Runner) stuckJobMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckJobCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			ctx := context.Background()

			stuck, err := r.store.GetJobsByState(ctx, StateActive, r.config.StuckJobAge)
			if err != nil {
				r.logger.Error("failed to check for stuck jobs", "error", err)
				continue
			}
			if len(stuck) == 0 {
				continue
			}

			r.logger.Info("found stuck jobs", "count", len(stuck))

			for _, j := range stuck {
				if err := r.store.UpdateJobState(ctx, j.ID, StateWaiting,
					"reset after being stuck in active state"); err != nil {
					r.logger.Error("failed to reset stuck job",
						"job_id", j.ID, "error", err)
					continue
				}
				if h, ok := r.queue.lookup(j.ID); ok {
					h.markWaiting()
				}
				j.State = StateWaiting
				r.queue.requeue(ctx, j)
			}
		}
	}
}
