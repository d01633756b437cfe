package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/mockmate/eval-api/internal/config"
	"github.com/mockmate/eval-api/internal/events"
	"github.com/mockmate/eval-api/internal/evaluation"
	"github.com/mockmate/eval-api/internal/idempotency"
	"github.com/mockmate/eval-api/internal/job"
	"github.com/mockmate/eval-api/internal/platform/gemini"
	"github.com/mockmate/eval-api/internal/platform/postgres"
	"github.com/mockmate/eval-api/internal/ratelimit"
	"github.com/mockmate/eval-api/internal/service/auth"
	"github.com/mockmate/eval-api/internal/store"
)

// counterGCInterval is how often expired rate-limit counter rows are swept.
const counterGCInterval = 10 * time.Minute

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	// Stores
	resultStore   store.ResultStore
	jobStore      job.Store
	progressStore store.ProgressStore
	counterStore  *postgres.CounterStore

	// Services
	jwtService     auth.JWTService
	apiKeyVerifier auth.APIKeyVerifier
	guard          *idempotency.Guard
	requestLimiter *ratelimit.Limiter
	actionLimiter  *ratelimit.Limiter
	eventEmitter   events.EventEmitter

	// Job handling
	queue  *job.Queue
	runner *job.Runner

	// Background maintenance
	gcCancel context.CancelFunc
}

// newApplication creates an application instance with all dependencies
// initialized and the worker pool started.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	if len(cfg.Auth.APIKeyHashes) > 0 {
		app.apiKeyVerifier = auth.NewBcryptAPIKeyVerifier(cfg.Auth.APIKeyHashes)
		logger.Info("API key authentication enabled", "key_count", len(cfg.Auth.APIKeyHashes))
	}

	app.resultStore = postgres.NewResultStore(db)
	app.jobStore = postgres.NewJobStore(db)
	app.progressStore = postgres.NewProgressStore(db)
	app.counterStore = postgres.NewCounterStore(db)

	app.guard = idempotency.NewGuard()

	// Credential-scoped limiter counts on the shared database so every
	// instance sees the same window; the per-user action limiter is
	// process-local on purpose.
	app.requestLimiter = ratelimit.NewLimiter(
		"credential",
		app.counterStore,
		cfg.RateLimit.RequestsPerMinute,
		time.Minute,
		logger.With("component", "rate_limiter"),
	)
	app.actionLimiter = ratelimit.NewLimiter(
		"user_action",
		ratelimit.NewMemoryCounterStore(),
		cfg.RateLimit.ActionLimit,
		time.Duration(cfg.RateLimit.ActionWindowSec)*time.Second,
		logger.With("component", "rate_limiter"),
	)

	app.eventEmitter = setupEventEmitter(logger)

	executor, err := setupExecutor(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	app.queue = job.NewQueue(app.jobStore, cfg.Eval.QueueSize, logger.With("component", "job_queue"))
	app.runner = job.NewRunner(app.queue, app.jobStore, app.resultStore, executor, job.RunnerConfig{
		WorkerCount: cfg.Eval.WorkerCount,
		StuckJobAge: time.Duration(cfg.Eval.StuckJobMinutes) * time.Minute,
	}, logger.With("component", "job_runner"))

	if err := app.runner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start job runner: %w", err)
	}

	app.startCounterGC()

	logger.Info("Application initialized successfully")
	return app, nil
}

// setupExecutor wires the Gemini-backed evaluator and transcriber into the
// evaluation service consumed by the worker pool.
func setupExecutor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (job.Executor, error) {
	evaluator, err := gemini.NewEvaluator(ctx, logger.With("component", "gemini_evaluator"), cfg.Eval)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize evaluator: %w", err)
	}

	transcriber := gemini.NewTranscriber(logger.With("component", "gemini_transcriber"), evaluator)

	service, err := evaluation.NewService(evaluator, transcriber, logger.With("component", "evaluation_service"))
	if err != nil {
		return nil, fmt.Errorf("failed to create evaluation service: %w", err)
	}

	return service, nil
}

// setupEventEmitter builds the in-memory emitter with the default logging
// sink registered.
func setupEventEmitter(logger *slog.Logger) events.EventEmitter {
	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(events.NewLoggingHandler(logger))
	return emitter
}

// startCounterGC sweeps expired rate-limit counter rows on a timer. Window
// starts are baked into the keys, so this is pure garbage collection.
func (app *application) startCounterGC() {
	ctx, cancel := context.WithCancel(context.Background())
	app.gcCancel = cancel

	go func() {
		ticker := time.NewTicker(counterGCInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := app.counterStore.DeleteExpired(ctx); err != nil {
					app.logger.Error("rate limit counter GC failed", "error", err)
				}
				app.guard.Cleanup()
			}
		}
	}()
}

// Run starts the application server, handling lifecycle and cleanup.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.gcCancel != nil {
		app.gcCancel()
	}

	// Stop workers before closing the queue so nothing requeues into a
	// closed channel.
	if app.runner != nil {
		app.runner.Stop()
	}
	if app.queue != nil {
		app.queue.Close()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
