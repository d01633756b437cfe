package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/mockmate/eval-api/internal/api"
	apimiddleware "github.com/mockmate/eval-api/internal/api/middleware"
	"github.com/mockmate/eval-api/internal/platform/metrics"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(apimiddleware.TraceMiddleware)

	evaluationHandler := api.NewEvaluationHandler(
		app.resultStore,
		app.queue,
		app.guard,
		app.eventEmitter,
		api.EvaluationHandlerConfig{
			SyncWait:     time.Duration(app.config.Eval.SyncWaitMs) * time.Millisecond,
			PollInterval: time.Duration(app.config.Eval.PollIntervalMs) * time.Millisecond,
			ClaimTTL:     time.Duration(app.config.Eval.ClaimTTLMs) * time.Millisecond,
		},
	)
	progressHandler := api.NewProgressHandler(app.progressStore, app.actionLimiter, app.eventEmitter)

	authMiddleware := apimiddleware.NewAuthMiddleware(app.jwtService, app.apiKeyVerifier)
	rateLimitMiddleware := apimiddleware.NewRateLimitMiddleware(app.requestLimiter, app.eventEmitter)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Use(rateLimitMiddleware.Limit)

			r.Post("/evaluate", evaluationHandler.Evaluate)
			r.Get("/evaluate/status/{jobID}", evaluationHandler.Status)

			r.Post("/progress/checklist", progressHandler.RecordProgress)
			r.Get("/progress/checklist/{checklistID}", progressHandler.GetProgress)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}
