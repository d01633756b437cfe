package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mockmate/eval-api/internal/api/shared"
	"github.com/mockmate/eval-api/internal/events"
	"github.com/mockmate/eval-api/internal/platform/logger"
	"github.com/mockmate/eval-api/internal/platform/metrics"
	"github.com/mockmate/eval-api/internal/ratelimit"
	"github.com/mockmate/eval-api/internal/store"
)

// ProgressHandler records interview-prep checklist progress. Writes are
// throttled per user and action by a process-local limiter; progress ticks
// are cosmetic, so a slightly generous effective limit across instances is
// acceptable.
type ProgressHandler struct {
	progress  store.ProgressStore
	limiter   *ratelimit.Limiter
	emitter   events.EventEmitter
	validator *validator.Validate
}

// NewProgressHandler creates a new ProgressHandler. The emitter may be nil.
func NewProgressHandler(
	progress store.ProgressStore,
	limiter *ratelimit.Limiter,
	emitter events.EventEmitter,
) *ProgressHandler {
	return &ProgressHandler{
		progress:  progress,
		limiter:   limiter,
		emitter:   emitter,
		validator: validator.New(),
	}
}

// RecordProgress handles POST /api/progress/checklist requests.
func (h *ProgressHandler) RecordProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return
	}

	var req ChecklistProgressRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	// One window per user per checklist action.
	subject := fmt.Sprintf("%s:%s", userID, "checklist_update")
	decision := h.limiter.Allow(r.Context(), subject)
	if !decision.Allowed {
		metrics.RecordRateLimited(h.limiter.Name())
		h.emitRateLimited(r, subject)

		retryAfter := int(decision.RetryAfter.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		shared.RespondWithError(w, r, http.StatusTooManyRequests, "Rate limit exceeded")
		return
	}

	err := h.progress.UpsertProgress(r.Context(), &store.ChecklistProgress{
		UserID:      userID,
		ChecklistID: req.ChecklistID,
		ItemID:      req.ItemID,
		Done:        req.Done,
	})
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to record progress", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetProgress handles GET /api/progress/checklist/{checklistID} requests.
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return
	}

	checklistID := chi.URLParam(r, "checklistID")
	if checklistID == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Checklist ID is required")
		return
	}

	items, err := h.progress.GetChecklistProgress(r.Context(), userID, checklistID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to load progress", err)
		return
	}

	type itemDTO struct {
		ItemID string `json:"item_id"`
		Done   bool   `json:"done"`
	}

	response := struct {
		ChecklistID string    `json:"checklist_id"`
		Items       []itemDTO `json:"items"`
	}{ChecklistID: checklistID, Items: make([]itemDTO, 0, len(items))}

	for _, item := range items {
		response.Items = append(response.Items, itemDTO{ItemID: item.ItemID, Done: item.Done})
	}

	shared.RespondWithJSON(w, r, http.StatusOK, response)
}

// emitRateLimited publishes a rate-limited lifecycle event for a throttled
// progress write, logging rather than failing the request on handler errors.
func (h *ProgressHandler) emitRateLimited(r *http.Request, subject string) {
	if h.emitter == nil {
		return
	}

	event, err := events.NewEvaluationEvent(events.EventRequestRateLimited, map[string]string{
		"limiter": h.limiter.Name(),
		"subject": subject,
	})
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to build rate-limited event", "error", err)
		return
	}

	if err := h.emitter.EmitEvent(r.Context(), event); err != nil {
		logger.FromContext(r.Context()).Warn("rate-limited event handler failed", "error", err)
	}
}
