package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mockmate/eval-api/internal/api/shared"
	"github.com/mockmate/eval-api/internal/domain"
	"github.com/mockmate/eval-api/internal/events"
	"github.com/mockmate/eval-api/internal/idempotency"
	"github.com/mockmate/eval-api/internal/job"
	"github.com/mockmate/eval-api/internal/platform/logger"
	"github.com/mockmate/eval-api/internal/platform/metrics"
	"github.com/mockmate/eval-api/internal/redact"
	"github.com/mockmate/eval-api/internal/store"
)

// EvaluationHandlerConfig carries the timing knobs of the orchestration flow.
type EvaluationHandlerConfig struct {
	// SyncWait is how long a submission blocks hoping for a synchronous
	// result before falling back to 202.
	SyncWait time.Duration

	// PollInterval is the poll_after_ms hint returned with 202 responses.
	PollInterval time.Duration

	// ClaimTTL is how long an idempotency claim suppresses duplicate
	// submissions of the same request ID.
	ClaimTTL time.Duration
}

// EvaluationHandler orchestrates answer submissions: result-store lookup,
// idempotency claim, durable enqueue, bounded synchronous wait, and the
// store-authoritative status poll.
type EvaluationHandler struct {
	results   store.ResultStore
	queue     *job.Queue
	guard     *idempotency.Guard
	emitter   events.EventEmitter
	validator *validator.Validate
	cfg       EvaluationHandlerConfig
}

// NewEvaluationHandler creates a new EvaluationHandler.
func NewEvaluationHandler(
	results store.ResultStore,
	queue *job.Queue,
	guard *idempotency.Guard,
	emitter events.EventEmitter,
	cfg EvaluationHandlerConfig,
) *EvaluationHandler {
	return &EvaluationHandler{
		results:   results,
		queue:     queue,
		guard:     guard,
		emitter:   emitter,
		validator: validator.New(),
		cfg:       cfg,
	}
}

// Evaluate handles POST /api/evaluate requests.
//
// The flow is: validate, answer from the result store if the request ID was
// already evaluated, claim the request ID, enqueue durably, then wait up to
// SyncWait for the result. A finished job answers 200, a still-running job
// answers 202 with polling directions, and a failed job answers 200 with
// status "failed" so retrying clients can distinguish outcome from transport
// errors.
func (h *EvaluationHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req EvaluateRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	domainReq, err := h.toDomainRequest(r, &req)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, GetSafeErrorMessage(err), err)
		return
	}

	requestID := domainReq.RequestID

	// A stored result makes any retry a read. This check runs before the
	// claim so retries of finished work never see 202.
	if result, err := h.results.GetByRequestID(ctx, requestID); err == nil {
		metrics.RecordDuplicateRequest()
		log.Debug("request answered from result store", "request_id", requestID)
		shared.RespondWithJSON(w, r, http.StatusOK, resultToResponse(result))
		return
	} else if !store.IsNotFoundError(err) {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to check for existing result", err)
		return
	}

	if !h.guard.TryClaim(requestID.String(), h.cfg.ClaimTTL) {
		h.respondToDuplicate(w, r, requestID)
		return
	}

	handle, err := h.queue.Enqueue(ctx, domainReq)
	if err != nil {
		// No job exists; drop the claim so the caller's retry is not
		// locked out for the rest of the TTL.
		h.guard.Release(requestID.String())
		metrics.RecordEnqueueError()
		h.emit(r, events.EventEvaluationFailed, requestID, uuid.Nil)
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	metrics.RecordJobEnqueued()
	h.emit(r, events.EventEvaluationAccepted, requestID, handle.ID())

	outcome := handle.Wait(ctx, h.cfg.SyncWait)
	switch outcome.State {
	case job.WaitFinished:
		metrics.RecordSyncWaitOutcome("finished")
		h.respondWithStoredResult(w, r, requestID, handle.ID())

	case job.WaitFailed:
		metrics.RecordSyncWaitOutcome("failed")
		h.emit(r, events.EventEvaluationFailed, requestID, handle.ID())
		shared.RespondWithJSON(w, r, http.StatusOK, FailedResponse{
			Status:    StatusFailed,
			RequestID: requestID.String(),
			JobID:     handle.ID().String(),
			Reason:    outcome.FailureReason,
		})

	default: // WaitTimedOut
		metrics.RecordSyncWaitOutcome("timed_out")
		log.Debug("synchronous wait budget elapsed, deferring to polling",
			"request_id", requestID,
			"job_id", handle.ID())
		h.respondAccepted(w, r, requestID, handle.ID())
	}
}

// Status handles GET /api/evaluate/status/{jobID} requests.
//
// The result store is authoritative: a stored result answers "completed"
// regardless of what the queue believes, so a poll arriving between the
// result write and the job-state update still sees the finished outcome.
func (h *EvaluationHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid job ID")
		return
	}

	if result, err := h.results.GetByJobID(ctx, jobID); err == nil {
		shared.RespondWithJSON(w, r, http.StatusOK, resultToResponse(result))
		return
	} else if !store.IsNotFoundError(err) {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to look up result", err)
		return
	}

	handle, err := h.queue.GetJob(ctx, jobID)
	if err != nil {
		if store.IsNotFoundError(err) {
			shared.RespondWithError(w, r, http.StatusNotFound, "Job not found")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to look up job", err)
		return
	}

	switch handle.State() {
	case job.StateFailed:
		shared.RespondWithJSON(w, r, http.StatusOK, FailedResponse{
			Status: StatusFailed,
			JobID:  jobID.String(),
			Reason: handle.FailureReason(),
		})

	case job.StateCompleted:
		// A duplicate race can leave the result stored under the first
		// job's ID, so check by request ID before calling the write lost.
		if result, rerr := h.results.GetByRequestID(ctx, handle.RequestID()); rerr == nil {
			shared.RespondWithJSON(w, r, http.StatusOK, resultToResponse(result))
			return
		}

		// Completed without a stored result means the result write was
		// lost; reporting "processing" would strand the client forever.
		shared.RespondWithJSON(w, r, http.StatusOK, FailedResponse{
			Status: StatusFailed,
			JobID:  jobID.String(),
			Reason: "result unavailable",
		})

	default:
		shared.RespondWithJSON(w, r, http.StatusOK, StatusResponse{
			Status:      StatusProcessing,
			JobID:       jobID.String(),
			PollAfterMs: int(h.cfg.PollInterval.Milliseconds()),
		})
	}
}

// respondToDuplicate handles a submission that lost the idempotency claim:
// if this process tracks a live job for the request ID, point the caller at
// it; otherwise re-check the store in case the first attempt just finished.
func (h *EvaluationHandler) respondToDuplicate(w http.ResponseWriter, r *http.Request, requestID uuid.UUID) {
	metrics.RecordDuplicateRequest()

	if handle, ok := h.queue.GetJobByRequestID(requestID); ok {
		h.respondAccepted(w, r, requestID, handle.ID())
		return
	}

	if result, err := h.results.GetByRequestID(r.Context(), requestID); err == nil {
		shared.RespondWithJSON(w, r, http.StatusOK, resultToResponse(result))
		return
	}

	// Claimed elsewhere with nothing visible yet. Tell the caller the
	// request is in flight; there is no job ID to point at, so just the
	// poll hint.
	shared.RespondWithJSON(w, r, http.StatusAccepted, ProcessingResponse{
		Status:      StatusProcessing,
		RequestID:   requestID.String(),
		PollAfterMs: int(h.cfg.PollInterval.Milliseconds()),
	})
}

// respondWithStoredResult answers a finished synchronous wait from the
// durable store. The result row was written before the job went terminal, so
// a miss here is a genuine fault rather than a race.
func (h *EvaluationHandler) respondWithStoredResult(
	w http.ResponseWriter,
	r *http.Request,
	requestID, jobID uuid.UUID,
) {
	result, err := h.results.GetByRequestID(r.Context(), requestID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to load evaluation result", err)
		return
	}

	h.emit(r, events.EventEvaluationCompleted, requestID, jobID)
	shared.RespondWithJSON(w, r, http.StatusOK, resultToResponse(result))
}

// respondAccepted writes the 202 response with polling directions.
func (h *EvaluationHandler) respondAccepted(w http.ResponseWriter, r *http.Request, requestID, jobID uuid.UUID) {
	shared.RespondWithJSON(w, r, http.StatusAccepted, ProcessingResponse{
		Status:      StatusProcessing,
		RequestID:   requestID.String(),
		JobID:       jobID.String(),
		PollURL:     fmt.Sprintf("/api/evaluate/status/%s", jobID),
		PollAfterMs: int(h.cfg.PollInterval.Milliseconds()),
	})
}

// toDomainRequest converts the wire request into a validated domain request.
func (h *EvaluationHandler) toDomainRequest(r *http.Request, req *EvaluateRequest) (*domain.EvaluationRequest, error) {
	requestID, err := uuid.Parse(req.RequestID)
	if err != nil {
		return nil, fmt.Errorf("%w: request ID must be a UUID", domain.ErrValidation)
	}

	domainReq := &domain.EvaluationRequest{
		RequestID:  requestID,
		QuestionID: req.QuestionID,
		Payload: domain.EvaluationPayload{
			Kind: domain.PayloadKind(req.Payload.Kind),
			// Dictated answers carry emails, phone numbers, the works.
			// Scrub before the payload is marshalled into the job row.
			Text:     redact.Scrub(req.Payload.Text),
			AudioURL: req.Payload.AudioURL,
		},
		Metadata:    req.Metadata,
		SubmittedAt: time.Now().UTC(),
	}

	if userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID); ok {
		domainReq.UserID = userID
	}

	if err := domainReq.Validate(); err != nil {
		return nil, err
	}

	return domainReq, nil
}

// emit publishes a lifecycle event, logging rather than failing the request
// when a handler errors.
func (h *EvaluationHandler) emit(r *http.Request, eventType string, requestID, jobID uuid.UUID) {
	if h.emitter == nil {
		return
	}

	payload := map[string]string{"request_id": requestID.String()}
	if jobID != uuid.Nil {
		payload["job_id"] = jobID.String()
	}

	event, err := events.NewEvaluationEvent(eventType, payload)
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to build lifecycle event",
			"event_type", eventType, "error", err)
		return
	}

	if err := h.emitter.EmitEvent(r.Context(), event); err != nil {
		logger.FromContext(r.Context()).Warn("lifecycle event handler failed",
			"event_type", eventType, "error", err)
	}
}
