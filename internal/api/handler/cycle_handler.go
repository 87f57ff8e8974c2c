package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/suggestion-worker/internal/domain"
	"github.com/notifyhub/suggestion-worker/internal/worker"
)

// CycleRunner is satisfied by *worker.Runner.
type CycleRunner interface {
	Trigger(ctx context.Context) (domain.CycleResult, error)
	Last() (worker.LastCycle, bool)
}

// CycleResponse is the JSON view of one polling cycle.
type CycleResponse struct {
	InvocationID string    `json:"invocationId"`
	Received     int       `json:"received"`
	Processed    int       `json:"processed"`
	Errors       int       `json:"errors"`
	DurationMS   int64     `json:"durationMs"`
	FinishedAt   time.Time `json:"finishedAt"`
	Error        string    `json:"error,omitempty"`
}

func newCycleResponse(res domain.CycleResult, err error) CycleResponse {
	out := CycleResponse{
		InvocationID: res.InvocationID,
		Received:     res.Received,
		Processed:    res.Processed,
		Errors:       res.Errors,
		DurationMS:   res.Duration.Milliseconds(),
		FinishedAt:   res.FinishedAt,
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

// CycleHandler exposes manual cycle triggering and the last cycle's outcome.
type CycleHandler struct {
	runner CycleRunner
	logger *zap.Logger
}

func NewCycleHandler(runner CycleRunner, logger *zap.Logger) *CycleHandler {
	return &CycleHandler{runner: runner, logger: logger}
}

// Trigger handles POST /api/v1/cycles
//
// @Summary  Run one polling cycle now
// @Tags     cycles
// @Produce  json
// @Success  200  {object}  CycleResponse
// @Failure  409  {object}  map[string]string
// @Failure  502  {object}  CycleResponse
// @Router   /api/v1/cycles [post]
func (h *CycleHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	// The cycle finishes even if the caller disconnects; the invocation id
	// set by the correlation middleware is kept.
	res, err := h.runner.Trigger(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, worker.ErrCycleInProgress):
		mapError(w, err)
	case err != nil:
		h.logger.Warn("manual cycle failed", zap.Error(err))
		respondJSON(w, http.StatusBadGateway, newCycleResponse(res, err))
	default:
		respondJSON(w, http.StatusOK, newCycleResponse(res, nil))
	}
}

// Last handles GET /api/v1/cycles/last
//
// @Summary  Outcome of the most recent cycle
// @Tags     cycles
// @Produce  json
// @Success  200  {object}  CycleResponse
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/cycles/last [get]
func (h *CycleHandler) Last(w http.ResponseWriter, r *http.Request) {
	last, ok := h.runner.Last()
	if !ok {
		respondError(w, http.StatusNotFound, "no cycle has completed yet")
		return
	}
	respondJSON(w, http.StatusOK, newCycleResponse(last.Result, last.Err))
}
