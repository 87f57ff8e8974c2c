package handler

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/notifyhub/suggestion-worker/internal/api/middleware"
	"github.com/notifyhub/suggestion-worker/internal/domain"
)

// Enqueuer accepts a raw request body and returns the queue message id.
// *queue.Memory satisfies it; SQS is fed by the front end instead.
type Enqueuer interface {
	Send(body string) string
}

// EnqueueResponse reports the id the request was queued under.
type EnqueueResponse struct {
	MessageID string `json:"messageId"`
}

// RequestHandler feeds the in-process queue on local runs.
type RequestHandler struct {
	queue  Enqueuer
	logger *zap.Logger
}

func NewRequestHandler(queue Enqueuer, logger *zap.Logger) *RequestHandler {
	return &RequestHandler{queue: queue, logger: logger}
}

// Enqueue handles POST /api/v1/requests
//
// The body is queued verbatim, so it must use the same keys the front end
// writes to SQS.
//
// @Summary     Queue a suggestion request (in-memory queue only)
// @Tags        requests
// @Accept      json
// @Produce     json
// @Success     202  {object}  EnqueueResponse
// @Failure     400  {object}  map[string]string
// @Failure     422  {object}  map[string]string
// @Router      /api/v1/requests [post]
func (h *RequestHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not read body")
		return
	}

	req, err := domain.DecodeSuggestionRequest(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		mapError(w, err)
		return
	}

	id := h.queue.Send(string(body))
	h.logger.Info("suggestion request queued",
		zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
		zap.String("message_id", id),
		zap.String("category", req.Category),
	)
	respondJSON(w, http.StatusAccepted, EnqueueResponse{MessageID: id})
}
