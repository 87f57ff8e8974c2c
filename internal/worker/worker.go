package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notifyhub/suggestion-worker/internal/domain"
	"github.com/notifyhub/suggestion-worker/internal/ledger"
	"github.com/notifyhub/suggestion-worker/internal/logging"
	"github.com/notifyhub/suggestion-worker/internal/message"
	"github.com/notifyhub/suggestion-worker/internal/notifier"
	"github.com/notifyhub/suggestion-worker/internal/queue"
	"github.com/notifyhub/suggestion-worker/internal/repository"
)

// Structured log events, one per state transition of a message.
const (
	EventReceived         = "fulfillment_received"
	EventSucceeded        = "fulfillment_succeeded"
	EventFailed           = "fulfillment_failed"
	EventDuplicateSkipped = "fulfillment_duplicate_skipped"
	EventCycleCompleted   = "cycle_completed"
)

// Side calls whose failures are swallowed and only counted.
const (
	SideCallVisibility = "visibility"
	SideCallDelete     = "delete"
	SideCallLedger     = "ledger"
)

const errorSummaryBytes = 800

// Sampler picks record ids for a category from the search index.
type Sampler interface {
	SampleByCategory(ctx context.Context, category string, count int) ([]domain.RecordID, error)
}

// Limiter paces notifier calls.
type Limiter interface {
	Wait(ctx context.Context) error
}

// MetricHooks carries the metric callback functions injected by main.
// Any nil hook is a no-op.
type MetricHooks struct {
	OnProcessed       func(latency time.Duration)
	OnFailed          func(kind domain.Kind)
	OnCycle           func(res domain.CycleResult, err error)
	OnSideCallFailure func(op string)
}

// Deps are the collaborators of a Worker. Limiter and Ledger are optional.
type Deps struct {
	Queue    queue.Queue
	Index    Sampler
	Store    repository.RecordRepository
	Notifier notifier.Notifier
	Limiter  Limiter
	Ledger   ledger.Ledger
}

// Options tune a Worker.
type Options struct {
	SuggestionCount int
	MaxPerRun       int
	Visibility      time.Duration
	RetryVisibility time.Duration
	Noun            string
}

// Worker fulfills suggestion requests from the queue. One cycle receives up
// to MaxPerRun messages and handles them strictly one after another; a
// failure never escapes the message it belongs to.
type Worker struct {
	deps      Deps
	opts      Options
	formatter message.Formatter
	hooks     MetricHooks
	logger    *zap.Logger
}

func New(deps Deps, opts Options, logger *zap.Logger, hooks MetricHooks) *Worker {
	if opts.SuggestionCount < 1 {
		opts.SuggestionCount = 1
	}
	if opts.MaxPerRun < 1 {
		opts.MaxPerRun = 1
	}
	if hooks.OnProcessed == nil {
		hooks.OnProcessed = func(time.Duration) {}
	}
	if hooks.OnFailed == nil {
		hooks.OnFailed = func(domain.Kind) {}
	}
	if hooks.OnCycle == nil {
		hooks.OnCycle = func(domain.CycleResult, error) {}
	}
	if hooks.OnSideCallFailure == nil {
		hooks.OnSideCallFailure = func(string) {}
	}
	return &Worker{
		deps:      deps,
		opts:      opts,
		formatter: message.Formatter{Noun: opts.Noun},
		hooks:     hooks,
		logger:    logger,
	}
}

// RunCycle performs one polling cycle. The returned error is non-nil only when
// receiving from the queue failed; the result still carries the counts
// collected up to that point. Per-message failures are counted, not returned.
func (w *Worker) RunCycle(ctx context.Context) (domain.CycleResult, error) {
	start := time.Now()

	id := logging.InvocationID(ctx)
	if id == "" {
		id = uuid.NewString()
		ctx = logging.WithInvocationID(ctx, id)
	}
	res := domain.CycleResult{InvocationID: id}

	var cycleErr error
	for i := 0; i < w.opts.MaxPerRun; i++ {
		if ctx.Err() != nil {
			break
		}
		msg, err := w.deps.Queue.ReceiveOne(ctx, w.opts.Visibility)
		if err != nil {
			cycleErr = fmt.Errorf("receive message: %w", err)
			break
		}
		if msg == nil {
			break
		}

		res.Received++
		// A received message runs to completion under its per-call
		// timeouts; cancellation only stops the loop between messages.
		if w.handle(context.WithoutCancel(ctx), msg) {
			res.Processed++
		} else {
			res.Errors++
		}
	}

	res.Duration = time.Since(start)
	res.FinishedAt = time.Now().UTC()

	fields := []zap.Field{
		zap.String("event", EventCycleCompleted),
		zap.String("invocation_id", id),
		zap.Int("received", res.Received),
		zap.Int("processed", res.Processed),
		zap.Int("errors", res.Errors),
		zap.Duration("duration", res.Duration),
	}
	if cycleErr != nil {
		w.logger.Error("cycle ended on receive failure", append(fields, zap.Error(cycleErr))...)
	} else {
		w.logger.Info("cycle completed", fields...)
	}

	w.hooks.OnCycle(res, cycleErr)
	return res, cycleErr
}

// handle runs one message through the pipeline and reports whether it counts
// as processed.
func (w *Worker) handle(ctx context.Context, msg *domain.InFlightMessage) (processed bool) {
	start := time.Now()
	log := w.logger.With(
		zap.String("invocation_id", logging.InvocationID(ctx)),
		zap.String("message_id", msg.MessageID),
		zap.Int("receive_count", msg.ReceiveCount),
	)

	var req domain.SuggestionRequest
	defer func() {
		if r := recover(); r != nil {
			err := &domain.FulfillmentError{Kind: domain.KindUnknown, Op: "fulfill", Err: fmt.Errorf("panic: %v", r)}
			w.fail(ctx, msg, req, err, log)
			processed = false
		}
	}()

	req, err := domain.DecodeSuggestionRequest([]byte(msg.Body))
	log.Info("suggestion request received",
		zap.String("event", EventReceived),
		zap.String("session_id", req.SessionID),
		zap.String("request_id", req.RequestID),
		zap.Bool("has_destination", req.Destination != ""),
		zap.Bool("has_category", req.Category != ""),
	)
	if err != nil {
		w.fail(ctx, msg, req, domain.ValidationError("decode body", err), log)
		return false
	}
	if err := req.Validate(); err != nil {
		w.fail(ctx, msg, req, domain.ValidationError("validate request", err), log)
		return false
	}

	log = log.With(
		zap.String("session_id", req.SessionID),
		zap.String("request_id", req.RequestID),
	)

	if w.alreadyDelivered(ctx, msg, log) {
		w.delete(ctx, msg, log)
		log.Info("notification already sent for this message, skipping",
			zap.String("event", EventDuplicateSkipped),
		)
		return true
	}

	out, err := w.fulfill(ctx, req)
	if err != nil {
		w.fail(ctx, msg, req, err, log)
		return false
	}

	w.markDelivered(ctx, msg, log)
	w.delete(ctx, msg, log)

	latency := time.Since(start)
	w.hooks.OnProcessed(latency)
	log.Info("suggestions sent",
		zap.String("event", EventSucceeded),
		zap.String("category", req.Category),
		zap.String("to", out.To),
		zap.Duration("latency", latency),
	)
	return true
}

// fulfill samples, enriches, formats and sends. Every returned error is a
// *domain.FulfillmentError.
func (w *Worker) fulfill(ctx context.Context, req domain.SuggestionRequest) (domain.Message, error) {
	ids, err := w.deps.Index.SampleByCategory(ctx, req.Category, w.opts.SuggestionCount)
	if err != nil {
		return domain.Message{}, classify(err, domain.IndexTransportError, "sample category")
	}
	if len(ids) == 0 {
		return domain.Message{}, domain.NoMatchError(req.Category)
	}

	found, err := w.deps.Store.BatchGet(ctx, ids)
	if err != nil {
		return domain.Message{}, classify(err, domain.StoreTransportError, "batch get")
	}

	out := w.formatter.Format(req, Join(ids, found))

	if w.deps.Limiter != nil {
		if err := w.deps.Limiter.Wait(ctx); err != nil {
			return domain.Message{}, domain.DeliveryError("wait for send slot", err)
		}
	}
	if err := w.deps.Notifier.Send(ctx, out); err != nil {
		return domain.Message{}, classify(err, domain.DeliveryError, "send")
	}
	return out, nil
}

// classify keeps a classification made by a client and otherwise attributes
// the failure to the stage that returned it.
func classify(err error, wrap func(op string, err error) error, op string) error {
	if domain.KindOf(err) != domain.KindUnknown {
		return err
	}
	return wrap(op, err)
}

func (w *Worker) fail(ctx context.Context, msg *domain.InFlightMessage, req domain.SuggestionRequest, err error, log *zap.Logger) {
	kind := domain.KindOf(err)

	sideCtx := context.WithoutCancel(ctx)
	if verr := w.deps.Queue.ExtendVisibility(sideCtx, msg.ReceiptHandle, w.opts.RetryVisibility); verr != nil {
		w.hooks.OnSideCallFailure(SideCallVisibility)
		log.Warn("could not extend message visibility", zap.Error(verr))
	}

	w.hooks.OnFailed(kind)
	log.Error("suggestion request failed",
		zap.String("event", EventFailed),
		zap.String("kind", string(kind)),
		zap.Bool("retryable", kind.Retryable()),
		zap.String("session_id", req.SessionID),
		zap.String("request_id", req.RequestID),
		zap.String("error", logging.Summary(err, errorSummaryBytes)),
	)
}

// delete removes a message whose notification went out. Failure is logged
// only: the send cannot be undone.
func (w *Worker) delete(ctx context.Context, msg *domain.InFlightMessage, log *zap.Logger) {
	err := w.deps.Queue.Delete(context.WithoutCancel(ctx), msg.ReceiptHandle)
	switch {
	case err == nil:
	case errors.Is(err, queue.ErrReceiptExpired):
		log.Warn("message already deleted or receipt expired", zap.Error(err))
	default:
		w.hooks.OnSideCallFailure(SideCallDelete)
		log.Error("could not delete message after send", zap.Error(err))
	}
}

func (w *Worker) alreadyDelivered(ctx context.Context, msg *domain.InFlightMessage, log *zap.Logger) bool {
	if w.deps.Ledger == nil || msg.MessageID == "" {
		return false
	}
	delivered, err := w.deps.Ledger.Delivered(ctx, msg.MessageID)
	if err != nil {
		w.hooks.OnSideCallFailure(SideCallLedger)
		log.Warn("delivery ledger lookup failed, sending anyway", zap.Error(err))
		return false
	}
	return delivered
}

func (w *Worker) markDelivered(ctx context.Context, msg *domain.InFlightMessage, log *zap.Logger) {
	if w.deps.Ledger == nil || msg.MessageID == "" {
		return
	}
	if err := w.deps.Ledger.MarkDelivered(context.WithoutCancel(ctx), msg.MessageID); err != nil {
		w.hooks.OnSideCallFailure(SideCallLedger)
		log.Warn("could not record delivery", zap.Error(err))
	}
}
