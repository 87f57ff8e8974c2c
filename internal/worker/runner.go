package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/notifyhub/suggestion-worker/internal/domain"
)

// ErrCycleInProgress is returned by Trigger while another cycle runs.
var ErrCycleInProgress = errors.New("a cycle is already in progress")

// Cycler is satisfied by *Worker.
type Cycler interface {
	RunCycle(ctx context.Context) (domain.CycleResult, error)
}

// Runner drives a Cycler on a cron schedule and accepts manual triggers.
// At most one cycle runs at a time across both paths.
type Runner struct {
	cycler Cycler
	cron   *cron.Cron
	logger *zap.Logger

	running sync.Mutex

	lastMu  sync.RWMutex
	last    *domain.CycleResult
	lastErr error

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRunner validates schedule (standard cron or "@every 1m" descriptors) and
// prepares the runner. Nothing runs until Start.
func NewRunner(c Cycler, schedule string, logger *zap.Logger) (*Runner, error) {
	cl := cronLogger{logger.Sugar()}
	r := &Runner{
		cycler: c,
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cl)), cron.WithLogger(cl)),
		logger: logger,
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())

	if _, err := r.cron.AddFunc(schedule, r.scheduled); err != nil {
		return nil, fmt.Errorf("parse poll schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start launches the scheduler in its own goroutine.
func (r *Runner) Start() {
	r.logger.Info("runner started", zap.Int("entries", len(r.cron.Entries())))
	r.cron.Start()
}

// Stop prevents new scheduled cycles and waits for a running one to finish.
// If ctx expires first the running cycle is cancelled: the message in flight
// completes under its own call timeouts and no further message is received.
func (r *Runner) Stop(ctx context.Context) error {
	done := r.cron.Stop()
	defer r.cancel()

	select {
	case <-done.Done():
		r.logger.Info("runner stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop runner: %w", ctx.Err())
	}
}

// Trigger runs one cycle now under ctx, or returns ErrCycleInProgress.
func (r *Runner) Trigger(ctx context.Context) (domain.CycleResult, error) {
	if !r.running.TryLock() {
		return domain.CycleResult{}, ErrCycleInProgress
	}
	defer r.running.Unlock()
	return r.run(ctx)
}

// LastCycle is the outcome of the most recent cycle.
type LastCycle struct {
	Result domain.CycleResult
	Err    error
}

// Last returns the most recent cycle; ok is false before the first one completes.
func (r *Runner) Last() (last LastCycle, ok bool) {
	r.lastMu.RLock()
	defer r.lastMu.RUnlock()
	if r.last == nil {
		return LastCycle{}, false
	}
	return LastCycle{Result: *r.last, Err: r.lastErr}, true
}

func (r *Runner) scheduled() {
	if !r.running.TryLock() {
		r.logger.Debug("skipping scheduled cycle, manual cycle in progress")
		return
	}
	defer r.running.Unlock()
	_, _ = r.run(r.ctx)
}

func (r *Runner) run(ctx context.Context) (domain.CycleResult, error) {
	res, err := r.cycler.RunCycle(ctx)

	r.lastMu.Lock()
	r.last = &res
	r.lastErr = err
	r.lastMu.Unlock()

	return res, err
}

// cronLogger routes cron's own logging into zap. Scheduler chatter goes to debug.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
