package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/notifyhub/suggestion-worker/internal/api"
	"github.com/notifyhub/suggestion-worker/internal/api/handler"
	"github.com/notifyhub/suggestion-worker/internal/awsclient"
	"github.com/notifyhub/suggestion-worker/internal/bootstrap"
	"github.com/notifyhub/suggestion-worker/internal/config"
	"github.com/notifyhub/suggestion-worker/internal/logging"
	"github.com/notifyhub/suggestion-worker/internal/metrics"
	"github.com/notifyhub/suggestion-worker/internal/ratelimiter"
	"github.com/notifyhub/suggestion-worker/internal/worker"
)

func main() {
	once := flag.Bool("once", false, "run a single cycle, print its counts and exit")
	flag.Parse()

	_ = godotenv.Load()

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		// The level is not known yet; log with a production default.
		fallback, _ := zap.NewProduction()
		fallback.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	// ---- clients, built once ----
	ctx := context.Background()
	awsCfg, err := awsclient.Load(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to load AWS config", zap.Error(err))
	}

	store, closeStore, err := bootstrap.NewStore(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Fatal("failed to open record store", zap.Error(err))
	}
	defer closeStore()

	notify, err := bootstrap.NewNotifier(cfg, awsCfg)
	if err != nil {
		logger.Fatal("failed to build notifier", zap.Error(err))
	}

	deliveries, closeLedger := bootstrap.NewLedger(ctx, cfg, logger)
	defer closeLedger()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	q := bootstrap.NewQueue(cfg, awsCfg)
	// The in-memory queue is only fed through POST /api/v1/requests.
	enqueuer, _ := q.(handler.Enqueuer)
	if enqueuer != nil && *once {
		logger.Fatal("-once cannot be used with QUEUE_BACKEND=memory: nothing could enqueue a request")
	}

	deps := worker.Deps{
		Queue:    q,
		Index:    bootstrap.NewSearch(cfg, awsCfg, logger),
		Store:    store,
		Notifier: notify,
		Limiter:  ratelimiter.New(cfg.SendRatePerSec),
		Ledger:   deliveries,
	}

	w := worker.New(deps, worker.Options{
		SuggestionCount: cfg.SuggestionCount,
		MaxPerRun:       cfg.MaxPerRun,
		Visibility:      cfg.VisibilityTimeout,
		RetryVisibility: cfg.RetryVisibility,
		Noun:            cfg.SuggestionNoun,
	}, logger, m.WorkerHooks())

	if *once {
		code := runOnce(ctx, w, logger)
		closeLedger()
		closeStore()
		_ = logger.Sync()
		os.Exit(code)
	}

	// ---- scheduled cycles ----
	runner, err := worker.NewRunner(w, cfg.PollSchedule, logger)
	if err != nil {
		logger.Fatal("invalid poll schedule", zap.Error(err))
	}
	runner.Start()

	// ---- HTTP server ----
	checks := map[string]handler.Check{}
	if p, ok := deliveries.(interface{ Ping(context.Context) error }); ok {
		checks["ledger"] = p.Ping
	}
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      api.NewRouter(runner, enqueuer, checks, reg, logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("ops server starting", zap.String("addr", srv.Addr), zap.Bool("local_enqueue", enqueuer != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()

	// 1. Stop accepting new HTTP requests (and manual cycles).
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Stop scheduling and let an in-flight cycle finish.
	if err := runner.Stop(shutdownCtx); err != nil {
		logger.Error("runner shutdown error", zap.Error(err))
	}

	logger.Info("worker stopped cleanly")
}

// runOnce runs a single cycle and prints {"processed":n,"errors":m}. The exit
// code is non-zero only when the queue could not be read.
func runOnce(ctx context.Context, w *worker.Worker, logger *zap.Logger) int {
	res, err := w.RunCycle(ctx)
	_ = json.NewEncoder(os.Stdout).Encode(map[string]int{
		"processed": res.Processed,
		"errors":    res.Errors,
	})
	if err != nil {
		logger.Error("cycle failed", zap.Error(err))
		return 1
	}
	return 0
}
