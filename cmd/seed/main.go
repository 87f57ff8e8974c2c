package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/notifyhub/suggestion-worker/internal/awsclient"
	"github.com/notifyhub/suggestion-worker/internal/bootstrap"
	"github.com/notifyhub/suggestion-worker/internal/config"
	"github.com/notifyhub/suggestion-worker/internal/logging"
	"github.com/notifyhub/suggestion-worker/internal/search"
)

// seed rebuilds the category index from the record store. It is run by hand
// after the store is (re)loaded; the worker never calls it.
func main() {
	timeout := flag.Duration("timeout", 30*time.Minute, "abort the run after this long")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadIndexer()
	if err != nil {
		fallback, _ := zap.NewProduction()
		fallback.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	awsCfg, err := awsclient.Load(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to load AWS config", zap.Error(err))
	}

	store, closeStore, err := bootstrap.NewStore(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Fatal("failed to open record store", zap.Error(err))
	}
	defer closeStore()

	index := bootstrap.NewSearch(cfg, awsCfg, logger)
	seeder := search.NewSeeder(store, index, cfg.DDBPKName, cfg.CategoryAttribute, logger)

	res, err := seeder.Run(ctx)
	_ = json.NewEncoder(os.Stdout).Encode(res)
	if err != nil {
		logger.Error("seeding failed", zap.Error(err))
		closeStore()
		os.Exit(1)
	}
}
