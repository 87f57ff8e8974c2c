// Package bootstrap builds the worker's clients from configuration. Both
// binaries construct their dependencies here exactly once at startup.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/notifyhub/suggestion-worker/internal/config"
	"github.com/notifyhub/suggestion-worker/internal/db"
	"github.com/notifyhub/suggestion-worker/internal/ledger"
	"github.com/notifyhub/suggestion-worker/internal/notifier"
	"github.com/notifyhub/suggestion-worker/internal/queue"
	"github.com/notifyhub/suggestion-worker/internal/repository"
	"github.com/notifyhub/suggestion-worker/internal/search"
)

// MemoryMaxReceives is the redrive threshold of the in-memory queue backend.
const MemoryMaxReceives = 5

// UnsignedService disables SigV4 signing for a local OpenSearch.
const UnsignedService = "none"

// Store is a record store that can also be scanned for seeding.
type Store interface {
	repository.RecordRepository
	repository.CategoryScanner
}

// NewQueue returns the SQS client, or for QUEUE_BACKEND=memory an in-process
// queue that only the ops server's POST /api/v1/requests can feed.
func NewQueue(cfg *config.Config, awsCfg aws.Config) queue.Queue {
	if cfg.QueueBackend == config.QueueBackendMemory {
		return queue.NewMemory(MemoryMaxReceives)
	}
	return queue.NewSQS(sqs.NewFromConfig(awsCfg), cfg.QueueURL, cfg.ReceiveWait, cfg.QueueTimeout)
}

func NewSearch(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) *search.Client {
	var creds aws.CredentialsProvider
	if !strings.EqualFold(cfg.SigningService, UnsignedService) {
		creds = awsCfg.Credentials
	}
	return search.New(search.Config{
		Endpoint:        cfg.OpenSearchEndpoint,
		Index:           cfg.IndexName,
		IDField:         cfg.DDBPKName,
		CategoryField:   cfg.CategoryAttribute,
		Region:          cfg.Region,
		SigningService:  cfg.SigningService,
		ConnectTimeout:  cfg.IndexConnectTimeout,
		Timeout:         cfg.IndexTimeout,
		BreakerFailures: uint32(cfg.BreakerFailures),
		BreakerCooldown: cfg.BreakerCooldown,
	}, creds, logger)
}

// NewStore opens the configured record store. The returned func releases it.
func NewStore(ctx context.Context, cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) (Store, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("database migrations applied")
		return repository.NewPgRecordRepository(pool, cfg.DDBPKName, cfg.StoreTimeout), pool.Close, nil
	default:
		repo := repository.NewDynamoRecordRepository(dynamodb.NewFromConfig(awsCfg), repository.DynamoOptions{
			Table:             cfg.DDBTable,
			KeyName:           cfg.DDBPKName,
			CategoryAttribute: cfg.CategoryAttribute,
			Timeout:           cfg.StoreTimeout,
		}, logger)
		return repo, func() {}, nil
	}
}

func NewNotifier(cfg *config.Config, awsCfg aws.Config) (notifier.Notifier, error) {
	switch cfg.Notifier {
	case config.NotifierSES:
		return notifier.NewSESNotifier(sesv2.NewFromConfig(awsCfg), cfg.SESSender, cfg.NotifyTimeout), nil
	case config.NotifierSNS:
		return notifier.NewSNSNotifier(sns.NewFromConfig(awsCfg), cfg.NotifyTimeout), nil
	case config.NotifierWebhook:
		return notifier.NewWebhookNotifier(cfg.NotifyWebhookURL, cfg.SESSender, cfg.NotifyTimeout), nil
	default:
		return nil, fmt.Errorf("%w: unknown notifier %q", config.ErrInvalidConfig, cfg.Notifier)
	}
}

// NewLedger connects to Redis when REDIS_ADDR is set. It returns a nil Ledger
// when the ledger is disabled. An unreachable Redis at startup is logged and
// the worker runs without a ledger.
func NewLedger(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ledger.Ledger, func()) {
	if !cfg.LedgerEnabled() {
		return nil, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	l := ledger.NewRedisLedger(client, cfg.LedgerTTL)
	if err := l.Ping(ctx); err != nil {
		logger.Warn("delivery ledger unavailable, continuing without it",
			zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = client.Close()
		return nil, func() {}
	}
	return l, func() { _ = client.Close() }
}
