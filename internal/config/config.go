package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidConfig wraps every startup configuration problem.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	QueueBackendSQS    = "sqs"
	QueueBackendMemory = "memory"

	StoreBackendDynamo   = "dynamodb"
	StoreBackendPostgres = "postgres"

	NotifierSES     = "ses"
	NotifierSNS     = "sns"
	NotifierWebhook = "webhook"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	Region          string
	AWSEndpointURL  string
	AWSAccessKeyID  string
	AWSSecretKey    string
	AWSSessionToken string

	// Queue
	QueueBackend      string
	QueueURL          string
	VisibilityTimeout time.Duration
	RetryVisibility   time.Duration
	ReceiveWait       time.Duration
	QueueTimeout      time.Duration

	// Record store
	StoreBackend      string
	DDBTable          string
	DDBPKName         string
	CategoryAttribute string
	DatabaseURL       string
	DBMaxConns        int32
	DBMinConns        int32
	MigrationsPath    string
	StoreTimeout      time.Duration

	// Search index
	OpenSearchEndpoint  string
	IndexName           string
	SigningService      string
	IndexConnectTimeout time.Duration
	IndexTimeout        time.Duration
	BreakerFailures     int
	BreakerCooldown     time.Duration

	// Fulfillment
	SuggestionCount int
	MaxPerRun       int
	SuggestionNoun  string

	// Notifier
	Notifier         string
	SESSender        string
	NotifyWebhookURL string
	NotifyTimeout    time.Duration
	SendRatePerSec   float64

	// Delivery ledger (optional)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LedgerTTL     time.Duration

	// Process
	PollSchedule    string
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
}

// Load reads the environment for the worker. Every missing required variable
// and every unparsable value is reported in one error wrapping ErrInvalidConfig.
func Load() (*Config, error) {
	return load(true)
}

// LoadIndexer reads the environment for the seed command, which needs the
// record store and the index but neither the queue nor a notifier.
func LoadIndexer() (*Config, error) {
	return load(false)
}

func load(worker bool) (*Config, error) {
	l := &loader{}

	cfg := &Config{
		Region:          l.str("REGION", "us-east-1"),
		AWSEndpointURL:  l.str("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID:  l.str("AWS_STATIC_ACCESS_KEY_ID", ""),
		AWSSecretKey:    l.str("AWS_STATIC_SECRET_ACCESS_KEY", ""),
		AWSSessionToken: l.str("AWS_STATIC_SESSION_TOKEN", ""),

		QueueBackend:      strings.ToLower(l.str("QUEUE_BACKEND", QueueBackendSQS)),
		QueueURL:          l.str("QUEUE_URL", ""),
		VisibilityTimeout: l.duration("VISIBILITY_TIMEOUT", 45*time.Second),
		RetryVisibility:   l.duration("RETRY_VISIBILITY_TIMEOUT", 45*time.Second),
		ReceiveWait:       l.duration("RECEIVE_WAIT_TIME", 0),
		QueueTimeout:      l.duration("QUEUE_TIMEOUT", 10*time.Second),

		StoreBackend:      strings.ToLower(l.str("STORE_BACKEND", StoreBackendDynamo)),
		DDBTable:          l.str("DDB_TABLE", ""),
		DDBPKName:         l.str("DDB_PK_NAME", "business_id"),
		CategoryAttribute: l.str("CATEGORY_ATTRIBUTE", "CuisineSet"),
		DatabaseURL:       l.str("DATABASE_URL", ""),
		DBMaxConns:        int32(l.integer("DB_MAX_CONNS", 10)),
		DBMinConns:        int32(l.integer("DB_MIN_CONNS", 1)),
		MigrationsPath:    l.str("MIGRATIONS_PATH", "file://migrations"),
		StoreTimeout:      l.duration("STORE_TIMEOUT", 5*time.Second),

		OpenSearchEndpoint:  strings.TrimRight(l.str("OPENSEARCH_ENDPOINT", ""), "/"),
		IndexName:           l.str("ES_INDEX", "restaurants"),
		SigningService:      l.str("OPENSEARCH_SIGNING_SERVICE", "es"),
		IndexConnectTimeout: l.duration("INDEX_CONNECT_TIMEOUT", 3*time.Second),
		IndexTimeout:        l.duration("INDEX_TIMEOUT", 8*time.Second),
		BreakerFailures:     l.integer("INDEX_BREAKER_FAILURES", 5),
		BreakerCooldown:     l.duration("INDEX_BREAKER_COOLDOWN", 30*time.Second),

		SuggestionCount: l.integer("SUGGESTION_COUNT", 3),
		MaxPerRun:       l.integer("MAX_PER_RUN", 1),
		SuggestionNoun:  l.str("SUGGESTION_NOUN", "restaurant"),

		Notifier:         strings.ToLower(l.str("NOTIFIER", NotifierSES)),
		SESSender:        l.str("SES_SENDER", ""),
		NotifyWebhookURL: l.str("NOTIFY_WEBHOOK_URL", ""),
		NotifyTimeout:    l.duration("NOTIFY_TIMEOUT", 10*time.Second),
		SendRatePerSec:   l.float("SEND_RATE_PER_SEC", 14),

		RedisAddr:     l.str("REDIS_ADDR", ""),
		RedisPassword: l.str("REDIS_PASSWORD", ""),
		RedisDB:       l.integer("REDIS_DB", 0),
		LedgerTTL:     l.duration("LEDGER_TTL", 96*time.Hour),

		PollSchedule:    l.str("POLL_SCHEDULE", "@every 1m"),
		HTTPPort:        l.str("HTTP_PORT", "8080"),
		ReadTimeout:     l.duration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    l.duration("WRITE_TIMEOUT", 2*time.Minute),
		ShutdownTimeout: l.duration("SHUTDOWN_TIMEOUT", 30*time.Second),
		LogLevel:        l.str("LOG_LEVEL", "info"),
	}

	cfg.validate(l, worker)
	if len(l.problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(l.problems, "; "))
	}
	return cfg, nil
}

func (c *Config) validate(l *loader, worker bool) {
	if worker {
		c.validateWorker(l)
	}

	switch c.StoreBackend {
	case StoreBackendDynamo:
		l.require("DDB_TABLE", c.DDBTable)
	case StoreBackendPostgres:
		l.require("DATABASE_URL", c.DatabaseURL)
	default:
		l.fail("STORE_BACKEND must be dynamodb or postgres, got %q", c.StoreBackend)
	}
	l.require("DDB_PK_NAME", c.DDBPKName)
	l.require("CATEGORY_ATTRIBUTE", c.CategoryAttribute)

	l.require("OPENSEARCH_ENDPOINT", c.OpenSearchEndpoint)
	l.require("ES_INDEX", c.IndexName)

	if c.SuggestionCount < 1 {
		l.fail("SUGGESTION_COUNT must be at least 1")
	}
	if c.MaxPerRun < 1 {
		l.fail("MAX_PER_RUN must be at least 1")
	}
	if c.SendRatePerSec <= 0 {
		l.fail("SEND_RATE_PER_SEC must be positive")
	}
	if c.BreakerFailures < 1 {
		l.fail("INDEX_BREAKER_FAILURES must be at least 1")
	}
	l.positive("INDEX_CONNECT_TIMEOUT", c.IndexConnectTimeout)
	l.positive("INDEX_TIMEOUT", c.IndexTimeout)
	l.positive("INDEX_BREAKER_COOLDOWN", c.BreakerCooldown)
	l.positive("STORE_TIMEOUT", c.StoreTimeout)
	if (c.AWSAccessKeyID == "") != (c.AWSSecretKey == "") {
		l.fail("AWS_STATIC_ACCESS_KEY_ID and AWS_STATIC_SECRET_ACCESS_KEY must be set together")
	}
}

func (c *Config) validateWorker(l *loader) {
	// SQS takes whole seconds; anything shorter truncates to 0.
	l.atLeast("VISIBILITY_TIMEOUT", c.VisibilityTimeout, time.Second)
	l.atLeast("RETRY_VISIBILITY_TIMEOUT", c.RetryVisibility, time.Second)
	if c.VisibilityTimeout > 12*time.Hour || c.RetryVisibility > 12*time.Hour {
		l.fail("visibility timeouts cannot exceed 12h")
	}
	if c.ReceiveWait < 0 || c.ReceiveWait > 20*time.Second {
		l.fail("RECEIVE_WAIT_TIME must be between 0s and 20s")
	}
	l.positive("QUEUE_TIMEOUT", c.QueueTimeout)
	if c.QueueTimeout > 0 && c.QueueTimeout <= c.ReceiveWait {
		l.fail("QUEUE_TIMEOUT must exceed RECEIVE_WAIT_TIME")
	}
	l.positive("NOTIFY_TIMEOUT", c.NotifyTimeout)
	l.positive("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)
	if c.LedgerEnabled() {
		l.positive("LEDGER_TTL", c.LedgerTTL)
	}

	switch c.QueueBackend {
	case QueueBackendSQS:
		l.require("QUEUE_URL", c.QueueURL)
	case QueueBackendMemory:
	default:
		l.fail("QUEUE_BACKEND must be sqs or memory, got %q", c.QueueBackend)
	}

	switch c.Notifier {
	case NotifierSES:
		l.require("SES_SENDER", c.SESSender)
	case NotifierWebhook:
		l.require("SES_SENDER", c.SESSender)
		l.require("NOTIFY_WEBHOOK_URL", c.NotifyWebhookURL)
	case NotifierSNS:
	default:
		l.fail("NOTIFIER must be ses, sns or webhook, got %q", c.Notifier)
	}
}

// LedgerEnabled reports whether the Redis delivery ledger is configured.
func (c *Config) LedgerEnabled() bool {
	return c.RedisAddr != ""
}

type loader struct {
	problems []string
}

func (l *loader) positive(key string, d time.Duration) {
	if d <= 0 {
		l.fail("%s must be positive, got %s", key, d)
	}
}

func (l *loader) atLeast(key string, d, floor time.Duration) {
	if d < floor {
		l.fail("%s must be at least %s, got %s", key, floor, d)
	}
}

func (l *loader) fail(format string, args ...any) {
	l.problems = append(l.problems, fmt.Sprintf(format, args...))
}

func (l *loader) require(key, val string) {
	if strings.TrimSpace(val) == "" {
		l.fail("%s is required", key)
	}
}

func (l *loader) str(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func (l *loader) integer(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		l.fail("%s must be an integer, got %q", key, v)
		return defaultVal
	}
	return n
}

func (l *loader) float(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		l.fail("%s must be a number, got %q", key, v)
		return defaultVal
	}
	return f
}

func (l *loader) duration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		l.fail("%s must be a duration, got %q", key, v)
		return defaultVal
	}
	return d
}
