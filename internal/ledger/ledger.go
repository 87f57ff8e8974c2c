// Package ledger remembers which queue messages already produced a
// notification, so a redelivery after a failed delete does not send twice.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "suggestion:delivered:"

// Ledger is the worker's view of the delivery record.
type Ledger interface {
	Delivered(ctx context.Context, messageID string) (bool, error)
	MarkDelivered(ctx context.Context, messageID string) error
}

// RedisLedger stores delivered message ids in Redis with a TTL so all
// worker instances share the record.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLedger creates a ledger using the provided Redis client and TTL.
// The TTL should outlive the queue's message retention.
func NewRedisLedger(client *redis.Client, ttl time.Duration) *RedisLedger {
	return &RedisLedger{client: client, ttl: ttl}
}

func (l *RedisLedger) key(messageID string) string {
	return keyPrefix + messageID
}

// Delivered reports whether messageID was marked delivered and has not expired.
func (l *RedisLedger) Delivered(ctx context.Context, messageID string) (bool, error) {
	_, err := l.client.Get(ctx, l.key(messageID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger lookup: %w", err)
	}
	return true, nil
}

// MarkDelivered records messageID with the delivery time as value.
func (l *RedisLedger) MarkDelivered(ctx context.Context, messageID string) error {
	if err := l.client.Set(ctx, l.key(messageID), time.Now().UTC().Format(time.RFC3339), l.ttl).Err(); err != nil {
		return fmt.Errorf("ledger mark: %w", err)
	}
	return nil
}

// Ping checks connectivity at startup.
func (l *RedisLedger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

var _ Ledger = (*RedisLedger)(nil)
