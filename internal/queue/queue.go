// Package queue abstracts the at-least-once message queue the worker consumes.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/notifyhub/suggestion-worker/internal/domain"
)

// ErrReceiptExpired is returned by Delete and ExtendVisibility when the
// receipt no longer refers to an in-flight message (already deleted, or its
// visibility lapsed and it was received again).
var ErrReceiptExpired = errors.New("receipt handle is no longer valid")

// Queue is the worker's view of the message queue.
// Mocking this interface in tests gives full control over redelivery.
type Queue interface {
	// ReceiveOne returns at most one message and hides it from other consumers
	// for visibility. It returns (nil, nil) when the queue is empty.
	ReceiveOne(ctx context.Context, visibility time.Duration) (*domain.InFlightMessage, error)
	// Delete permanently removes the message the receipt refers to.
	Delete(ctx context.Context, receipt string) error
	// ExtendVisibility resets the message's invisibility window to timeout from now.
	ExtendVisibility(ctx context.Context, receipt string, timeout time.Duration) error
}
