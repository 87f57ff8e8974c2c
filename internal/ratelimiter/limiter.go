package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// SendLimiter paces outbound notifications to the provider's sending quota.
// Burst equals the per-second rate (at least 1) so no extra capacity is saved
// up beyond the configured maximum.
type SendLimiter struct {
	limiter *rate.Limiter
}

// New creates a SendLimiter allowing ratePerSec sends per second.
func New(ratePerSec float64) *SendLimiter {
	burst := int(ratePerSec)
	if burst < 1 {
		burst = 1
	}
	return &SendLimiter{limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst)}
}

// Wait blocks until a token is available.
// Returns a non-nil error only if ctx is cancelled while waiting, or its
// deadline falls before the next token.
func (l *SendLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
