package ratelimiter

import (
	"context"
	"testing"
	"time"
)

func TestSendLimiter_BurstThenWait(t *testing.T) {
	l := New(2)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 2; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("burst tokens should be immediate")
	}

	ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Fatal("expected wait to fail when the next token is beyond the deadline")
	}
}

func TestSendLimiter_FractionalRateHasBurstOne(t *testing.T) {
	l := New(0.5)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first token should be available: %v", err)
	}
}
