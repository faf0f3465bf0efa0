package ratelimiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// WriteCapacity bounds how many queue rows may be written per second.
// Burst equals the rate so a broadcast cannot save up capacity between
// batches. A nil *WriteCapacity is unlimited.
type WriteCapacity struct {
	mu      sync.Mutex
	limiter *rate.Limiter
}

// New returns a WriteCapacity of itemsPerSec, or nil (unlimited) when
// itemsPerSec is not positive.
func New(itemsPerSec int) *WriteCapacity {
	if itemsPerSec <= 0 {
		return nil
	}
	return &WriteCapacity{limiter: rate.NewLimiter(rate.Limit(itemsPerSec), itemsPerSec)}
}

// Grant waits until at least one token is available, then consumes up to n
// tokens and returns how many were granted. A granted count below n is the
// caller's cue to report the remainder as unprocessed; it is never zero
// unless n is, or ctx ends first.
func (c *WriteCapacity) Grant(ctx context.Context, n int) (int, error) {
	if c == nil || n <= 0 {
		return max(n, 0), nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.limiter.WaitN(ctx, 1); err != nil {
		return 0, err
	}
	now := time.Now()
	extra := min(int(c.limiter.TokensAt(now)), n-1)
	if extra > 0 && c.limiter.AllowN(now, extra) {
		return 1 + extra, nil
	}
	return 1, nil
}
