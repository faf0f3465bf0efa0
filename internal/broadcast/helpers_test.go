package broadcast_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/notifyhub/rss-broadcaster/internal/domain"
)

// fixedRand returns the same second and fraction on every call.
type fixedRand struct {
	second int
	frac   float64
}

func (r fixedRand) IntN(n int) int   { return min(r.second, n-1) }
func (r fixedRand) Float64() float64 { return r.frac }

// recordingSleep captures requested pauses without waiting.
type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func makeItems(n int, runAt func(i int) int64) []*domain.QueueItem {
	items := make([]*domain.QueueItem, n)
	for i := range items {
		items[i] = &domain.QueueItem{
			ID:           fmt.Sprintf("item-%03d", i),
			SubscriberID: fmt.Sprintf("sub-%03d", i),
			RunAt:        runAt(i),
		}
	}
	return items
}
