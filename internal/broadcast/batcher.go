package broadcast

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/rss-broadcaster/internal/domain"
	"github.com/notifyhub/rss-broadcaster/internal/repository"
)

const (
	DefaultBatchSize    = 25
	DefaultSuccessDelay = 800 * time.Millisecond
	DefaultErrorDelay   = 500 * time.Millisecond
)

// Batch outcomes reported to the batch hook.
const (
	OutcomeWritten     = "written"
	OutcomeUnprocessed = "unprocessed"
	OutcomeRetry       = "retry"
	OutcomeDropped     = "dropped"
	OutcomeExhausted   = "exhausted"
)

// BatcherConfig tunes the queue writer. Zero values select the defaults.
// MaxAttempts bounds consecutive attempts on a batch that make no progress;
// zero retries for as long as the store keeps reporting retryable failures.
type BatcherConfig struct {
	BatchSize    int
	MaxAttempts  int
	SuccessDelay time.Duration
	ErrorDelay   time.Duration
}

// Batcher writes queue items in bounded batches, resubmitting unprocessed
// and retryable batches with a jittered pause between store calls.
type Batcher struct {
	repo      repository.QueueRepository
	cfg       BatcherConfig
	rand      Rand
	sleep     func(ctx context.Context, d time.Duration) error
	retryable func(error) bool
	onBatch   func(outcome string, items int)
	logger    *zap.Logger
}

type BatcherOption func(*Batcher)

func WithRand(r Rand) BatcherOption { return func(b *Batcher) { b.rand = r } }

// WithSleep replaces the inter-batch pause, mostly so tests run instantly.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) BatcherOption {
	return func(b *Batcher) { b.sleep = fn }
}

// WithRetryClassifier overrides domain.IsRetryable.
func WithRetryClassifier(fn func(error) bool) BatcherOption {
	return func(b *Batcher) { b.retryable = fn }
}

func WithBatchHook(fn func(outcome string, items int)) BatcherOption {
	return func(b *Batcher) { b.onBatch = fn }
}

func NewBatcher(repo repository.QueueRepository, cfg BatcherConfig, logger *zap.Logger, opts ...BatcherOption) *Batcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.SuccessDelay <= 0 {
		cfg.SuccessDelay = DefaultSuccessDelay
	}
	if cfg.ErrorDelay <= 0 {
		cfg.ErrorDelay = DefaultErrorDelay
	}
	b := &Batcher{
		repo:      repo,
		cfg:       cfg,
		rand:      DefaultRand,
		sleep:     sleepContext,
		retryable: domain.IsRetryable,
		onBatch:   func(string, int) {},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type pendingBatch struct {
	items    []*domain.QueueItem
	attempts int
}

// Partition sorts items by RunAt, latest first, and cuts the result into
// consecutive batches of at most BatchSize. items is sorted in place.
func (b *Batcher) Partition(items []*domain.QueueItem) [][]*domain.QueueItem {
	sort.SliceStable(items, func(i, j int) bool { return items[i].RunAt > items[j].RunAt })

	batches := make([][]*domain.QueueItem, 0, (len(items)+b.cfg.BatchSize-1)/b.cfg.BatchSize)
	for start := 0; start < len(items); start += b.cfg.BatchSize {
		end := min(start+b.cfg.BatchSize, len(items))
		batches = append(batches, items[start:end])
	}
	return batches
}

// Process writes every item and returns how many the store accepted.
//
// Batches are taken from the end of the list, so the batch holding the
// earliest RunAt values goes first, and anything pushed back for a retry is
// attempted next. A non-retryable failure drops its batch. Process returns
// early only when ctx is done, with the count written so far.
func (b *Batcher) Process(ctx context.Context, items []*domain.QueueItem) (int, error) {
	parts := b.Partition(items)
	stack := make([]pendingBatch, len(parts))
	for i, p := range parts {
		stack[i] = pendingBatch{items: p}
	}

	written := 0
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		next.attempts++

		b.logger.Debug("writing queue batch",
			zap.Int("batch_count", len(stack)+1),
			zap.Int("size", len(next.items)),
			zap.Int("attempt", next.attempts),
		)

		res, err := b.repo.BatchWrite(ctx, next.items)
		pause := b.cfg.SuccessDelay

		switch {
		case err == nil:
			done := len(next.items) - len(res.Unprocessed)
			written += done
			b.onBatch(OutcomeWritten, done)
			if len(res.Unprocessed) > 0 {
				b.logger.Debug("requeuing unprocessed items", zap.Int("count", len(res.Unprocessed)))
				b.onBatch(OutcomeUnprocessed, len(res.Unprocessed))
				attempts := next.attempts
				if done > 0 {
					attempts = 0
				}
				stack = b.requeue(stack, pendingBatch{items: res.Unprocessed, attempts: attempts})
			}
		case ctx.Err() != nil:
			return written, ctx.Err()
		case b.retryable(err):
			b.logger.Debug("requeuing failed batch", zap.Int("size", len(next.items)), zap.Error(err))
			b.onBatch(OutcomeRetry, len(next.items))
			stack = b.requeue(stack, next)
			pause = b.cfg.ErrorDelay
		default:
			b.logger.Error("dropping failed batch", zap.Int("size", len(next.items)), zap.Error(err))
			b.onBatch(OutcomeDropped, len(next.items))
			pause = b.cfg.ErrorDelay
		}

		// The pause follows every write, the last one included. Cancellation
		// during the final pause loses nothing.
		if err := b.sleep(ctx, b.jitter(pause)); err != nil && len(stack) > 0 {
			return written, err
		}
	}
	return written, nil
}

func (b *Batcher) requeue(stack []pendingBatch, p pendingBatch) []pendingBatch {
	if b.cfg.MaxAttempts > 0 && p.attempts >= b.cfg.MaxAttempts {
		b.logger.Error("giving up on batch after max attempts",
			zap.Int("size", len(p.items)), zap.Int("attempts", p.attempts))
		b.onBatch(OutcomeExhausted, len(p.items))
		return stack
	}
	return append(stack, p)
}

func (b *Batcher) jitter(limit time.Duration) time.Duration {
	return time.Duration(b.rand.Float64() * float64(limit))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
