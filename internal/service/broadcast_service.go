package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/rss-broadcaster/internal/broadcast"
	"github.com/notifyhub/rss-broadcaster/internal/domain"
)

// Broadcast run results reported to metrics hooks.
const (
	ResultEnqueued = "enqueued"
	ResultEmpty    = "empty"
	ResultLocked   = "locked"
	ResultError    = "error"
)

// RunHooks carries the metric callbacks injected by main.
// Nil functions are no-ops.
type RunHooks struct {
	OnRun func(result string, latency time.Duration, subscribers, enqueued int)
}

// RunSummary describes the most recent broadcast attempt.
type RunSummary struct {
	TemplateID  string    `json:"template_id"`
	TagName     string    `json:"tag_name,omitempty"`
	Result      string    `json:"result"`
	Subscribers int       `json:"subscribers"`
	Enqueued    int       `json:"enqueued"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// BroadcastService runs one broadcast end to end: lock, fetch subscribers,
// schedule, write the queue, unlock. It never returns an error; failures
// are logged and reflected in the returned count and LastRun.
type BroadcastService struct {
	lock      *broadcast.LockManager
	source    *broadcast.SubscriberSource
	scheduler *broadcast.Scheduler
	batcher   *broadcast.Batcher
	timeout   time.Duration
	logger    *zap.Logger
	hooks     RunHooks

	mu   sync.Mutex
	last *RunSummary
}

// NewBroadcastService wires the broadcast components. A positive timeout
// bounds each run; the lock is released even when it expires.
func NewBroadcastService(
	lock *broadcast.LockManager,
	source *broadcast.SubscriberSource,
	scheduler *broadcast.Scheduler,
	batcher *broadcast.Batcher,
	timeout time.Duration,
	logger *zap.Logger,
	hooks RunHooks,
) *BroadcastService {
	if hooks.OnRun == nil {
		hooks.OnRun = func(string, time.Duration, int, int) {}
	}
	return &BroadcastService{
		lock: lock, source: source, scheduler: scheduler, batcher: batcher,
		timeout: timeout, logger: logger, hooks: hooks,
	}
}

// SendBroadcast enqueues req for every eligible subscriber and returns the
// number of queue items written.
func (s *BroadcastService) SendBroadcast(ctx context.Context, req domain.BroadcastRequest) (enqueued int) {
	summary := RunSummary{TemplateID: req.TemplateID, TagName: req.TagName, StartedAt: time.Now().UTC()}
	log := s.logger.With(zap.String("template_id", req.TemplateID), zap.String("tag", req.TagName))

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.lock.TryAcquire(ctx); err != nil {
		result := ResultError
		if errors.Is(err, domain.ErrQueueLocked) {
			result = ResultLocked
		}
		log.Error("error while sending broadcast", zap.Error(err))
		s.finish(summary, result, 0, err)
		return 0
	}

	var (
		subscribers int
		runErr      error
	)
	defer func() {
		if r := recover(); r != nil {
			runErr = fmt.Errorf("panic during broadcast: %v", r)
			log.Error("recovered from panic during broadcast", zap.Any("panic", r))
		}
		if err := s.lock.Release(ctx); err != nil {
			log.Error("failed to release broadcast lock", zap.Error(err))
		}

		result := ResultEnqueued
		switch {
		case runErr != nil:
			result = ResultError
		case subscribers == 0:
			result = ResultEmpty
		}
		summary.Subscribers = subscribers
		s.finish(summary, result, enqueued, runErr)
	}()

	enqueued, subscribers, runErr = s.run(ctx, req, log)
	if runErr != nil {
		log.Error("error while sending broadcast", zap.Error(runErr), zap.Int("enqueued", enqueued))
	}
	return enqueued
}

func (s *BroadcastService) run(ctx context.Context, req domain.BroadcastRequest, log *zap.Logger) (int, int, error) {
	if req.TargetDate != nil {
		if err := req.TargetDate.Validate(); err != nil {
			return 0, 0, err
		}
	}
	if req.TargetTime != nil {
		if err := req.TargetTime.Validate(); err != nil {
			return 0, 0, err
		}
	}

	subs, err := s.source.FetchAll(ctx, req.Filter())
	if err != nil {
		return 0, 0, err
	}
	if len(subs) == 0 {
		log.Debug("no subscribers found for broadcast")
		return 0, 0, nil
	}
	log.Info("preparing broadcast", zap.Int("subscribers", len(subs)))

	base := req.StartSendAt
	if base.IsZero() {
		base = time.Now()
	}
	fields := broadcast.BroadcastFields{
		TemplateID: req.TemplateID,
		Params:     req.Params,
		TagReason:  req.TagName,
	}

	items := make([]*domain.QueueItem, len(subs))
	for i, sub := range subs {
		items[i] = s.scheduler.BuildQueueItem(sub, fields, base, req.TargetTime, req.TargetDate)
	}

	n, err := s.batcher.Process(ctx, items)
	if n > 0 {
		log.Info("added items to the queue", zap.Int("count", n))
	}
	if err != nil {
		return n, len(subs), fmt.Errorf("write queue: %w", err)
	}
	return n, len(subs), nil
}

func (s *BroadcastService) finish(summary RunSummary, result string, enqueued int, err error) {
	summary.Result = result
	summary.Enqueued = enqueued
	summary.FinishedAt = time.Now().UTC()
	if err != nil {
		summary.Error = err.Error()
	}

	s.mu.Lock()
	s.last = &summary
	s.mu.Unlock()

	s.hooks.OnRun(result, summary.FinishedAt.Sub(summary.StartedAt), summary.Subscribers, enqueued)
}

// LastRun returns the summary of the most recent SendBroadcast call.
func (s *BroadcastService) LastRun() (RunSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return RunSummary{}, false
	}
	return *s.last, true
}

// LockHeld reports whether a broadcast currently holds the queue lock.
func (s *BroadcastService) LockHeld(ctx context.Context) (bool, error) {
	return s.lock.Held(ctx)
}
