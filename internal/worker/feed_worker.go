package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/notifyhub/rss-broadcaster/internal/domain"
)

// Feed check results reported to the metrics hook.
const (
	CheckSent      = "sent"
	CheckUnchanged = "unchanged"
	CheckError     = "error"
)

// Checker is satisfied by *feed.Poller.
type Checker interface {
	CheckAndSend(ctx context.Context) (bool, error)
}

// FeedWorker runs the feed check on a cron schedule. At most one check runs
// at a time in this process; a tick that finds a check in flight is skipped.
type FeedWorker struct {
	checker    Checker
	schedule   cron.Schedule
	spec       string
	runOnStart bool
	logger     *zap.Logger
	onCheck    func(result string)

	running atomic.Bool
	wg      sync.WaitGroup

	// mu guards base and stopped, and orders wg.Add before Run's wg.Wait.
	mu      sync.Mutex
	base    context.Context
	stopped bool
}

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewFeedWorker validates spec ("@every 6h", "0 */6 * * *", ...). onCheck is
// optional (nil = no-op).
func NewFeedWorker(
	checker Checker,
	spec string,
	runOnStart bool,
	logger *zap.Logger,
	onCheck func(result string),
) (*FeedWorker, error) {
	sched, err := scheduleParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse poll schedule %q: %w", spec, err)
	}
	if onCheck == nil {
		onCheck = func(string) {}
	}
	return &FeedWorker{
		checker: checker, schedule: sched, spec: spec,
		runOnStart: runOnStart, logger: logger, onCheck: onCheck,
	}, nil
}

// Run blocks until ctx is cancelled, then waits for an in-flight check.
func (w *FeedWorker) Run(ctx context.Context) {
	w.mu.Lock()
	w.base = ctx
	w.mu.Unlock()

	c := cron.New(cron.WithParser(scheduleParser))
	c.Schedule(w.schedule, cron.FuncJob(func() {
		if err := w.start(ctx); errors.Is(err, domain.ErrPollInProgress) {
			w.logger.Info("feed check still running, skipping tick")
		}
	}))
	c.Start()
	w.logger.Info("feed worker started", zap.String("schedule", w.spec))

	if w.runOnStart {
		_ = w.start(ctx)
	}

	<-ctx.Done()
	w.logger.Info("feed worker stopping")
	<-c.Stop().Done()

	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
	w.wg.Wait()
}

// Trigger starts a check outside the schedule. It returns
// domain.ErrPollInProgress when a check is already running and
// context.Canceled before Run or after shutdown.
func (w *FeedWorker) Trigger() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.base == nil || w.base.Err() != nil {
		return context.Canceled
	}
	return w.startLocked(w.base)
}

// Running reports whether a check is in flight.
func (w *FeedWorker) Running() bool { return w.running.Load() }

func (w *FeedWorker) start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.startLocked(ctx)
}

func (w *FeedWorker) startLocked(ctx context.Context) error {
	if w.stopped {
		return context.Canceled
	}
	if !w.running.CompareAndSwap(false, true) {
		return domain.ErrPollInProgress
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.running.Store(false)
		w.check(ctx)
	}()
	return nil
}

func (w *FeedWorker) check(ctx context.Context) {
	sent, err := w.checker.CheckAndSend(ctx)
	switch {
	case err != nil:
		w.logger.Error("feed check failed", zap.Error(err))
		w.onCheck(CheckError)
	case sent:
		w.onCheck(CheckSent)
	default:
		w.onCheck(CheckUnchanged)
	}
}
