package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/rss-broadcaster/internal/broadcast"
	"github.com/notifyhub/rss-broadcaster/internal/domain"
	"github.com/notifyhub/rss-broadcaster/internal/repository"
	"github.com/notifyhub/rss-broadcaster/internal/service"
)

type fixture struct {
	svc      *service.BroadcastService
	settings *repository.MockSettingsRepository
	subs     *repository.MockSubscriberRepository
	queue    *repository.MockQueueRepository
	lock     *broadcast.LockManager
	results  []string
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newFixture(subscribers ...domain.Subscriber) *fixture {
	f := &fixture{
		settings: repository.NewMockSettingsRepository(),
		subs:     repository.NewMockSubscriberRepository(subscribers...),
		queue:    repository.NewMockQueueRepository(),
	}
	logger := zap.NewNop()
	f.lock = broadcast.NewLockManager(f.settings)
	f.svc = service.NewBroadcastService(
		f.lock,
		broadcast.NewSubscriberSource(f.subs, 2, logger),
		broadcast.NewScheduler(nil, logger),
		broadcast.NewBatcher(f.queue, broadcast.BatcherConfig{}, logger, broadcast.WithSleep(noSleep)),
		0,
		logger,
		service.RunHooks{OnRun: func(result string, _ time.Duration, _, _ int) {
			f.results = append(f.results, result)
		}},
	)
	return f
}

func (f *fixture) lockValues() []string {
	var out []string
	for _, v := range f.settings.History(domain.SettingBroadcastLock) {
		out = append(out, string(v))
	}
	return out
}

var startSendAt = time.UnixMilli(1700000000000)

func newsletterRequest() domain.BroadcastRequest {
	return domain.BroadcastRequest{
		TemplateID:  "tpl-rss",
		StartSendAt: startSendAt,
		TagName:     "newsletter",
		Params:      map[string]any{"title": "Issue 12"},
	}
}

func TestBroadcastService_EndToEnd(t *testing.T) {
	f := newFixture(
		domain.Subscriber{SubscriberID: "a", Confirmed: true, Tags: []string{"newsletter"}},
		domain.Subscriber{SubscriberID: "b", Confirmed: true, Tags: []string{"newsletter"}, Timezone: "America/New_York"},
		domain.Subscriber{SubscriberID: "c", Confirmed: true, Tags: []string{"newsletter"}, Timezone: "Europe/London"},
		domain.Subscriber{SubscriberID: "d", Confirmed: true, Tags: []string{"other"}},
		domain.Subscriber{SubscriberID: "e", Confirmed: true, Unsubscribed: true, Tags: []string{"newsletter"}},
	)

	n := f.svc.SendBroadcast(context.Background(), newsletterRequest())
	if n != 3 {
		t.Fatalf("expected 3 enqueued, got %d", n)
	}

	items := f.queue.Items()
	if len(items) != 3 {
		t.Fatalf("expected 3 queue items, got %d", len(items))
	}
	for _, it := range items {
		if it.TagReason != "newsletter" || it.TemplateID != "tpl-rss" {
			t.Fatalf("unexpected broadcast fields on %s: %+v", it.SubscriberID, it)
		}
		switch it.SubscriberID {
		case "a":
			if it.RunAt != startSendAt.UnixMilli() {
				t.Fatalf("expected no-timezone runAt %d, got %d", startSendAt.UnixMilli(), it.RunAt)
			}
		case "b", "c":
			loc, _ := time.LoadLocation(it.Subscriber.Timezone)
			local := time.UnixMilli(it.RunAt).In(loc)
			if local.Hour() != 9 || local.Minute() != 30 {
				t.Fatalf("%s: expected 09:30 local, got %s", it.SubscriberID, local.Format(time.Kitchen))
			}
		default:
			t.Fatalf("unexpected subscriber %s in queue", it.SubscriberID)
		}
	}

	if got := f.lockValues(); fmt.Sprint(got) != "[true false]" {
		t.Fatalf("expected lock to be taken then released, got %v", got)
	}

	last, ok := f.svc.LastRun()
	if !ok || last.Result != service.ResultEnqueued || last.Enqueued != 3 || last.Subscribers != 3 {
		t.Fatalf("unexpected last run summary: %+v", last)
	}
}

func TestBroadcastService_LockedQueueIsNotTouched(t *testing.T) {
	f := newFixture(domain.Subscriber{SubscriberID: "a", Confirmed: true, Tags: []string{"newsletter"}})
	if err := f.settings.Put(context.Background(), domain.SettingBroadcastLock, true); err != nil {
		t.Fatal(err)
	}

	if n := f.svc.SendBroadcast(context.Background(), newsletterRequest()); n != 0 {
		t.Fatalf("expected 0 enqueued, got %d", n)
	}
	if f.subs.Scans != 0 {
		t.Fatalf("expected no subscriber scan, got %d", f.subs.Scans)
	}
	if len(f.queue.Batches) != 0 {
		t.Fatal("expected no queue writes")
	}
	if got := f.lockValues(); fmt.Sprint(got) != "[true]" {
		t.Fatalf("expected the foreign lock to be left alone, got %v", got)
	}
	if f.results[0] != service.ResultLocked {
		t.Fatalf("expected result locked, got %s", f.results[0])
	}
}

func TestBroadcastService_FetchFailureReleasesLock(t *testing.T) {
	f := newFixture(domain.Subscriber{SubscriberID: "a", Confirmed: true})
	f.subs.ScanErr = repository.ErrMockUnavailable

	if n := f.svc.SendBroadcast(context.Background(), domain.BroadcastRequest{TemplateID: "tpl"}); n != 0 {
		t.Fatalf("expected 0 enqueued, got %d", n)
	}
	held, err := f.svc.LockHeld(context.Background())
	if err != nil || held {
		t.Fatalf("expected lock released, held=%v err=%v", held, err)
	}
	last, _ := f.svc.LastRun()
	if last.Result != service.ResultError || last.Error == "" {
		t.Fatalf("expected error summary, got %+v", last)
	}
}

func TestBroadcastService_NoSubscribers(t *testing.T) {
	f := newFixture()

	if n := f.svc.SendBroadcast(context.Background(), newsletterRequest()); n != 0 {
		t.Fatalf("expected 0 enqueued, got %d", n)
	}
	if len(f.queue.Batches) != 0 {
		t.Fatal("expected no queue writes")
	}
	if got := f.lockValues(); fmt.Sprint(got) != "[true false]" {
		t.Fatalf("expected lock released, got %v", got)
	}
	if f.results[0] != service.ResultEmpty {
		t.Fatalf("expected result empty, got %s", f.results[0])
	}
}

// TestBroadcastService_LockHeldDuringRun verifies a second broadcast cannot
// start while the first one is writing the queue.
func TestBroadcastService_LockHeldDuringRun(t *testing.T) {
	f := newFixture(domain.Subscriber{SubscriberID: "a", Confirmed: true})

	var nestedErr error
	var heldDuringWrite bool
	f.queue.WriteFunc = func(_ int, items []*domain.QueueItem) (domain.BatchWriteResult, error) {
		nestedErr = f.lock.TryAcquire(context.Background())
		heldDuringWrite, _ = f.lock.Held(context.Background())
		return domain.BatchWriteResult{Written: len(items)}, nil
	}

	if n := f.svc.SendBroadcast(context.Background(), domain.BroadcastRequest{TemplateID: "tpl"}); n != 1 {
		t.Fatalf("expected 1 enqueued, got %d", n)
	}
	if nestedErr != domain.ErrQueueLocked {
		t.Fatalf("expected ErrQueueLocked during run, got %v", nestedErr)
	}
	if !heldDuringWrite {
		t.Fatal("expected lock to be held during the write")
	}
	if held, _ := f.lock.Held(context.Background()); held {
		t.Fatal("expected lock released after the run")
	}
}

func TestBroadcastService_CancelledRunReleasesLock(t *testing.T) {
	var subs []domain.Subscriber
	for i := 0; i < 60; i++ {
		subs = append(subs, domain.Subscriber{SubscriberID: fmt.Sprintf("s%02d", i), Confirmed: true})
	}
	f := newFixture(subs...)

	ctx, cancel := context.WithCancel(context.Background())
	f.queue.WriteFunc = func(_ int, items []*domain.QueueItem) (domain.BatchWriteResult, error) {
		cancel()
		return domain.BatchWriteResult{Written: len(items)}, nil
	}

	n := f.svc.SendBroadcast(ctx, domain.BroadcastRequest{TemplateID: "tpl"})
	if n != 10 {
		t.Fatalf("expected the first batch of 10 to be counted, got %d", n)
	}
	var held bool
	raw, _ := f.settings.Get(context.Background(), domain.SettingBroadcastLock)
	_ = json.Unmarshal(raw, &held)
	if held {
		t.Fatal("expected lock released after cancellation")
	}
	if last, _ := f.svc.LastRun(); last.Result != service.ResultError {
		t.Fatalf("expected error result, got %+v", last)
	}
}

func TestBroadcastService_InvalidTargetIsRejected(t *testing.T) {
	f := newFixture(domain.Subscriber{SubscriberID: "a", Confirmed: true, Timezone: "Europe/London"})

	req := newsletterRequest()
	req.TagName = ""
	req.TargetDate = &domain.TargetDate{Day: 31, Month: 13, Year: 2024}

	if n := f.svc.SendBroadcast(context.Background(), req); n != 0 {
		t.Fatalf("expected 0 enqueued, got %d", n)
	}
	if len(f.queue.Batches) != 0 {
		t.Fatalf("queue should not be written, got %d batches", len(f.queue.Batches))
	}
	if got := fmt.Sprint(f.lockValues()); got != "[true false]" {
		t.Fatalf("lock history = %s, want [true false]", got)
	}
	last, _ := f.svc.LastRun()
	if last.Result != service.ResultError {
		t.Fatalf("result = %q, want error", last.Result)
	}
}
