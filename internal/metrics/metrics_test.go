package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/notifyhub/rss-broadcaster/internal/metrics"
)

func TestHooksUpdateInstruments(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	run := m.RunHook()
	run("enqueued", 2*time.Second, 40, 38)
	run("locked", 0, 0, 0)

	if got := testutil.ToFloat64(m.BroadcastsTotal.WithLabelValues("enqueued")); got != 1 {
		t.Errorf("enqueued runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.QueueItemsEnqueued); got != 38 {
		t.Errorf("enqueued items = %v, want 38", got)
	}
	if got := testutil.ToFloat64(m.BroadcastRecipients); got != 0 {
		t.Errorf("recipients gauge = %v, want last run's 0", got)
	}

	batch := m.BatchHook()
	batch("written", 25)
	batch("written", 5)
	batch("retry", 25)
	if got := testutil.ToFloat64(m.QueueBatchItems.WithLabelValues("written")); got != 30 {
		t.Errorf("written items = %v, want 30", got)
	}

	m.FeedHook()("unchanged")
	if got := testutil.ToFloat64(m.FeedChecksTotal.WithLabelValues("unchanged")); got != 1 {
		t.Errorf("feed checks = %v, want 1", got)
	}

	if n := testutil.CollectAndCount(m.BroadcastDuration); n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}
}

func TestNewRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.New(reg)

	defer func() {
		if recover() == nil {
			t.Error("second registration on the same registry should panic")
		}
	}()
	metrics.New(reg)
}
