package broadcast

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notifyhub/rss-broadcaster/internal/domain"
)

// BroadcastFields are the per-broadcast values copied onto every queue item.
type BroadcastFields struct {
	TemplateID string
	Params     map[string]any
	TagReason  string
}

// Scheduler decides when each subscriber receives a broadcast and builds the
// matching queue item.
type Scheduler struct {
	rand   Rand
	logger *zap.Logger

	mu        sync.Mutex
	locations map[string]*time.Location
}

func NewScheduler(r Rand, logger *zap.Logger) *Scheduler {
	if r == nil {
		r = DefaultRand
	}
	return &Scheduler{rand: r, logger: logger, locations: make(map[string]*time.Location)}
}

// ComputeRunAt returns the delivery time in epoch milliseconds.
//
// Without a timezone the broadcast goes out at base. Otherwise delivery is
// at pref (default 09:30) local time on the local date of base, or on
// target when given, with a random second in [0,59]. Sub-second precision
// of base is kept.
func (s *Scheduler) ComputeRunAt(base time.Time, timezone string, pref *domain.TimeOfDay, target *domain.TargetDate) int64 {
	if timezone == "" {
		return base.UnixMilli()
	}
	loc, err := s.location(timezone)
	if err != nil {
		s.logger.Warn("unknown subscriber timezone, sending immediately",
			zap.String("timezone", timezone), zap.Error(err))
		return base.UnixMilli()
	}

	dtp := domain.DefaultDeliveryTime
	if pref != nil {
		dtp = *pref
	}

	local := base.In(loc)
	year, month, day := local.Date()
	if target != nil {
		year, month, day = target.Year, time.Month(target.Month), target.Day
	}
	second := s.rand.IntN(60)

	return time.Date(year, month, day, dtp.Hour, dtp.Minute, second, local.Nanosecond(), loc).UnixMilli()
}

// BuildQueueItem schedules one subscriber. targetTime, when set, takes
// priority over the subscriber's own delivery time preference.
func (s *Scheduler) BuildQueueItem(
	sub domain.Subscriber,
	fields BroadcastFields,
	base time.Time,
	targetTime *domain.TimeOfDay,
	targetDate *domain.TargetDate,
) *domain.QueueItem {
	pref := sub.DeliveryTimePreference
	if targetTime != nil {
		pref = targetTime
	}
	runAt := s.ComputeRunAt(base, sub.Timezone, pref, targetDate)

	return &domain.QueueItem{
		ID:             uuid.NewString(),
		Type:           domain.QueueItemTypeSendEmail,
		SubscriberID:   sub.SubscriberID,
		Subscriber:     sub,
		TemplateID:     fields.TemplateID,
		Params:         fields.Params,
		TagReason:      fields.TagReason,
		QueuePlacement: domain.PlacementQueued,
		RunAt:          runAt,
		RunAtModified:  tieBreakKey(runAt, s.rand.Float64()),
		Attempts:       0,
		Failed:         false,
		Completed:      false,
	}
}

// tieBreakKey appends the fractional digits of f to runAt, e.g.
// 1700000000000 and 0.4183 give "1700000000000.4183".
func tieBreakKey(runAt int64, f float64) string {
	frac := strings.TrimPrefix(strconv.FormatFloat(f, 'f', -1, 64), "0")
	return strconv.FormatInt(runAt, 10) + frac
}

func (s *Scheduler) location(name string) (*time.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if loc, ok := s.locations[name]; ok {
		return loc, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}
	s.locations[name] = loc
	return loc, nil
}
