package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/rss-broadcaster/internal/domain"
	"github.com/notifyhub/rss-broadcaster/internal/repository"
)

const isoMillis = "2006-01-02T15:04:05.000Z"

// Broadcaster is satisfied by *service.BroadcastService.
type Broadcaster interface {
	SendBroadcast(ctx context.Context, req domain.BroadcastRequest) int
}

// PollerConfig holds the broadcast settings applied to every feed entry.
type PollerConfig struct {
	TemplateID string
	TagName    string
	TargetTime *domain.TimeOfDay
}

// Poller turns new feed entries into broadcasts.
type Poller struct {
	source      Source
	settings    repository.SettingsRepository
	broadcaster Broadcaster
	cfg         PollerConfig
	now         func() time.Time
	logger      *zap.Logger

	mu      sync.Mutex
	undated time.Time
}

// PollerOption customises a Poller.
type PollerOption func(*Poller)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) PollerOption {
	return func(p *Poller) { p.now = now }
}

func NewPoller(
	source Source,
	settings repository.SettingsRepository,
	broadcaster Broadcaster,
	cfg PollerConfig,
	logger *zap.Logger,
	opts ...PollerOption,
) *Poller {
	p := &Poller{
		source: source, settings: settings, broadcaster: broadcaster,
		cfg: cfg, now: time.Now, logger: logger,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// CheckAndSend broadcasts the newest entry if it has not been sent yet. When
// the newest entry is the one already sent, it is broadcast again to
// subscribers who joined after that send. It reports whether a broadcast
// was started.
func (p *Poller) CheckAndSend(ctx context.Context) (bool, error) {
	entry, err := p.source.Latest(ctx)
	if err != nil {
		return false, err
	}
	if p.skipUndated(entry.Published) {
		p.logger.Debug("newest feed entry has no date in its title", zap.String("title", entry.Title))
		return false, nil
	}
	last, err := p.lastSent(ctx)
	if err != nil {
		return false, err
	}

	var newerThan *time.Time
	if last != nil {
		sentAt, perr := time.Parse(time.RFC3339Nano, last.LastSentItemISO)
		switch {
		case perr != nil || entry.Published.After(sentAt):
		case entry.Published.Equal(sentAt):
			t := time.UnixMilli(last.LastSentTimestamp)
			newerThan = &t
		default:
			p.logger.Debug("feed unchanged", zap.Time("newest", entry.Published))
			return false, nil
		}
	}

	now := p.now()
	if err := p.settings.Put(ctx, domain.SettingLastSent, domain.LastSent{
		LastSentItemISO:   entry.Published.UTC().Format(isoMillis),
		LastSentTimestamp: now.UnixMilli(),
	}); err != nil {
		return false, fmt.Errorf("update last sent: %w", err)
	}

	// An undated entry is recorded as sent and skipped until a newer one
	// appears.
	target, err := ParseTargetDate(entry.Title, now)
	if err != nil {
		p.mu.Lock()
		p.undated = entry.Published
		p.mu.Unlock()
		p.logger.Warn("skipping feed entry", zap.String("title", entry.Title), zap.Error(err))
		return false, nil
	}

	req := domain.BroadcastRequest{
		TemplateID:  p.cfg.TemplateID,
		StartSendAt: now,
		TagName:     p.cfg.TagName,
		Params: map[string]any{
			"title":   entry.Title,
			"link":    entry.Link,
			"content": entry.Content,
		},
		TargetDate:         &target,
		TargetTime:         p.cfg.TargetTime,
		SubscribersNewThan: newerThan,
	}
	p.logger.Info("broadcasting feed entry",
		zap.String("title", entry.Title),
		zap.Bool("new_subscribers_only", newerThan != nil),
	)
	p.broadcaster.SendBroadcast(ctx, req)
	return true, nil
}

func (p *Poller) skipUndated(published time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.undated.IsZero() && published.Equal(p.undated)
}

func (p *Poller) lastSent(ctx context.Context) (*domain.LastSent, error) {
	raw, err := p.settings.Get(ctx, domain.SettingLastSent)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read last sent: %w", err)
	}
	var ls domain.LastSent
	if err := json.Unmarshal(raw, &ls); err != nil || ls.LastSentItemISO == "" {
		return nil, nil
	}
	return &ls, nil
}
