package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/notifyhub/rss-broadcaster/internal/domain"
	"github.com/notifyhub/rss-broadcaster/internal/repository"
)

const defaultReleaseTimeout = 10 * time.Second

// LockManager owns the isDoingBroadcast setting that keeps two broadcasts
// from populating the queue at the same time.
type LockManager struct {
	settings       repository.SettingsRepository
	releaseTimeout time.Duration
}

func NewLockManager(settings repository.SettingsRepository) *LockManager {
	return &LockManager{settings: settings, releaseTimeout: defaultReleaseTimeout}
}

// TryAcquire flips the lock from free to held in one conditional write and
// returns domain.ErrQueueLocked when another broadcast holds it.
func (l *LockManager) TryAcquire(ctx context.Context) error {
	ok, err := l.settings.SwapIf(ctx, domain.SettingBroadcastLock, false, true)
	if err != nil {
		return fmt.Errorf("acquire broadcast lock: %w", err)
	}
	if !ok {
		return domain.ErrQueueLocked
	}
	return nil
}

// Held reports whether the lock is currently set. Only a JSON true counts
// as held.
func (l *LockManager) Held(ctx context.Context) (bool, error) {
	raw, err := l.settings.Get(ctx, domain.SettingBroadcastLock)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read broadcast lock: %w", err)
	}
	var held bool
	if err := json.Unmarshal(raw, &held); err != nil {
		return false, nil
	}
	return held, nil
}

// Release writes false unconditionally. It ignores cancellation of ctx so a
// broadcast that timed out still frees the queue.
func (l *LockManager) Release(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.releaseTimeout)
	defer cancel()
	if err := l.settings.Put(ctx, domain.SettingBroadcastLock, false); err != nil {
		return fmt.Errorf("release broadcast lock: %w", err)
	}
	return nil
}
