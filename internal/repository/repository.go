package repository

import (
	"context"
	"encoding/json"

	"github.com/notifyhub/rss-broadcaster/internal/domain"
)

// SettingsRepository is a key-value view of the settings table. Values are
// stored as JSON.
type SettingsRepository interface {
	// Get returns the raw JSON value or domain.ErrNotFound.
	Get(ctx context.Context, name string) (json.RawMessage, error)
	Put(ctx context.Context, name string, value any) error
	// SwapIf writes value when the row is absent or currently equals
	// expected, in a single statement. It reports whether the write happened.
	SwapIf(ctx context.Context, name string, expected, value any) (bool, error)
}

// SubscriberRepository pages through the subscriber directory.
// The pgx implementation is in pg_subscriber_repo.go.
type SubscriberRepository interface {
	// Scan returns up to limit eligible subscribers matching filter, starting
	// after token. An empty NextToken on the page ends the scan.
	Scan(ctx context.Context, filter domain.SubscriberFilter, token string, limit int) (domain.SubscriberPage, error)
}

// QueueRepository writes work items for the delivery worker.
type QueueRepository interface {
	// BatchWrite either fails with a *domain.WriteError or reports which
	// items were left unprocessed.
	BatchWrite(ctx context.Context, items []*domain.QueueItem) (domain.BatchWriteResult, error)
}
