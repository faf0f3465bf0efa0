package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/rss-broadcaster/internal/domain"
)

type pgSettingsRepository struct {
	pool *pgxpool.Pool
}

// NewPgSettingsRepository returns a SettingsRepository backed by PostgreSQL.
func NewPgSettingsRepository(pool *pgxpool.Pool) SettingsRepository {
	return &pgSettingsRepository{pool: pool}
}

func (r *pgSettingsRepository) Get(ctx context.Context, name string) (json.RawMessage, error) {
	var value []byte
	err := r.pool.QueryRow(ctx,
		`SELECT value FROM settings WHERE setting_name = $1`, name).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get setting %s: %w", name, err)
	}
	return value, nil
}

func (r *pgSettingsRepository) Put(ctx context.Context, name string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal setting %s: %w", name, err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO settings (setting_name, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (setting_name)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		name, b)
	if err != nil {
		return fmt.Errorf("put setting %s: %w", name, err)
	}
	return nil
}

func (r *pgSettingsRepository) SwapIf(ctx context.Context, name string, expected, value any) (bool, error) {
	want, err := json.Marshal(expected)
	if err != nil {
		return false, fmt.Errorf("marshal expected %s: %w", name, err)
	}
	b, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("marshal setting %s: %w", name, err)
	}

	// The conflict branch only fires when the stored value matches, so a
	// concurrent writer either inserts first or sees our update.
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO settings (setting_name, value, updated_at)
		VALUES ($1, $3, NOW())
		ON CONFLICT (setting_name)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
		WHERE settings.value = $2::jsonb`,
		name, want, b)
	if err != nil {
		return false, fmt.Errorf("swap setting %s: %w", name, err)
	}
	return tag.RowsAffected() == 1, nil
}
