package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/rss-broadcaster/internal/domain"
)

type pgSubscriberRepository struct {
	pool *pgxpool.Pool
}

// NewPgSubscriberRepository returns a SubscriberRepository backed by PostgreSQL.
func NewPgSubscriberRepository(pool *pgxpool.Pool) SubscriberRepository {
	return &pgSubscriberRepository{pool: pool}
}

func (r *pgSubscriberRepository) Scan(ctx context.Context, f domain.SubscriberFilter, token string, limit int) (domain.SubscriberPage, error) {
	where, args := buildSubscriberWhere(f, token)
	args = append(args, limit)

	// Keyset pagination on the primary key keeps every page an index range
	// scan, however deep the scan goes.
	query := fmt.Sprintf(`
		SELECT subscriber_id, email, confirmed, unsubscribed, tags,
		       timezone, delivery_hour, delivery_minute, joined
		FROM subscribers%s
		ORDER BY subscriber_id
		LIMIT $%d`, where, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return domain.SubscriberPage{}, fmt.Errorf("scan subscribers: %w", err)
	}
	defer rows.Close()

	var page domain.SubscriberPage
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return domain.SubscriberPage{}, err
		}
		page.Items = append(page.Items, s)
	}
	if err := rows.Err(); err != nil {
		return domain.SubscriberPage{}, fmt.Errorf("scan subscribers: %w", err)
	}

	if limit > 0 && len(page.Items) == limit {
		page.NextToken = page.Items[len(page.Items)-1].SubscriberID
	}
	return page, nil
}

// ---- helpers ----

func scanSubscriber(row pgx.Row) (domain.Subscriber, error) {
	var (
		s            domain.Subscriber
		unsubscribed *bool
		timezone     *string
		hour, minute *int32
	)
	err := row.Scan(
		&s.SubscriberID, &s.Email, &s.Confirmed, &unsubscribed, &s.Tags,
		&timezone, &hour, &minute, &s.Joined,
	)
	if err != nil {
		return domain.Subscriber{}, fmt.Errorf("read subscriber: %w", err)
	}
	s.Unsubscribed = unsubscribed != nil && *unsubscribed
	if timezone != nil {
		s.Timezone = *timezone
	}
	if hour != nil && minute != nil {
		s.DeliveryTimePreference = &domain.TimeOfDay{Hour: int(*hour), Minute: int(*minute)}
	}
	return s, nil
}

// buildSubscriberWhere builds a parameterised WHERE clause. Eligibility is
// always part of it.
func buildSubscriberWhere(f domain.SubscriberFilter, token string) (string, []any) {
	conditions := []string{"confirmed = TRUE", "unsubscribed IS NOT TRUE"}
	var args []any

	add := func(condition string, val any) {
		args = append(args, val)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if f.TagName != "" {
		add("$%d = ANY(tags)", f.TagName)
	}
	if f.NewerThan != nil {
		add("joined > $%d", *f.NewerThan)
	}
	if token != "" {
		add("subscriber_id > $%d", token)
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}
