package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/rss-broadcaster/internal/domain"
	"github.com/notifyhub/rss-broadcaster/internal/ratelimiter"
)

const insertQueueItem = `
	INSERT INTO queue
		(id, type, subscriber_id, subscriber, template_id, params, tag_reason,
		 queue_placement, run_at, run_at_modified, attempts, failed, completed)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`

type pgQueueRepository struct {
	pool     *pgxpool.Pool
	capacity *ratelimiter.WriteCapacity
}

// NewPgQueueRepository returns a QueueRepository backed by PostgreSQL.
// Each call waits for write capacity to admit at least one item; items
// beyond what it admits are reported as unprocessed. A nil capacity is
// unlimited.
func NewPgQueueRepository(pool *pgxpool.Pool, capacity *ratelimiter.WriteCapacity) QueueRepository {
	return &pgQueueRepository{pool: pool, capacity: capacity}
}

func (r *pgQueueRepository) BatchWrite(ctx context.Context, items []*domain.QueueItem) (domain.BatchWriteResult, error) {
	granted, err := r.capacity.Grant(ctx, len(items))
	if err != nil {
		return domain.BatchWriteResult{}, &domain.WriteError{Retryable: true, Err: fmt.Errorf("wait for write capacity: %w", err)}
	}
	if granted == 0 {
		return domain.BatchWriteResult{}, nil
	}

	write := items[:granted]
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, it := range write {
			batch.Queue(insertQueueItem,
				it.ID, it.Type, it.SubscriberID, it.Subscriber, it.TemplateID, it.Params,
				nullStr(it.TagReason), it.QueuePlacement, it.RunAt, it.RunAtModified,
				it.Attempts, it.Failed, it.Completed,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return domain.BatchWriteResult{}, classifyWriteError(err)
	}

	res := domain.BatchWriteResult{Written: granted}
	if granted < len(items) {
		res.Unprocessed = items[granted:]
	}
	return res, nil
}

func nullStr(v string) any {
	if v == "" {
		return nil
	}
	return v
}
