package broadcast

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/notifyhub/rss-broadcaster/internal/domain"
	"github.com/notifyhub/rss-broadcaster/internal/repository"
)

const DefaultPageSize = 1000

// SubscriberSource reads the complete set of eligible subscribers for a
// broadcast, one page at a time.
type SubscriberSource struct {
	repo     repository.SubscriberRepository
	pageSize int
	logger   *zap.Logger
}

func NewSubscriberSource(repo repository.SubscriberRepository, pageSize int, logger *zap.Logger) *SubscriberSource {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &SubscriberSource{repo: repo, pageSize: pageSize, logger: logger}
}

// FetchAll follows continuation tokens until the store reports none. A
// failed page aborts the whole fetch; partial results are discarded.
func (s *SubscriberSource) FetchAll(ctx context.Context, filter domain.SubscriberFilter) ([]domain.Subscriber, error) {
	var (
		all   []domain.Subscriber
		token string
	)
	for pageNum := 1; ; pageNum++ {
		page, err := s.repo.Scan(ctx, filter, token, s.pageSize)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %w", domain.ErrStoreFetch, pageNum, err)
		}
		all = append(all, page.Items...)
		s.logger.Debug("fetched subscriber page",
			zap.Int("page", pageNum),
			zap.Int("items", len(page.Items)),
			zap.Int("total", len(all)),
		)
		if page.NextToken == "" {
			return all, nil
		}
		token = page.NextToken
	}
}
