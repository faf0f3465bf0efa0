package repository_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifyhub/rss-broadcaster/internal/domain"
	"github.com/notifyhub/rss-broadcaster/internal/repository"
)

func TestMockSettingsRepository_SwapIf(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMockSettingsRepository()

	ok, err := repo.SwapIf(ctx, "lock", false, true)
	require.NoError(t, err)
	assert.True(t, ok, "absent row must accept the swap")

	ok, err = repo.SwapIf(ctx, "lock", false, true)
	require.NoError(t, err)
	assert.False(t, ok, "held value must reject the swap")

	require.NoError(t, repo.Put(ctx, "lock", false))
	ok, err = repo.SwapIf(ctx, "lock", false, true)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Len(t, repo.History("lock"), 3)
}

func TestMockSettingsRepository_GetMissing(t *testing.T) {
	_, err := repository.NewMockSettingsRepository().Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMockSubscriberRepository_Pagination(t *testing.T) {
	var subs []domain.Subscriber
	for i := 0; i < 7; i++ {
		subs = append(subs, domain.Subscriber{SubscriberID: fmt.Sprintf("s%02d", i), Confirmed: true})
	}
	repo := repository.NewMockSubscriberRepository(subs...)
	ctx := context.Background()

	page, err := repo.Scan(ctx, domain.SubscriberFilter{}, "", 3)
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
	assert.Equal(t, "s02", page.NextToken)

	page, err = repo.Scan(ctx, domain.SubscriberFilter{}, "s05", 3)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Empty(t, page.NextToken)
}
