package repository

import (
	"context"
	"testing"

	"github.com/dkolesni/billing-sync/internal/domain"
	"github.com/dkolesni/billing-sync/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCachedRepoEnv(t *testing.T) (AccountRepository, *InMemoryAccountRepository, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	log := logger.New("test")

	cache, err := NewRedisCacheRepository(mr.Addr(), "", 0, log)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	base := NewInMemoryAccountRepository()
	return NewCachedAccountRepository(base, cache, log), base, mr
}

func seedSubscribed(base *InMemoryAccountRepository, status domain.SubscriptionStatus) domain.Account {
	acc := domain.Account{
		ID:                   uuid.New(),
		Email:                "user@example.com",
		StripeSubscriptionID: "sub_1",
		PlanID:               "pro",
		Status:               status,
	}
	base.Seed(acc)
	return acc
}

func TestCachedRepoReadThroughByID(t *testing.T) {
	cached, base, mr := newCachedRepoEnv(t)
	acc := seedSubscribed(base, domain.SubscriptionStatusActive)

	got, err := cached.GetByID(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)

	// Промах заполнил оба ключа
	assert.True(t, mr.Exists(accountKeyPrefix+acc.ID.String()))
	assert.True(t, mr.Exists(subscriptionRefKeyPrefix+"sub_1"))
}

func TestCachedRepoReadThroughBySubscriptionRef(t *testing.T) {
	cached, base, mr := newCachedRepoEnv(t)
	acc := seedSubscribed(base, domain.SubscriptionStatusActive)

	got, err := cached.GetByStripeSubscriptionID(context.Background(), "sub_1")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)
	assert.True(t, mr.Exists(subscriptionRefKeyPrefix+"sub_1"))
}

func TestCachedRepoActivateInvalidates(t *testing.T) {
	cached, base, mr := newCachedRepoEnv(t)
	acc := seedSubscribed(base, domain.SubscriptionStatusCanceled)

	_, err := cached.GetByID(context.Background(), acc.ID)
	require.NoError(t, err)
	require.True(t, mr.Exists(accountKeyPrefix+acc.ID.String()))

	require.NoError(t, cached.ActivateSubscription(context.Background(), acc.ID, "sub_1", "pro", "evt_1"))

	assert.False(t, mr.Exists(accountKeyPrefix+acc.ID.String()))
	assert.False(t, mr.Exists(subscriptionRefKeyPrefix+"sub_1"))

	got, err := cached.GetByID(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, got.Status)
}

func TestCachedRepoUpdateStatusInvalidates(t *testing.T) {
	cached, base, mr := newCachedRepoEnv(t)
	acc := seedSubscribed(base, domain.SubscriptionStatusActive)

	_, err := cached.GetByID(context.Background(), acc.ID)
	require.NoError(t, err)

	updated, err := cached.UpdateStatus(context.Background(), acc.ID,
		domain.SubscriptionStatusActive, domain.SubscriptionStatusPastDue, "evt_1")
	require.NoError(t, err)
	require.True(t, updated)

	assert.False(t, mr.Exists(accountKeyPrefix+acc.ID.String()))
	assert.False(t, mr.Exists(subscriptionRefKeyPrefix+"sub_1"))
}

func TestCachedRepoGuardFailureInvalidatesStaleEntry(t *testing.T) {
	cached, base, mr := newCachedRepoEnv(t)
	acc := seedSubscribed(base, domain.SubscriptionStatusActive)

	// Прогреваем кеш снимком со статусом active
	_, err := cached.GetByStripeSubscriptionID(context.Background(), "sub_1")
	require.NoError(t, err)

	// Конкурентная запись уходит в БД мимо этого экземпляра кеша
	updated, err := base.UpdateStatus(context.Background(), acc.ID,
		domain.SubscriptionStatusActive, domain.SubscriptionStatusPastDue, "evt_race")
	require.NoError(t, err)
	require.True(t, updated)
	require.True(t, mr.Exists(subscriptionRefKeyPrefix+"sub_1"), "cache still holds the stale snapshot")

	// Guard на устаревший active проигрывает, но устаревшая запись
	// кеша не должна пережить проигрыш
	updated, err = cached.UpdateStatus(context.Background(), acc.ID,
		domain.SubscriptionStatusActive, domain.SubscriptionStatusCanceled, "evt_1")
	require.NoError(t, err)
	assert.False(t, updated)

	assert.False(t, mr.Exists(accountKeyPrefix+acc.ID.String()))
	assert.False(t, mr.Exists(subscriptionRefKeyPrefix+"sub_1"))

	// Следующее чтение видит реальное состояние БД
	got, err := cached.GetByStripeSubscriptionID(context.Background(), "sub_1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusPastDue, got.Status)
}
