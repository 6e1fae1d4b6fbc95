package repository

import (
	"context"

	"github.com/dkolesni/billing-sync/internal/domain"
	"github.com/dkolesni/billing-sync/pkg/logger"
	"github.com/google/uuid"
)

// CachedAccountRepository реализует AccountRepository с кешированием.
// Read-through on both lookup paths; every write invalidates the cache
// instead of refreshing it, since the row version changes server-side.
type CachedAccountRepository struct {
	repo  AccountRepository
	cache *RedisCacheRepository
	log   *logger.Logger
}

// NewCachedAccountRepository создает новый репозиторий с кешированием.
func NewCachedAccountRepository(
	repo AccountRepository,
	cache *RedisCacheRepository,
	log *logger.Logger,
) AccountRepository {
	return &CachedAccountRepository{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// GetByID получает аккаунт (сначала из кеша, потом из БД).
func (r *CachedAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	cached, err := r.cache.GetCachedAccountByID(ctx, id)
	if err != nil {
		r.log.Warnw("Error getting account from cache", "error", err, "accountID", id)
		// Ошибка кеша не прерывает поиск.
	}
	if cached != nil {
		return cached, nil
	}

	acc, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if cacheErr := r.cache.CacheAccount(ctx, acc); cacheErr != nil {
		r.log.Warnw("Failed to cache account after fetch", "error", cacheErr, "accountID", id)
	}
	return acc, nil
}

// GetByStripeSubscriptionID получает аккаунт по ссылке подписки.
func (r *CachedAccountRepository) GetByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*domain.Account, error) {
	cached, err := r.cache.GetCachedAccountBySubscriptionID(ctx, subscriptionID)
	if err != nil {
		r.log.Warnw("Error getting account from cache", "error", err, "subscriptionID", subscriptionID)
	}
	if cached != nil {
		return cached, nil
	}

	acc, err := r.repo.GetByStripeSubscriptionID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	if cacheErr := r.cache.CacheAccount(ctx, acc); cacheErr != nil {
		r.log.Warnw("Failed to cache account after fetch", "error", cacheErr, "subscriptionID", subscriptionID)
	}
	return acc, nil
}

// ActivateSubscription записывает в БД и инвалидирует кеш.
func (r *CachedAccountRepository) ActivateSubscription(ctx context.Context, id uuid.UUID, stripeSubscriptionID, planID, eventID string) error {
	if err := r.repo.ActivateSubscription(ctx, id, stripeSubscriptionID, planID, eventID); err != nil {
		return err
	}
	if err := r.cache.InvalidateAccount(ctx, id, stripeSubscriptionID); err != nil {
		r.log.Warnw("Failed to invalidate cache after activation", "error", err, "accountID", id)
	}
	return nil
}

// UpdateStatus записывает в БД и инвалидирует кеш. Invalidation happens
// on guard failure too: a failed guard usually means the caller read a
// stale cache snapshot, and leaving that entry in place would make every
// following delivery for the account fail the same way until TTL expiry.
func (r *CachedAccountRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.SubscriptionStatus, eventID string) (bool, error) {
	updated, err := r.repo.UpdateStatus(ctx, id, from, to, eventID)
	if err != nil {
		return false, err
	}
	r.invalidate(ctx, id)
	return updated, nil
}

// invalidate удаляет оба ключа кеша аккаунта. Ссылку подписки для
// второго ключа берем из основного хранилища, минуя кеш.
func (r *CachedAccountRepository) invalidate(ctx context.Context, id uuid.UUID) {
	subscriptionID := ""
	if acc, err := r.repo.GetByID(ctx, id); err == nil {
		subscriptionID = acc.StripeSubscriptionID
	}
	if err := r.cache.InvalidateAccount(ctx, id, subscriptionID); err != nil {
		r.log.Warnw("Failed to invalidate account cache", "error", err, "accountID", id)
	}
}
