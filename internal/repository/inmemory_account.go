package repository

import (
	"context"
	"sync"
	"time"

	"github.com/dkolesni/billing-sync/internal/domain"
	"github.com/google/uuid"
)

// InMemoryAccountRepository реализация репозитория аккаунтов в памяти.
// Used by tests as the store fake. The single mutex
// makes every lookup+write pair atomic, which over-delivers on the
// per-account atomicity the interface demands.
type InMemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]domain.Account
}

// NewInMemoryAccountRepository создает новый репозиторий аккаунтов в памяти.
func NewInMemoryAccountRepository() *InMemoryAccountRepository {
	return &InMemoryAccountRepository{
		accounts: make(map[uuid.UUID]domain.Account),
	}
}

// Seed inserts an account, overwriting any previous row with the same id.
func (r *InMemoryAccountRepository) Seed(acc domain.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now()
	}
	acc.UpdatedAt = time.Now()
	r.accounts[acc.ID] = acc
}

// GetByID возвращает аккаунт по внутреннему ID.
func (r *InMemoryAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acc, ok := r.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := acc
	return &copied, nil
}

// GetByStripeSubscriptionID возвращает аккаунт по внешней ссылке подписки.
func (r *InMemoryAccountRepository) GetByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, acc := range r.accounts {
		if acc.StripeSubscriptionID == subscriptionID {
			copied := acc
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

// ActivateSubscription перезаписывает поля подписки.
func (r *InMemoryAccountRepository) ActivateSubscription(ctx context.Context, id uuid.UUID, stripeSubscriptionID, planID, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[id]
	if !ok {
		return ErrNotFound
	}

	acc.StripeSubscriptionID = stripeSubscriptionID
	acc.PlanID = planID
	acc.Status = domain.SubscriptionStatusActive
	acc.LastEventID = eventID
	acc.Version++
	acc.UpdatedAt = time.Now()
	r.accounts[id] = acc
	return nil
}

// UpdateStatus выполняет условное обновление статуса.
func (r *InMemoryAccountRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.SubscriptionStatus, eventID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[id]
	if !ok {
		return false, nil
	}
	if acc.Status != from {
		// Guard lost: another delivery changed the status first.
		return false, nil
	}

	acc.Status = to
	acc.LastEventID = eventID
	acc.Version++
	acc.UpdatedAt = time.Now()
	r.accounts[id] = acc
	return true, nil
}
