package repository

import (
	"context"
	"errors"

	"github.com/dkolesni/billing-sync/internal/domain"
	"github.com/google/uuid"
)

var (
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("record not found")

	// ErrInvalidData неверные данные
	ErrInvalidData = errors.New("invalid data")
)

// AccountRepository is the narrow account-store contract the reconciler
// depends on. Implementations must make each write atomic with respect
// to concurrent writes on the same account; cross-account operations
// never block each other.
type AccountRepository interface {
	// GetByID возвращает аккаунт по внутреннему ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)

	// GetByStripeSubscriptionID возвращает аккаунт по внешней ссылке подписки
	GetByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*domain.Account, error)

	// ActivateSubscription atomically overwrites the subscription
	// fields after a completed checkout: external ref, plan, status
	// active, last applied event. Overwrite semantics make redelivery a
	// no-op by construction.
	ActivateSubscription(ctx context.Context, id uuid.UUID, stripeSubscriptionID, planID, eventID string) error

	// UpdateStatus conditionally moves the account from status `from`
	// to `to`. Returns false without error when the guard no longer
	// holds (a concurrent reconciliation won the race) — last-delivered
	// wins and the loser's write is dropped.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.SubscriptionStatus, eventID string) (bool, error)
}
