package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dkolesni/billing-sync/internal/domain"
	"github.com/dkolesni/billing-sync/pkg/logger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// postgresAccountRepo реализует AccountRepository для PostgreSQL.
type postgresAccountRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresAccountRepository создает новый экземпляр репозитория для PostgreSQL.
func NewPostgresAccountRepository(db *sqlx.DB, log *logger.Logger) AccountRepository {
	return &postgresAccountRepo{
		db:  db,
		log: log,
	}
}

const accountColumns = `
        account_id, email, stripe_customer_id, stripe_subscription_id,
        plan_id, status, last_event_id, version, created_at, updated_at`

// GetByID возвращает аккаунт по внутреннему ID.
func (r *postgresAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var acc domain.Account
	query := `SELECT` + accountColumns + `
        FROM accounts
        WHERE account_id = $1`

	err := r.db.GetContext(ctx, &acc, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to get account by ID from DB", "error", err, "accountID", id)
		return nil, fmt.Errorf("repository: failed to get account by id: %w", err)
	}

	return &acc, nil
}

// GetByStripeSubscriptionID возвращает аккаунт по внешней ссылке подписки.
func (r *postgresAccountRepo) GetByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*domain.Account, error) {
	var acc domain.Account
	query := `SELECT` + accountColumns + `
        FROM accounts
        WHERE stripe_subscription_id = $1`

	err := r.db.GetContext(ctx, &acc, query, subscriptionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to get account by subscription ref from DB", "error", err, "subscriptionID", subscriptionID)
		return nil, fmt.Errorf("repository: failed to get account by subscription ref: %w", err)
	}

	return &acc, nil
}

// ActivateSubscription перезаписывает поля подписки одним UPDATE.
// A single statement keeps the write atomic under concurrent
// deliveries; re-applying the same event rewrites identical values.
func (r *postgresAccountRepo) ActivateSubscription(ctx context.Context, id uuid.UUID, stripeSubscriptionID, planID, eventID string) error {
	query := `
        UPDATE accounts
        SET stripe_subscription_id = $1,
            plan_id                = $2,
            status                 = $3,
            last_event_id          = $4,
            version                = version + 1,
            updated_at             = NOW()
        WHERE account_id = $5`

	result, err := r.db.ExecContext(ctx, query,
		stripeSubscriptionID, planID, domain.SubscriptionStatusActive, eventID, id)
	if err != nil {
		r.log.Errorw("Failed to activate subscription in DB", "error", err, "accountID", id)
		return fmt.Errorf("repository: failed to activate subscription: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	r.log.Debugw("Activated subscription in DB", "accountID", id, "subscriptionID", stripeSubscriptionID, "planID", planID)
	return nil
}

// UpdateStatus выполняет условное обновление статуса (compare-and-set).
// The WHERE guard on the current status makes the lookup+write pair
// atomic for a single account without an explicit row lock.
func (r *postgresAccountRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.SubscriptionStatus, eventID string) (bool, error) {
	query := `
        UPDATE accounts
        SET status        = $1,
            last_event_id = $2,
            version       = version + 1,
            updated_at    = NOW()
        WHERE account_id = $3
          AND status     = $4`

	result, err := r.db.ExecContext(ctx, query, to, eventID, id, from)
	if err != nil {
		r.log.Errorw("Failed to update account status in DB", "error", err, "accountID", id)
		return false, fmt.Errorf("repository: failed to update account status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("repository: failed to read rows affected: %w", err)
	}

	return rows > 0, nil
}
