package service

import (
	"context"
	"errors"
	"time"

	"github.com/dkolesni/billing-sync/internal/domain"
	"github.com/dkolesni/billing-sync/internal/kafka"
	"github.com/dkolesni/billing-sync/internal/metrics"
	"github.com/dkolesni/billing-sync/internal/repository"
	"github.com/dkolesni/billing-sync/pkg/logger"
)

// Reconciler applies decoded provider events to account subscription
// state. Both operations are idempotent under redelivery and safe under
// concurrent delivery of different events for the same account
// (last-delivered-wins via the repository's conditional write).
type Reconciler struct {
	accounts repository.AccountRepository
	producer kafka.Producer
	metrics  metrics.WebhookMetrics
	log      *logger.Logger
}

// NewReconciler создает новый реконсилятор подписок.
func NewReconciler(
	accounts repository.AccountRepository,
	producer kafka.Producer,
	m metrics.WebhookMetrics,
	log *logger.Logger,
) *Reconciler {
	return &Reconciler{
		accounts: accounts,
		producer: producer,
		metrics:  m,
		log:      log,
	}
}

// ApplyCheckout записывает результат завершенного checkout: внешнюю
// ссылку подписки, план и статус active одним атомарным обновлением.
//
// A missing account is surfaced as domain.ErrAccountNotFound so the
// delivery is NACKed and the provider retries: the metadata referenced
// an account this system should know about, which is a data-integrity
// gap, possibly a transient onboarding race.
func (r *Reconciler) ApplyCheckout(ctx context.Context, eventID string, data domain.CheckoutCompletedData) error {
	acc, err := r.accounts.GetByID(ctx, data.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.log.Warnw("Checkout completed for unknown account",
				"accountID", data.AccountID, "event_id", eventID)
			r.metrics.IncReconcile("apply_checkout", metrics.OutcomeFailed)
			return domain.ErrAccountNotFound
		}
		r.metrics.IncReconcile("apply_checkout", metrics.OutcomeFailed)
		return domain.NewStoreError("account lookup", err)
	}

	// Redelivery of the same checkout carries identical values; skip
	// the write so updated_at and version stay put.
	if acc.Status == domain.SubscriptionStatusActive &&
		acc.StripeSubscriptionID == data.SubscriptionID &&
		acc.PlanID == data.PlanID {
		r.log.Debugw("Checkout already applied, skipping",
			"accountID", data.AccountID, "subscriptionID", data.SubscriptionID, "event_id", eventID)
		r.metrics.IncReconcile("apply_checkout", metrics.OutcomeDuplicate)
		return nil
	}

	if err := r.accounts.ActivateSubscription(ctx, data.AccountID, data.SubscriptionID, data.PlanID, eventID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.metrics.IncReconcile("apply_checkout", metrics.OutcomeFailed)
			return domain.ErrAccountNotFound
		}
		r.metrics.IncReconcile("apply_checkout", metrics.OutcomeFailed)
		return domain.NewStoreError("subscription activation", err)
	}

	r.log.Infow("Subscription activated",
		"accountID", data.AccountID, "subscriptionID", data.SubscriptionID, "planID", data.PlanID)
	r.metrics.IncReconcile("apply_checkout", metrics.OutcomeOK)

	r.publish(ctx, kafka.TopicSubscriptionActivated, kafka.SubscriptionEvent{
		AccountID:      data.AccountID.String(),
		SubscriptionID: data.SubscriptionID,
		PlanID:         data.PlanID,
		Status:         domain.SubscriptionStatusActive,
		ProviderEvent:  eventID,
		OccurredAt:     time.Now(),
	})
	return nil
}

// ApplyStatusChange применяет провайдерский статус к аккаунту,
// найденному по внешней ссылке подписки.
//
// Benign no-ops, all acknowledged as success:
//   - unknown subscription ref (checkout event not landed yet, or a
//     subscription this system never onboarded);
//   - unrecognized provider status string;
//   - status already current;
//   - conditional write lost against a concurrent delivery.
func (r *Reconciler) ApplyStatusChange(ctx context.Context, eventID string, data domain.SubscriptionStatusData) error {
	acc, err := r.accounts.GetByStripeSubscriptionID(ctx, data.SubscriptionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.log.Warnw("Status change for unknown subscription ref, ignoring",
				"subscriptionID", data.SubscriptionID, "event_id", eventID)
			r.metrics.IncReconcile("apply_status_change", metrics.OutcomeOrphaned)
			return nil
		}
		r.metrics.IncReconcile("apply_status_change", metrics.OutcomeFailed)
		return domain.NewStoreError("account lookup by subscription ref", err)
	}

	target, ok := domain.StatusFromProvider(data.Status)
	if !ok {
		r.log.Warnw("Unrecognized provider status, leaving account unchanged",
			"status", data.Status, "accountID", acc.ID, "event_id", eventID)
		r.metrics.IncReconcile("apply_status_change", metrics.OutcomeUnknownStatus)
		return nil
	}

	// Один повтор со свежим чтением: проигрыш guard-а чаще означает,
	// что исходный статус пришел из устаревшего кеша, а не реальную
	// конкурентную доставку. Без повтора событие молча теряется —
	// провайдер получил 200 и не повторит.
	const maxWriteAttempts = 2
	for attempt := 1; ; attempt++ {
		if acc.Status == target {
			r.log.Debugw("Status already current, skipping",
				"accountID", acc.ID, "status", target, "event_id", eventID)
			r.metrics.IncReconcile("apply_status_change", metrics.OutcomeDuplicate)
			return nil
		}

		updated, err := r.accounts.UpdateStatus(ctx, acc.ID, acc.Status, target, eventID)
		if err != nil {
			r.metrics.IncReconcile("apply_status_change", metrics.OutcomeFailed)
			return domain.NewStoreError("status update", err)
		}
		if updated {
			break
		}
		if attempt >= maxWriteAttempts {
			// Свежее чтение тоже проиграло — статус действительно
			// меняется параллельной доставкой. Last-delivered-wins:
			// значение другого писателя остается.
			r.log.Debugw("Status update lost race with concurrent delivery",
				"accountID", acc.ID, "target", target, "event_id", eventID)
			r.metrics.IncReconcile("apply_status_change", metrics.OutcomeLostRace)
			return nil
		}

		fresh, err := r.accounts.GetByID(ctx, acc.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				r.metrics.IncReconcile("apply_status_change", metrics.OutcomeOrphaned)
				return nil
			}
			r.metrics.IncReconcile("apply_status_change", metrics.OutcomeFailed)
			return domain.NewStoreError("account lookup", err)
		}
		acc = fresh
	}

	r.log.Infow("Subscription status updated",
		"accountID", acc.ID, "from", acc.Status, "to", target, "event_id", eventID)
	r.metrics.IncReconcile("apply_status_change", metrics.OutcomeOK)

	r.publish(ctx, kafka.TopicSubscriptionStatusChanged, kafka.SubscriptionEvent{
		AccountID:      acc.ID.String(),
		SubscriptionID: data.SubscriptionID,
		PlanID:         acc.PlanID,
		Status:         target,
		ProviderEvent:  eventID,
		OccurredAt:     time.Now(),
	})
	return nil
}

// publish отправляет событие в Kafka. Publish failures never fail the
// webhook ack: the account write already happened, and a NACK would
// make the provider redeliver an event whose write is now a no-op,
// so the record would never be retried anyway.
func (r *Reconciler) publish(ctx context.Context, topic string, event kafka.SubscriptionEvent) {
	if err := r.producer.PublishSubscriptionEvent(ctx, topic, event); err != nil {
		r.log.Errorw("Failed to publish subscription event",
			"error", err, "topic", topic, "accountID", event.AccountID)
	}
}
