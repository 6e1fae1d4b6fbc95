package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus статус подписки аккаунта
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// providerStatusMap is the fixed translation table from Stripe-reported
// subscription statuses to internal ones. Anything not listed here
// leaves the account status unchanged.
var providerStatusMap = map[string]SubscriptionStatus{
	"active":   SubscriptionStatusActive,
	"trialing": SubscriptionStatusTrialing,
	"past_due": SubscriptionStatusPastDue,
	"canceled": SubscriptionStatusCanceled,
	"unpaid":   SubscriptionStatusCanceled,
}

// StatusFromProvider maps a provider status string to an internal
// SubscriptionStatus. The second return value reports whether the
// string is recognized; unrecognized statuses are a deliberate no-op
// for the caller, not an error.
func StatusFromProvider(s string) (SubscriptionStatus, bool) {
	status, ok := providerStatusMap[s]
	return status, ok
}

// Account представляет аккаунт с биллинговой привязкой к Stripe.
// Rows are created during onboarding outside this service; billing-sync
// only ever mutates the subscription-related fields.
type Account struct {
	ID                   uuid.UUID          `db:"account_id" json:"id"`
	Email                string             `db:"email" json:"email"`
	StripeCustomerID     string             `db:"stripe_customer_id" json:"stripe_customer_id"`
	StripeSubscriptionID string             `db:"stripe_subscription_id" json:"stripe_subscription_id,omitempty"`
	PlanID               string             `db:"plan_id" json:"plan_id,omitempty"`
	Status               SubscriptionStatus `db:"status" json:"status,omitempty"`
	// LastEventID is the provider event id of the most recent applied
	// subscription change. Observability only, it does not gate writes.
	LastEventID string    `db:"last_event_id" json:"last_event_id,omitempty"`
	Version     int64     `db:"version" json:"version"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Subscribed reports whether the account has completed a checkout at
// least once.
func (a *Account) Subscribed() bool {
	return a.StripeSubscriptionID != ""
}
