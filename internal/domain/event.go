package domain

import "github.com/google/uuid"

// EventKind тип вебхук-события после декодирования
type EventKind string

const (
	EventCheckoutCompleted   EventKind = "checkout_completed"
	EventSubscriptionUpdated EventKind = "subscription_updated"
	EventSubscriptionDeleted EventKind = "subscription_deleted"

	// EventOther covers every provider event type this service does not
	// consume. Such events are acknowledged and dropped.
	EventOther EventKind = "other"
)

// CheckoutCompletedData is the correlation payload of a completed
// checkout session. AccountID and PlanID come back from the metadata
// attached when the session was created.
type CheckoutCompletedData struct {
	AccountID      uuid.UUID
	SubscriptionID string
	PlanID         string
}

// SubscriptionStatusData is the correlation payload of a subscription
// update or deletion. Status carries the provider-reported string
// untranslated.
type SubscriptionStatusData struct {
	SubscriptionID string
	Status         string
}

// Event представляет декодированное и верифицированное событие Stripe.
// Exactly one of the payload pointers is set, matching Kind; for
// EventOther both are nil. Events are immutable and never persisted.
type Event struct {
	ID   string
	Kind EventKind

	Checkout     *CheckoutCompletedData
	Subscription *SubscriptionStatusData
}
