package webhook

import (
	"encoding/json"
	"strings"

	"github.com/dkolesni/billing-sync/internal/domain"
	"github.com/google/uuid"
)

// Stripe event types consumed by this service. Everything else decodes
// to domain.EventOther.
const (
	typeCheckoutCompleted   = "checkout.session.completed"
	typeSubscriptionUpdated = "customer.subscription.updated"
	typeSubscriptionDeleted = "customer.subscription.deleted"
)

// stripeEnvelope is the outer shape every Stripe event shares.
type stripeEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// checkoutSessionObject is the subset of a checkout.session object the
// reconciler needs. Metadata carries back the account_id/plan_id pair
// attached at session creation.
type checkoutSessionObject struct {
	ID           string            `json:"id"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

// subscriptionObject is the subset of a customer.subscription object
// the reconciler needs.
type subscriptionObject struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Decode parses a verified payload into a typed domain.Event. Pure
// function: no I/O, no mutation.
//
// Unknown event types yield Kind=EventOther and a nil error — the
// provider grows new event types over time and they must be
// acknowledged, not rejected. Known types with absent or ill-shaped
// required fields fail with *domain.DecodeError naming the field; a
// body that is not well-formed JSON fails with
// domain.ErrMalformedPayload.
func Decode(payload []byte) (domain.Event, error) {
	var envelope stripeEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return domain.Event{}, domain.ErrMalformedPayload
	}

	switch envelope.Type {
	case typeCheckoutCompleted:
		return decodeCheckoutCompleted(envelope)
	case typeSubscriptionUpdated:
		return decodeSubscriptionChange(envelope, domain.EventSubscriptionUpdated)
	case typeSubscriptionDeleted:
		return decodeSubscriptionChange(envelope, domain.EventSubscriptionDeleted)
	default:
		return domain.Event{ID: envelope.ID, Kind: domain.EventOther}, nil
	}
}

func decodeCheckoutCompleted(envelope stripeEnvelope) (domain.Event, error) {
	if len(envelope.Data.Object) == 0 {
		return domain.Event{}, domain.NewDecodeError("data.object")
	}

	var session checkoutSessionObject
	if err := json.Unmarshal(envelope.Data.Object, &session); err != nil {
		return domain.Event{}, domain.NewDecodeError("data.object")
	}

	accountRaw, ok := session.Metadata["account_id"]
	if !ok || strings.TrimSpace(accountRaw) == "" {
		return domain.Event{}, domain.NewDecodeError("metadata.account_id")
	}
	accountID, err := uuid.Parse(accountRaw)
	if err != nil {
		return domain.Event{}, domain.NewDecodeError("metadata.account_id")
	}

	planID, ok := session.Metadata["plan_id"]
	if !ok || strings.TrimSpace(planID) == "" {
		return domain.Event{}, domain.NewDecodeError("metadata.plan_id")
	}

	if strings.TrimSpace(session.Subscription) == "" {
		return domain.Event{}, domain.NewDecodeError("subscription")
	}

	return domain.Event{
		ID:   envelope.ID,
		Kind: domain.EventCheckoutCompleted,
		Checkout: &domain.CheckoutCompletedData{
			AccountID:      accountID,
			SubscriptionID: session.Subscription,
			PlanID:         planID,
		},
	}, nil
}

func decodeSubscriptionChange(envelope stripeEnvelope, kind domain.EventKind) (domain.Event, error) {
	if len(envelope.Data.Object) == 0 {
		return domain.Event{}, domain.NewDecodeError("data.object")
	}

	var sub subscriptionObject
	if err := json.Unmarshal(envelope.Data.Object, &sub); err != nil {
		return domain.Event{}, domain.NewDecodeError("data.object")
	}

	if strings.TrimSpace(sub.ID) == "" {
		return domain.Event{}, domain.NewDecodeError("id")
	}
	// The deleted event forces status to canceled in the router, so the
	// payload status is only mandatory for updates.
	if kind == domain.EventSubscriptionUpdated && strings.TrimSpace(sub.Status) == "" {
		return domain.Event{}, domain.NewDecodeError("status")
	}

	return domain.Event{
		ID:   envelope.ID,
		Kind: kind,
		Subscription: &domain.SubscriptionStatusData{
			SubscriptionID: sub.ID,
			Status:         sub.Status,
		},
	}, nil
}
