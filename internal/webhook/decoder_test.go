package webhook

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dkolesni/billing-sync/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkoutPayload(accountID, planID, subscription string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_checkout_1",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_test_1",
				"subscription": %q,
				"metadata": {"account_id": %q, "plan_id": %q}
			}
		}
	}`, subscription, accountID, planID))
}

func subscriptionPayload(eventType, subID, status string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_sub_1",
		"type": %q,
		"data": {
			"object": {"id": %q, "status": %q}
		}
	}`, eventType, subID, status))
}

func TestDecodeCheckoutCompleted(t *testing.T) {
	accountID := uuid.New()
	event, err := Decode(checkoutPayload(accountID.String(), "pro", "sub_123"))
	require.NoError(t, err)

	assert.Equal(t, "evt_checkout_1", event.ID)
	assert.Equal(t, domain.EventCheckoutCompleted, event.Kind)
	require.NotNil(t, event.Checkout)
	assert.Equal(t, accountID, event.Checkout.AccountID)
	assert.Equal(t, "sub_123", event.Checkout.SubscriptionID)
	assert.Equal(t, "pro", event.Checkout.PlanID)
}

func TestDecodeCheckoutMissingFields(t *testing.T) {
	accountID := uuid.New().String()

	cases := map[string]struct {
		payload []byte
		field   string
	}{
		"missing account_id": {checkoutPayload("", "pro", "sub_123"), "metadata.account_id"},
		"bad account_id":     {checkoutPayload("not-a-uuid", "pro", "sub_123"), "metadata.account_id"},
		"missing plan_id":    {checkoutPayload(accountID, "", "sub_123"), "metadata.plan_id"},
		"missing sub ref":    {checkoutPayload(accountID, "pro", ""), "subscription"},
		"empty data.object":  {[]byte(`{"id":"evt_1","type":"checkout.session.completed","data":{}}`), "data.object"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(tc.payload)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrMalformedPayload)

			var decodeErr *domain.DecodeError
			require.True(t, errors.As(err, &decodeErr))
			assert.Equal(t, tc.field, decodeErr.Field)
		})
	}
}

func TestDecodeSubscriptionUpdated(t *testing.T) {
	event, err := Decode(subscriptionPayload("customer.subscription.updated", "sub_123", "past_due"))
	require.NoError(t, err)

	assert.Equal(t, domain.EventSubscriptionUpdated, event.Kind)
	require.NotNil(t, event.Subscription)
	assert.Equal(t, "sub_123", event.Subscription.SubscriptionID)
	assert.Equal(t, "past_due", event.Subscription.Status)
}

func TestDecodeSubscriptionUpdatedMissingStatus(t *testing.T) {
	_, err := Decode(subscriptionPayload("customer.subscription.updated", "sub_123", ""))
	require.Error(t, err)

	var decodeErr *domain.DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "status", decodeErr.Field)
}

func TestDecodeSubscriptionDeleted(t *testing.T) {
	// Stripe reports a status on deletion events, but the decoder does
	// not require one.
	event, err := Decode(subscriptionPayload("customer.subscription.deleted", "sub_123", ""))
	require.NoError(t, err)

	assert.Equal(t, domain.EventSubscriptionDeleted, event.Kind)
	require.NotNil(t, event.Subscription)
	assert.Equal(t, "sub_123", event.Subscription.SubscriptionID)
}

func TestDecodeSubscriptionMissingID(t *testing.T) {
	_, err := Decode(subscriptionPayload("customer.subscription.updated", "", "active"))
	require.Error(t, err)

	var decodeErr *domain.DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "id", decodeErr.Field)
}

func TestDecodeUnknownEventType(t *testing.T) {
	event, err := Decode([]byte(`{"id":"evt_other","type":"invoice.payment_succeeded","data":{"object":{}}}`))
	require.NoError(t, err)

	assert.Equal(t, domain.EventOther, event.Kind)
	assert.Equal(t, "evt_other", event.ID)
	assert.Nil(t, event.Checkout)
	assert.Nil(t, event.Subscription)
}

func TestDecodeMalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`{"id": "evt_1", "type":`))
	assert.ErrorIs(t, err, domain.ErrMalformedPayload)
}
