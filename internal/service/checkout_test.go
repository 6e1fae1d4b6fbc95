package service

import (
	"context"
	"testing"

	"github.com/dkolesni/billing-sync/internal/domain"
	"github.com/dkolesni/billing-sync/internal/repository"
	"github.com/dkolesni/billing-sync/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stripe/stripe-go/v78"
)

type fakeStripeClient struct {
	gotParams *stripe.CheckoutSessionParams
	session   *stripe.CheckoutSession
	err       error
}

func (f *fakeStripeClient) CreateCheckoutSession(_ context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.gotParams = params
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func (f *fakeStripeClient) GetOrCreateCustomer(_ context.Context, _, _ string) (string, error) {
	return "cus_test", nil
}

func TestBuildCheckoutParamsMetadata(t *testing.T) {
	account := &domain.Account{ID: uuid.New(), StripeCustomerID: "cus_42"}

	params := BuildCheckoutParams(account, "price_123", "pro", "https://app.test/ok", "https://app.test/cancel")

	// Эти значения Stripe вернет в checkout.session.completed как есть
	assert.Equal(t, account.ID.String(), params.Metadata[MetadataAccountIDKey])
	assert.Equal(t, "pro", params.Metadata[MetadataPlanIDKey])

	assert.Equal(t, string(stripe.CheckoutSessionModeSubscription), *params.Mode)
	assert.Equal(t, "cus_42", *params.Customer)
	require.Len(t, params.LineItems, 1)
	assert.Equal(t, "price_123", *params.LineItems[0].Price)
}

func TestBuildCheckoutParamsWithoutCustomer(t *testing.T) {
	account := &domain.Account{ID: uuid.New()}

	params := BuildCheckoutParams(account, "price_123", "pro", "https://app.test/ok", "https://app.test/cancel")
	assert.Nil(t, params.Customer)
}

func TestCreateCheckoutSession(t *testing.T) {
	repo := repository.NewInMemoryAccountRepository()
	acc := domain.Account{ID: uuid.New(), Email: "user@example.com"}
	repo.Seed(acc)

	fake := &fakeStripeClient{session: &stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/cs_1"}}
	svc := NewCheckoutService(repo, fake, map[string]string{"pro": "price_123"}, logger.New("test"))

	url, err := svc.CreateCheckoutSession(context.Background(), CheckoutRequest{
		AccountID:  acc.ID,
		PlanID:     "pro",
		SuccessURL: "https://app.test/ok",
		CancelURL:  "https://app.test/cancel",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/cs_1", url)

	require.NotNil(t, fake.gotParams)
	assert.Equal(t, acc.ID.String(), fake.gotParams.Metadata[MetadataAccountIDKey])
	assert.Equal(t, "price_123", *fake.gotParams.LineItems[0].Price)
}

func TestCreateCheckoutSessionUnknownPlan(t *testing.T) {
	repo := repository.NewInMemoryAccountRepository()
	acc := domain.Account{ID: uuid.New()}
	repo.Seed(acc)

	svc := NewCheckoutService(repo, &fakeStripeClient{}, map[string]string{"pro": "price_123"}, logger.New("test"))

	_, err := svc.CreateCheckoutSession(context.Background(), CheckoutRequest{AccountID: acc.ID, PlanID: "enterprise"})
	assert.ErrorIs(t, err, domain.ErrUnknownPlan)
}

func TestCreateCheckoutSessionUnknownAccount(t *testing.T) {
	repo := repository.NewInMemoryAccountRepository()
	svc := NewCheckoutService(repo, &fakeStripeClient{}, map[string]string{"pro": "price_123"}, logger.New("test"))

	_, err := svc.CreateCheckoutSession(context.Background(), CheckoutRequest{AccountID: uuid.New(), PlanID: "pro"})
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}
