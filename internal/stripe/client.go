package stripe

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkolesni/billing-sync/pkg/logger"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// Client определяет методы для взаимодействия со Stripe API.
type Client interface {
	// CreateCheckoutSession создает Checkout Session и возвращает её
	// вместе с redirect URL.
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)

	// GetOrCreateCustomer ищет клиента по accountID в метаданных,
	// если не находит — создает нового.
	GetOrCreateCustomer(ctx context.Context, accountID, email string) (string, error)
}

const (
	// Ключ метаданных для связи Stripe Customer с внутренним аккаунтом
	metadataAccountIDKey = "account_id"
)

// stripeClient реализует интерфейс Client.
type stripeClient struct {
	client *client.API
	log    *logger.Logger
}

// NewClient создает новый экземпляр клиента Stripe.
func NewClient(apiKey string, log *logger.Logger) Client {
	sc := &client.API{}
	sc.Init(apiKey, nil)
	return &stripeClient{
		client: sc,
		log:    log,
	}
}

// CreateCheckoutSession создает Checkout Session в Stripe.
func (sc *stripeClient) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	params.Context = ctx

	session, err := sc.client.CheckoutSessions.New(params)
	if err != nil {
		logStripeError(sc.log, "CreateCheckoutSession", err)
		return nil, fmt.Errorf("stripe: failed to create checkout session: %w", err)
	}

	sc.log.Infow("Stripe checkout session created", "sessionID", session.ID)
	return session, nil
}

// GetOrCreateCustomer ищет клиента по метаданным через Search API,
// при промахе создает нового.
func (sc *stripeClient) GetOrCreateCustomer(ctx context.Context, accountID, email string) (string, error) {
	searchQuery := fmt.Sprintf("metadata['%s']:'%s'", metadataAccountIDKey, accountID)
	searchParams := &stripe.CustomerSearchParams{
		SearchParams: stripe.SearchParams{
			Query:   searchQuery,
			Limit:   stripe.Int64(1),
			Context: ctx,
		},
	}

	customers := sc.client.Customers.Search(searchParams)
	if customers.Next() {
		customer := customers.Customer()
		sc.log.Debugw("Found existing Stripe customer", "stripeCustomerID", customer.ID, "accountID", accountID)
		return customer.ID, nil
	}
	if err := customers.Err(); err != nil {
		logStripeError(sc.log, "SearchCustomers", err)
		return "", fmt.Errorf("stripe: failed to search customer: %w", err)
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Metadata: map[string]string{
			metadataAccountIDKey: accountID,
		},
	}
	params.Context = ctx

	cus, err := sc.client.Customers.New(params)
	if err != nil {
		logStripeError(sc.log, "CreateCustomer", err)
		return "", fmt.Errorf("stripe: failed to create customer: %w", err)
	}

	sc.log.Infow("Stripe customer created", "stripeCustomerID", cus.ID, "accountID", accountID)
	return cus.ID, nil
}

// logStripeError логирует ошибку Stripe API с кодом, если он есть.
func logStripeError(log *logger.Logger, op string, err error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		log.Errorw("Stripe API error", "op", op, "code", stripeErr.Code, "type", stripeErr.Type, "error", stripeErr.Msg)
		return
	}
	log.Errorw("Stripe API error", "op", op, "error", err)
}
