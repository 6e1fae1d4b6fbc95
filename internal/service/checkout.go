package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkolesni/billing-sync/internal/domain"
	"github.com/dkolesni/billing-sync/internal/repository"
	stripeclient "github.com/dkolesni/billing-sync/internal/stripe"
	"github.com/dkolesni/billing-sync/pkg/logger"
	"github.com/google/uuid"

	"github.com/stripe/stripe-go/v78"
)

// Metadata keys attached to the checkout session. Stripe echoes these
// back verbatim in checkout.session.completed; they are the only
// coupling between intent creation and reconciliation, so the values
// must round-trip byte-for-byte.
const (
	MetadataAccountIDKey = "account_id"
	MetadataPlanIDKey    = "plan_id"
)

// CheckoutRequest описывает запрос на создание checkout-сессии.
type CheckoutRequest struct {
	AccountID  uuid.UUID
	PlanID     string
	SuccessURL string
	CancelURL  string
}

// CheckoutService создает Stripe Checkout Sessions для покупки подписок.
type CheckoutService struct {
	accounts repository.AccountRepository
	stripe   stripeclient.Client
	// plans maps internal plan ids to Stripe price ids. Loaded from
	// configuration at startup; immutable afterwards.
	plans map[string]string
	log   *logger.Logger
}

// NewCheckoutService создает новый сервис checkout-сессий.
func NewCheckoutService(
	accounts repository.AccountRepository,
	client stripeclient.Client,
	plans map[string]string,
	log *logger.Logger,
) *CheckoutService {
	return &CheckoutService{
		accounts: accounts,
		stripe:   client,
		plans:    plans,
		log:      log,
	}
}

// BuildCheckoutParams собирает параметры Checkout Session для аккаунта
// и плана. Pure builder, no I/O.
func BuildCheckoutParams(account *domain.Account, priceID, planID, successURL, cancelURL string) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			MetadataAccountIDKey: account.ID.String(),
			MetadataPlanIDKey:    planID,
		},
	}
	if account.StripeCustomerID != "" {
		params.Customer = stripe.String(account.StripeCustomerID)
	}
	return params
}

// CreateCheckoutSession создает сессию в Stripe и возвращает redirect URL.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error) {
	account, err := s.accounts.GetByID(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", domain.ErrAccountNotFound
		}
		return "", domain.NewStoreError("account lookup", err)
	}

	priceID, ok := s.plans[req.PlanID]
	if !ok {
		s.log.Warnw("Checkout requested for unconfigured plan", "planID", req.PlanID, "accountID", req.AccountID)
		return "", domain.ErrUnknownPlan
	}

	params := BuildCheckoutParams(account, priceID, req.PlanID, req.SuccessURL, req.CancelURL)

	session, err := s.stripe.CreateCheckoutSession(ctx, params)
	if err != nil {
		return "", fmt.Errorf("checkout: failed to create session: %w", err)
	}

	s.log.Infow("Checkout session created",
		"accountID", req.AccountID, "planID", req.PlanID, "sessionID", session.ID)
	return session.URL, nil
}
