package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dkolesni/billing-sync/internal/domain"
	"github.com/dkolesni/billing-sync/internal/kafka"
	"github.com/dkolesni/billing-sync/internal/metrics"
	"github.com/dkolesni/billing-sync/internal/repository"
	"github.com/dkolesni/billing-sync/internal/service"
	"github.com/dkolesni/billing-sync/internal/webhook"
	"github.com/dkolesni/billing-sync/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripewebhook "github.com/stripe/stripe-go/v78/webhook"
)

const webhookTestSecret = "whsec_test_secret"

type webhookTestEnv struct {
	engine *gin.Engine
	repo   *repository.InMemoryAccountRepository
}

func newWebhookTestEnv(t *testing.T) *webhookTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.New("test")
	repo := repository.NewInMemoryAccountRepository()
	m := metrics.NewWebhookMetrics(prometheus.NewRegistry())
	reconciler := service.NewReconciler(repo, kafka.NoOpProducer{}, m, log)
	router := webhook.NewRouter(reconciler, log)
	handler := NewWebhookHandler(webhook.NewVerifier(webhookTestSecret), router, m, log)

	engine := gin.New()
	engine.POST("/webhooks/stripe", handler.HandleStripeWebhook)
	return &webhookTestEnv{engine: engine, repo: repo}
}

func signedRequest(t *testing.T, secret, payload string) *http.Request {
	t.Helper()

	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func checkoutEventJSON(accountID uuid.UUID) string {
	return fmt.Sprintf(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {
			"object": {
				"id": "cs_1",
				"subscription": "sub_1",
				"metadata": {"account_id": %q, "plan_id": "pro"}
			}
		}
	}`, accountID)
}

func TestWebhookSignedCheckoutApplied(t *testing.T) {
	env := newWebhookTestEnv(t)
	acc := domain.Account{ID: uuid.New(), Status: domain.SubscriptionStatusCanceled}
	env.repo.Seed(acc)

	rec := httptest.NewRecorder()
	env.engine.ServeHTTP(rec, signedRequest(t, webhookTestSecret, checkoutEventJSON(acc.ID)))

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got, err := env.repo.GetByID(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, got.Status)
	assert.Equal(t, "sub_1", got.StripeSubscriptionID)
	assert.Equal(t, "pro", got.PlanID)
}

func TestWebhookWrongSecretRejected(t *testing.T) {
	env := newWebhookTestEnv(t)
	acc := domain.Account{ID: uuid.New(), Status: domain.SubscriptionStatusCanceled}
	env.repo.Seed(acc)

	rec := httptest.NewRecorder()
	env.engine.ServeHTTP(rec, signedRequest(t, "whsec_wrong_secret", checkoutEventJSON(acc.ID)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Неверифицированная доставка не должна менять состояние
	got, err := env.repo.GetByID(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusCanceled, got.Status)
}

func TestWebhookTamperedPayloadRejected(t *testing.T) {
	env := newWebhookTestEnv(t)
	acc := domain.Account{ID: uuid.New(), Status: domain.SubscriptionStatusCanceled}
	env.repo.Seed(acc)

	// Подпись от оригинального тела, само тело изменено
	signed := signedRequest(t, webhookTestSecret, checkoutEventJSON(acc.ID))
	tampered := checkoutEventJSON(acc.ID) + " "
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader([]byte(tampered)))
	req.Header.Set("Stripe-Signature", signed.Header.Get("Stripe-Signature"))

	rec := httptest.NewRecorder()
	env.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	got, err := env.repo.GetByID(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusCanceled, got.Status)
}

func TestWebhookMissingSignatureHeader(t *testing.T) {
	env := newWebhookTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	env.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookUnknownEventTypeAcknowledged(t *testing.T) {
	env := newWebhookTestEnv(t)

	payload := `{"id":"evt_x","type":"invoice.payment_succeeded","data":{"object":{}}}`
	rec := httptest.NewRecorder()
	env.engine.ServeHTTP(rec, signedRequest(t, webhookTestSecret, payload))

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestWebhookUnknownAccountNACKed(t *testing.T) {
	env := newWebhookTestEnv(t)

	// checkout для аккаунта, которого нет — 500, Stripe повторит доставку
	rec := httptest.NewRecorder()
	env.engine.ServeHTTP(rec, signedRequest(t, webhookTestSecret, checkoutEventJSON(uuid.New())))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWebhookSubscriptionDeletedCancels(t *testing.T) {
	env := newWebhookTestEnv(t)
	acc := domain.Account{ID: uuid.New(), Status: domain.SubscriptionStatusCanceled}
	env.repo.Seed(acc)

	rec := httptest.NewRecorder()
	env.engine.ServeHTTP(rec, signedRequest(t, webhookTestSecret, checkoutEventJSON(acc.ID)))
	require.Equal(t, http.StatusOK, rec.Code)

	// Событие удаления сообщает active, но подписка все равно отменяется
	deleted := `{
		"id": "evt_2",
		"type": "customer.subscription.deleted",
		"data": {"object": {"id": "sub_1", "status": "active"}}
	}`
	rec = httptest.NewRecorder()
	env.engine.ServeHTTP(rec, signedRequest(t, webhookTestSecret, deleted))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got, err := env.repo.GetByID(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusCanceled, got.Status)
}

func TestWebhookMalformedBodyRejected(t *testing.T) {
	env := newWebhookTestEnv(t)

	rec := httptest.NewRecorder()
	env.engine.ServeHTTP(rec, signedRequest(t, webhookTestSecret, `{"id": "evt_1", "type":`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
