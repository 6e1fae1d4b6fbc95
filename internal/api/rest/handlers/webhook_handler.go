package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dkolesni/billing-sync/internal/domain"
	"github.com/dkolesni/billing-sync/internal/metrics"
	"github.com/dkolesni/billing-sync/internal/webhook"
	"github.com/dkolesni/billing-sync/pkg/logger"
	"github.com/dkolesni/billing-sync/pkg/res"

	"github.com/gin-gonic/gin"
)

const (
	// Ограничение на размер тела запроса вебхука (Stripe рекомендует ~65kb)
	maxRequestBodySize = int64(65536)

	signatureHeader = "Stripe-Signature"
)

// EventRouter направляет декодированное событие соответствующему обработчику.
type EventRouter interface {
	Route(ctx context.Context, event domain.Event) error
}

// WebhookHandler обрабатывает входящие вебхуки от Stripe.
type WebhookHandler struct {
	verifier *webhook.Verifier
	router   EventRouter
	metrics  metrics.WebhookMetrics
	log      *logger.Logger
}

// NewWebhookHandler создает новый экземпляр WebhookHandler.
func NewWebhookHandler(
	verifier *webhook.Verifier,
	router EventRouter,
	m metrics.WebhookMetrics,
	log *logger.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		verifier: verifier,
		router:   router,
		metrics:  m,
		log:      log,
	}
}

// HandleStripeWebhook - обработчик для Gin, принимающий вебхуки Stripe.
//
// Pipeline: verify signature -> decode -> route. Verification runs
// before any parsing so unverified bytes are never trusted, and no
// error response ever reflects payload content back to the caller.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	start := time.Now()

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBodySize)
	payload, err := io.ReadAll(c.Request.Body)
	defer c.Request.Body.Close()
	if err != nil {
		h.log.Warnw("Failed to read webhook request body", "error", err)
		h.metrics.IncEventReceived("unknown", metrics.OutcomeBadPayload)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Cannot read request body"}, http.StatusBadRequest)
		c.Abort()
		return
	}

	sigHeader := c.GetHeader(signatureHeader)
	if sigHeader == "" {
		h.log.Warnw("Missing Stripe-Signature header")
		h.metrics.IncEventReceived("unknown", metrics.OutcomeBadSignature)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Missing signature header"}, http.StatusBadRequest)
		c.Abort()
		return
	}

	if err := h.verifier.Verify(payload, sigHeader); err != nil {
		// Логируем только факт, никогда содержимое или подпись.
		h.log.Warnw("Webhook signature verification failed",
			"malformed_header", errors.Is(err, domain.ErrMalformedSignatureHeader))
		h.metrics.IncEventReceived("unknown", metrics.OutcomeBadSignature)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Signature verification failed"}, http.StatusBadRequest)
		c.Abort()
		return
	}

	event, err := webhook.Decode(payload)
	if err != nil {
		// Поле и тип события логировать безопасно, сырой payload — нет.
		var decodeErr *domain.DecodeError
		if errors.As(err, &decodeErr) {
			h.log.Warnw("Webhook payload missing required field", "field", decodeErr.Field)
		} else {
			h.log.Warnw("Webhook payload is not well-formed")
		}
		h.metrics.IncEventReceived("unknown", metrics.OutcomeBadPayload)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid event payload"}, http.StatusBadRequest)
		c.Abort()
		return
	}

	h.log.Infow("Received verified Stripe event", "event_id", event.ID, "kind", event.Kind)

	if err := h.router.Route(ctx, event); err != nil {
		h.log.Errorw("Error processing webhook event",
			"error", err, "event_id", event.ID, "kind", event.Kind)
		h.metrics.IncEventReceived(string(event.Kind), metrics.OutcomeFailed)
		h.metrics.ObserveProcessingDuration(string(event.Kind), time.Since(start).Seconds())

		// NACK: провайдер повторит доставку. Идемпотентность
		// реконсилятора делает повтор безопасным.
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Internal server error processing webhook"}, http.StatusInternalServerError)
		c.Abort()
		return
	}

	outcome := metrics.OutcomeOK
	if event.Kind == domain.EventOther {
		outcome = metrics.OutcomeIgnored
	}
	h.metrics.IncEventReceived(string(event.Kind), outcome)
	h.metrics.ObserveProcessingDuration(string(event.Kind), time.Since(start).Seconds())

	c.JSON(http.StatusOK, gin.H{"received": true})
}
