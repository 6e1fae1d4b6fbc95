package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WebhookMetrics интерфейс для метрик обработки вебхуков.
type WebhookMetrics interface {
	IncEventReceived(eventType string, outcome string)
	ObserveProcessingDuration(eventType string, seconds float64)
	IncReconcile(operation string, outcome string)
}

// Outcome labels shared by the counters.
const (
	OutcomeOK            = "ok"
	OutcomeBadSignature  = "bad_signature"
	OutcomeBadPayload    = "bad_payload"
	OutcomeFailed        = "failed"
	OutcomeIgnored       = "ignored"
	OutcomeDuplicate     = "duplicate"
	OutcomeOrphaned      = "orphaned"
	OutcomeUnknownStatus = "unknown_status"
	OutcomeLostRace      = "lost_race"
)

type webhookMetrics struct {
	eventsReceived     *prometheus.CounterVec
	processingDuration *prometheus.HistogramVec
	reconciles         *prometheus.CounterVec
}

// NewWebhookMetrics создает новые метрики обработки вебхуков.
func NewWebhookMetrics(registry *prometheus.Registry) WebhookMetrics {
	eventsReceived := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_received_total",
			Help: "The total number of received webhook events by type and outcome",
		},
		[]string{"event_type", "outcome"},
	)

	processingDuration := promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_processing_duration_seconds",
			Help:    "Webhook processing duration distribution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"event_type"},
	)

	reconciles := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_reconciles_total",
			Help: "The total number of reconcile operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	return &webhookMetrics{
		eventsReceived:     eventsReceived,
		processingDuration: processingDuration,
		reconciles:         reconciles,
	}
}

// IncEventReceived увеличивает счетчик полученных событий.
func (m *webhookMetrics) IncEventReceived(eventType string, outcome string) {
	m.eventsReceived.WithLabelValues(eventType, outcome).Inc()
}

// ObserveProcessingDuration записывает длительность обработки.
func (m *webhookMetrics) ObserveProcessingDuration(eventType string, seconds float64) {
	m.processingDuration.WithLabelValues(eventType).Observe(seconds)
}

// IncReconcile увеличивает счетчик операций реконсиляции.
func (m *webhookMetrics) IncReconcile(operation string, outcome string) {
	m.reconciles.WithLabelValues(operation, outcome).Inc()
}
