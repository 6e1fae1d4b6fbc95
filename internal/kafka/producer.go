package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dkolesni/billing-sync/internal/domain"
	"github.com/dkolesni/billing-sync/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// Topics for subscription state-change fan-out.
const (
	TopicSubscriptionActivated     = "billing.subscription_activated"
	TopicSubscriptionStatusChanged = "billing.subscription_status_changed"
)

// SubscriptionEvent is the record published after every effective
// reconcile write. Downstream services (entitlements, analytics)
// consume these instead of talking to Stripe themselves.
type SubscriptionEvent struct {
	AccountID      string                    `json:"account_id"`
	SubscriptionID string                    `json:"subscription_id"`
	PlanID         string                    `json:"plan_id,omitempty"`
	Status         domain.SubscriptionStatus `json:"status"`
	ProviderEvent  string                    `json:"provider_event_id"`
	OccurredAt     time.Time                 `json:"occurred_at"`
}

// Producer определяет интерфейс для публикации сообщений в Kafka.
type Producer interface {
	// PublishSubscriptionEvent отправляет событие, связанное с подпиской.
	// Ключ сообщения — AccountID, так что все события одного аккаунта
	// попадают в одну партицию и сохраняют порядок.
	PublishSubscriptionEvent(ctx context.Context, topic string, event SubscriptionEvent) error

	// Close закрывает соединение продюсера Kafka.
	Close() error
}

// kafkaProducer реализует интерфейс Producer, используя segmentio/kafka-go.
type kafkaProducer struct {
	writer *kafka.Writer
	log    *logger.Logger
}

// NewKafkaProducer создает и настраивает новый продюсер Kafka.
func NewKafkaProducer(brokers []string, log *logger.Logger) (Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are not configured")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	log.Infow("Kafka producer initialized", "brokers", brokers)
	return &kafkaProducer{
		writer: writer,
		log:    log,
	}, nil
}

// PublishSubscriptionEvent сериализует событие в JSON и отправляет в топик.
func (k *kafkaProducer) PublishSubscriptionEvent(ctx context.Context, topic string, event SubscriptionEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: failed to marshal message data: %w", err)
	}

	message := kafka.Message{
		Topic: topic,
		Key:   []byte(event.AccountID),
		Value: value,
		Time:  time.Now(),
	}

	if err := k.writer.WriteMessages(ctx, message); err != nil {
		k.log.Errorw("Failed to write message to Kafka", "error", err, "topic", topic, "accountID", event.AccountID)
		return fmt.Errorf("kafka: failed to write message: %w", err)
	}

	k.log.Debugw("Published subscription event to Kafka", "topic", topic, "accountID", event.AccountID, "status", event.Status)
	return nil
}

// Close закрывает Kafka writer.
func (k *kafkaProducer) Close() error {
	return k.writer.Close()
}

// NoOpProducer заглушка продюсера для запуска без Kafka.
type NoOpProducer struct{}

// PublishSubscriptionEvent ничего не делает.
func (NoOpProducer) PublishSubscriptionEvent(ctx context.Context, topic string, event SubscriptionEvent) error {
	return nil
}

// Close ничего не делает.
func (NoOpProducer) Close() error { return nil }
