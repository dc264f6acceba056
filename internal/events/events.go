package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"zwitch-gateway/internal/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	TypePaymentRecorded = "payment.recorded"
	TypeRefundProcessed = "refund.processed"
)

type Event struct {
	Type          string    `json:"type"`
	Gateway       string    `json:"gateway"`
	InvoiceID     uint      `json:"invoice_id,omitempty"`
	TransactionID string    `json:"transaction_id"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency,omitempty"`
	Status        string    `json:"status,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
		topic: topic,
	}
}

// Publish keys messages by transaction id so all events of one payment land
// on the same partition.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.TransactionID),
		Value: payload,
	}); err != nil {
		logger.FromCtx(ctx).Error("failed to publish event",
			zap.String("topic", p.topic),
			zap.String("type", e.Type),
			zap.String("transaction_id", e.TransactionID),
			zap.Error(err),
		)
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops events. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// New returns a Kafka publisher, or a NopPublisher when brokers is empty.
func New(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		logger.L().Info("no kafka brokers configured, payment events disabled")
		return NopPublisher{}
	}
	return NewKafkaPublisher(brokers, topic)
}
