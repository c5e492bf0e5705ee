// Package event publishes order lifecycle events to Kafka.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"storefront/internal/domain"
	"storefront/internal/logging"
)

const (
	TypeOrderCreated   = "order.created"
	TypeOrderConfirmed = "order.confirmed"

	source = "storefront-api"

	defaultPublishTimeout = 2 * time.Second
)

// Envelope is the wire format of every event.
type Envelope struct {
	EventID     string          `json:"event_id"`
	EventType   string          `json:"event_type"`
	AggregateID string          `json:"aggregate_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Source      string          `json:"source"`
	Data        json.RawMessage `json:"data"`
}

type OrderData struct {
	OrderID          string               `json:"order_id"`
	BuyerID          string               `json:"buyer_id"`
	Status           domain.OrderStatus   `json:"status"`
	PaymentMethod    domain.PaymentMethod `json:"payment_method"`
	Amount           int64                `json:"amount"`
	Currency         string               `json:"currency"`
	PaymentReference string               `json:"payment_reference,omitempty"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes order events. A nil *Publisher drops events, which lets
// deployments without Kafka run unchanged.
type Publisher struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
	logger  *slog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	if len(brokers) == 0 {
		return nil
	}
	logger = logging.OrDiscard(logger)
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: defaultPublishTimeout,
		// Async writes return once the message is queued; delivery errors
		// surface here.
		Async: true,
		Completion: func(msgs []kafka.Message, err error) {
			if err == nil {
				return
			}
			for _, m := range msgs {
				logger.Error("publish event",
					slog.String("topic", topic),
					slog.String("order_id", string(m.Key)),
					slog.Any("error", err),
				)
			}
		},
	}
	return &Publisher{writer: w, topic: topic, timeout: defaultPublishTimeout, logger: logger}
}

func (p *Publisher) OrderCreated(ctx context.Context, o domain.Order) {
	p.publish(ctx, TypeOrderCreated, o)
}

func (p *Publisher) OrderConfirmed(ctx context.Context, o domain.Order) {
	p.publish(ctx, TypeOrderConfirmed, o)
}

// publish never fails the caller; the order row is the source of truth. It
// runs detached from the caller's cancellation and bounded by its own timeout.
func (p *Publisher) publish(ctx context.Context, eventType string, o domain.Order) {
	if p == nil {
		return
	}
	timeout := p.timeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	msg, err := buildMessage(eventType, o, time.Now().UTC())
	if err != nil {
		p.logger.ErrorContext(ctx, "encode event", slog.String("event_type", eventType), slog.Any("error", err))
		return
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.ErrorContext(ctx, "publish event",
			slog.String("topic", p.topic),
			slog.String("event_type", eventType),
			slog.String("order_id", o.ID),
			slog.Any("error", err),
		)
		return
	}
	p.logger.DebugContext(ctx, "event published", slog.String("event_type", eventType), slog.String("order_id", o.ID))
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}

func buildMessage(eventType string, o domain.Order, at time.Time) (kafka.Message, error) {
	data, err := json.Marshal(OrderData{
		OrderID:          o.ID,
		BuyerID:          o.BuyerID,
		Status:           o.Status,
		PaymentMethod:    o.PaymentMethod,
		Amount:           o.Amount,
		Currency:         o.Currency,
		PaymentReference: o.PaymentReference,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal order data: %w", err)
	}
	value, err := json.Marshal(Envelope{
		EventID:     uuid.NewString(),
		EventType:   eventType,
		AggregateID: o.ID,
		Timestamp:   at,
		Source:      source,
		Data:        data,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal envelope: %w", err)
	}
	return kafka.Message{
		Key:   []byte(o.ID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "source", Value: []byte(source)},
		},
	}, nil
}
