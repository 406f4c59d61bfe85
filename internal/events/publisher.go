package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"github.com/quantumflow/callengine/internal/logging"
)

// Meta identifies and correlates a published event
type Meta struct {
	ID            string    `json:"id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Producer      string    `json:"producer,omitempty"`
	Time          time.Time `json:"time"`
	Type          string    `json:"type"`
}

// Envelope wraps every published event
type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// NewEnvelope builds an envelope for eventType correlated to a call
func NewEnvelope(eventType, callID string, data any) Envelope {
	return Envelope{
		Meta: Meta{
			ID:            uuid.NewString(),
			CorrelationID: callID,
			Producer:      "callengine",
			Time:          time.Now().UTC(),
			Type:          eventType,
		},
		Data: data,
	}
}

// Publisher emits events to downstream consumers
type Publisher interface {
	Publish(ctx context.Context, key string, msg Envelope) error
	Close() error
}

type rabbitPublisher struct {
	conn     *amqp091.Connection
	exchange string
	log      *slog.Logger
}

// NewRabbitPublisher dials RabbitMQ and declares a durable topic exchange
func NewRabbitPublisher(url, exchange string, logger *slog.Logger) (Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &rabbitPublisher{conn: conn, exchange: exchange, log: logging.OrDiscard(logger)}, nil
}

func (r *rabbitPublisher) Publish(ctx context.Context, key string, msg Envelope) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if msg.Meta.ID == "" {
		msg.Meta.ID = uuid.NewString()
	}
	cid := msg.Meta.CorrelationID
	if cid == "" {
		cid = msg.Meta.ID
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx, r.exchange, key, false, false,
		amqp091.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp091.Persistent,
			MessageId:     msg.Meta.ID,
			CorrelationId: cid,
			Type:          msg.Meta.Type,
			Timestamp:     time.Now(),
			Body:          body,
		},
	)
	if err == nil {
		r.log.Info("published", slog.String("key", key), slog.String("exchange", r.exchange))
	}
	return err
}

func (r *rabbitPublisher) Close() error {
	return r.conn.Close()
}

// FallbackPublisher logs events instead of publishing them, for deployments without a broker
type FallbackPublisher struct {
	log *slog.Logger
}

// NewFallback returns a publisher that only logs
func NewFallback(logger *slog.Logger) Publisher {
	return &FallbackPublisher{log: logging.OrDiscard(logger)}
}

func (p *FallbackPublisher) Publish(ctx context.Context, key string, msg Envelope) error {
	p.log.Warn("FallbackPublisher: skipped publish",
		slog.String("key", key),
		slog.String("type", msg.Meta.Type),
		slog.String("correlation_id", msg.Meta.CorrelationID),
	)
	return nil
}

func (p *FallbackPublisher) Close() error {
	return nil
}
