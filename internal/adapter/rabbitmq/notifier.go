package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tourist-tax-engine/config"
	"tourist-tax-engine/internal/core/domain"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const exchangeKind = "topic"

// Notifier implements ports.EventNotifier on a RabbitMQ topic exchange.
// Routing keys match the event names, so consumers can bind to
// "reservation.*" or "payment.*" patterns.
type Notifier struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	log      zerolog.Logger
}

// NewNotifier dials RabbitMQ and declares the lifecycle-events exchange.
func NewNotifier(cfg config.RabbitMQConfig, log zerolog.Logger) (*Notifier, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, exchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
	}

	log.Info().Str("exchange", cfg.Exchange).Msg("RabbitMQ connection established")

	return &Notifier{conn: conn, channel: ch, exchange: cfg.Exchange, log: log}, nil
}

// ReservationCreated publishes a reservation.created event.
func (n *Notifier) ReservationCreated(ctx context.Context, r *domain.Reservation) error {
	event := domain.ReservationCreatedEvent{
		ReservationID: r.ID,
		City:          r.City,
		Guests:        r.Guests,
		Nights:        r.Nights,
		TotalTax:      r.TotalTax,
		Currency:      r.Currency,
		OccurredAt:    time.Now().UTC(),
	}
	return n.publish(ctx, domain.EventReservationCreated, event)
}

// PaymentStatusChanged publishes a payment.status_changed event.
func (n *Notifier) PaymentStatusChanged(ctx context.Context, p *domain.Payment, previous domain.PaymentStatus) error {
	event := domain.PaymentStatusChangedEvent{
		PaymentID:      p.ID,
		ReservationID:  p.ReservationID,
		PreviousStatus: previous,
		NewStatus:      p.Status,
		Amount:         p.Amount,
		Currency:       p.Currency,
		TransactionID:  p.TransactionID,
		OccurredAt:     time.Now().UTC(),
	}
	return n.publish(ctx, domain.EventPaymentStatusChanged, event)
}

func (n *Notifier) publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := n.channel.PublishWithContext(ctx,
		n.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	n.log.Debug().Str("exchange", n.exchange).Str("routing_key", routingKey).Msg("event published")
	return nil
}

// Close releases the channel and connection.
func (n *Notifier) Close() {
	if n.channel != nil {
		n.channel.Close()
	}
	if n.conn != nil {
		n.conn.Close()
	}
}

// NopNotifier discards events. Used when RabbitMQ is disabled and in tests.
type NopNotifier struct{}

func (NopNotifier) ReservationCreated(context.Context, *domain.Reservation) error { return nil }
func (NopNotifier) PaymentStatusChanged(context.Context, *domain.Payment, domain.PaymentStatus) error {
	return nil
}
