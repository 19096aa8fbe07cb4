package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Lifecycle event types published by the engine.
const (
	EventReservationCreated   = "reservation.created"
	EventPaymentStatusChanged = "payment.status_changed"
)

// ReservationCreatedEvent is emitted after a reservation is persisted.
type ReservationCreatedEvent struct {
	ReservationID uuid.UUID       `json:"reservation_id"`
	City          string          `json:"city"`
	Guests        int             `json:"guests"`
	Nights        int             `json:"nights"`
	TotalTax      decimal.Decimal `json:"total_tax"`
	Currency      string          `json:"currency"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// PaymentStatusChangedEvent is emitted once per actually-applied transition.
type PaymentStatusChangedEvent struct {
	PaymentID      uuid.UUID       `json:"payment_id"`
	ReservationID  uuid.UUID       `json:"reservation_id"`
	PreviousStatus PaymentStatus   `json:"previous_status"`
	NewStatus      PaymentStatus   `json:"new_status"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	TransactionID  *string         `json:"transaction_id,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
}
