package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentExpiry is how long a hosted checkout session stays collectable.
// The deadline is derived, not actively enforced: a webhook or status poll
// arriving after it for a still-PENDING payment fails the payment instead
// of accepting a late completion.
const PaymentExpiry = 30 * time.Minute

// FailureReasonExpired marks payments failed by expiry rather than the gateway.
const FailureReasonExpired = "expired"

// PaymentStatus represents the lifecycle state of a payment attempt.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusCancelled  PaymentStatus = "CANCELLED"
)

// paymentTransitions is the closed transition table for payments.
// FAILED -> PENDING applies only when the gateway itself retries within the
// same payment record; a caller-initiated retry creates a fresh Payment.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusProcessing: {PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusFailed:     {PaymentStatusPending},
	PaymentStatusCompleted:  {},
	PaymentStatusCancelled:  {},
}

// CanTransitionTo reports whether a payment may move from s to target.
// Self-transitions are not part of the table; callers treat them as no-ops.
func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the payment is in a final state.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusCancelled
}

// Payment represents one attempt to collect the tax amount for a reservation
// through the external gateway. Amount and Currency are copied from the
// reservation at initiation time and never mutated afterward.
type Payment struct {
	ID            uuid.UUID       `json:"id"`
	ReservationID uuid.UUID       `json:"reservation_id"`
	Status        PaymentStatus   `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	SessionID     string          `json:"session_id"`
	RedirectURL   string          `json:"redirect_url"`
	TransactionID *string         `json:"transaction_id,omitempty"`
	ReceiptURL    *string         `json:"receipt_url,omitempty"`
	FailureReason *string         `json:"failure_reason,omitempty"`
	RawPayload    []byte          `json:"-"` // verbatim last webhook body, audit only
	Version       int64           `json:"-"` // optimistic concurrency token
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	ExpiresAt     time.Time       `json:"expires_at"`
}

// IsExpired reports whether the checkout session deadline has passed.
func (p *Payment) IsExpired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// ReservationStatusFor maps a payment status to the reservation status that
// must be applied in lock-step, or false when no reservation change follows.
func ReservationStatusFor(status PaymentStatus) (ReservationStatus, bool) {
	switch status {
	case PaymentStatusCompleted:
		return ReservationStatusPaid, true
	case PaymentStatusFailed:
		return ReservationStatusFailed, true
	case PaymentStatusCancelled:
		return ReservationStatusCancelled, true
	default:
		return "", false
	}
}
