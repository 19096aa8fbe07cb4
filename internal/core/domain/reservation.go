package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReservationStatus represents the lifecycle state of a reservation.
type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "PENDING"
	ReservationStatusPaid      ReservationStatus = "PAID"
	ReservationStatusFailed    ReservationStatus = "FAILED"
	ReservationStatusCancelled ReservationStatus = "CANCELLED"
)

// reservationTransitions is the closed transition table for reservations.
// PAID -> CANCELLED covers the explicit cancel-after-payment case;
// FAILED -> PENDING is the retry path after a failed payment.
var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationStatusPending:   {ReservationStatusPaid, ReservationStatusFailed, ReservationStatusCancelled},
	ReservationStatusFailed:    {ReservationStatusPending, ReservationStatusCancelled},
	ReservationStatusPaid:      {ReservationStatusCancelled},
	ReservationStatusCancelled: {},
}

// CanTransitionTo reports whether a reservation may move from s to target.
// Self-transitions are not part of the table; callers treat them as no-ops.
func (s ReservationStatus) CanTransitionTo(target ReservationStatus) bool {
	for _, allowed := range reservationTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true when no further transition except cancellation
// bookkeeping is expected. CANCELLED is always terminal.
func (s ReservationStatus) IsTerminal() bool {
	return s == ReservationStatusCancelled
}

// Reservation represents a guest's booked stay subject to tourist tax.
// TotalTax is always derived server-side as Guests * Nights * RatePerNight.
type Reservation struct {
	ID                   uuid.UUID         `json:"id"`
	GuestName            string            `json:"guest_name"`
	GuestEmail           string            `json:"guest_email"`
	AccommodationName    string            `json:"accommodation_name"`
	AccommodationAddress string            `json:"accommodation_address"`
	City                 string            `json:"city"`
	CheckIn              time.Time         `json:"check_in"`
	CheckOut             time.Time         `json:"check_out"`
	Guests               int               `json:"guests"`
	Nights               int               `json:"nights"`
	RatePerNight         decimal.Decimal   `json:"rate_per_night"`
	TotalTax             decimal.Decimal   `json:"total_tax"`
	Currency             string            `json:"currency"`
	Status               ReservationStatus `json:"status"`
	PaymentID            *uuid.UUID        `json:"payment_id,omitempty"`
	PaymentURL           *string           `json:"payment_url,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}
