package dto

import (
	"time"

	"tourist-tax-engine/internal/core/domain"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format for check-in/check-out dates.
const DateLayout = "2006-01-02"

// CreateReservationRequest is the request body for reservation creation.
// Dates are calendar days; total tax is always computed server-side.
type CreateReservationRequest struct {
	GuestName            string `json:"guest_name" binding:"required,min=1,max=200"`
	GuestEmail           string `json:"guest_email" binding:"required,email,max=254"`
	AccommodationName    string `json:"accommodation_name" binding:"required,min=1,max=200"`
	AccommodationAddress string `json:"accommodation_address" binding:"required,min=1,max=500"`
	City                 string `json:"city" binding:"required,min=1,max=100"`
	CheckIn              string `json:"check_in" binding:"required,dateonly"`
	CheckOut             string `json:"check_out" binding:"required,dateonly"`
	Guests               int    `json:"guests" binding:"required,gt=0"`
	Currency             string `json:"currency" binding:"required,len=3"`
}

// ReservationResponse is the wire shape of a reservation.
type ReservationResponse struct {
	ID                   string  `json:"id"`
	GuestName            string  `json:"guest_name"`
	GuestEmail           string  `json:"guest_email"`
	AccommodationName    string  `json:"accommodation_name"`
	AccommodationAddress string  `json:"accommodation_address"`
	City                 string  `json:"city"`
	CheckIn              string  `json:"check_in"`
	CheckOut             string  `json:"check_out"`
	Guests               int     `json:"guests"`
	Nights               int     `json:"nights"`
	RatePerNight         string  `json:"rate_per_night"`
	TotalTax             string  `json:"total_tax"`
	Currency             string  `json:"currency"`
	Status               string  `json:"status"`
	PaymentID            *string `json:"payment_id,omitempty"`
	PaymentURL           *string `json:"payment_url,omitempty"`
	CreatedAt            string  `json:"created_at"`
	UpdatedAt            string  `json:"updated_at"`
}

// NewReservationResponse maps a domain reservation to its wire shape.
func NewReservationResponse(r *domain.Reservation) ReservationResponse {
	resp := ReservationResponse{
		ID:                   r.ID.String(),
		GuestName:            r.GuestName,
		GuestEmail:           r.GuestEmail,
		AccommodationName:    r.AccommodationName,
		AccommodationAddress: r.AccommodationAddress,
		City:                 r.City,
		CheckIn:              r.CheckIn.Format(DateLayout),
		CheckOut:             r.CheckOut.Format(DateLayout),
		Guests:               r.Guests,
		Nights:               r.Nights,
		RatePerNight:         r.RatePerNight.StringFixed(2),
		TotalTax:             r.TotalTax.StringFixed(2),
		Currency:             r.Currency,
		Status:               string(r.Status),
		PaymentURL:           r.PaymentURL,
		CreatedAt:            r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            r.UpdatedAt.Format(time.RFC3339),
	}
	if r.PaymentID != nil {
		id := r.PaymentID.String()
		resp.PaymentID = &id
	}
	return resp
}

// CreatePaymentRequest is the request body for payment initiation.
type CreatePaymentRequest struct {
	ReservationID string `json:"reservation_id" binding:"required,uuid"`
	SuccessURL    string `json:"success_url" binding:"required,safe_url"`
	FailureURL    string `json:"failure_url" binding:"required,safe_url"`
}

// PaymentResponse is the wire shape of a payment attempt.
type PaymentResponse struct {
	ID            string  `json:"id"`
	ReservationID string  `json:"reservation_id"`
	Status        string  `json:"status"`
	Amount        string  `json:"amount"`
	Currency      string  `json:"currency"`
	RedirectURL   string  `json:"redirect_url,omitempty"`
	TransactionID *string `json:"transaction_id,omitempty"`
	ReceiptURL    *string `json:"receipt_url,omitempty"`
	FailureReason *string `json:"failure_reason,omitempty"`
	ExpiresAt     string  `json:"expires_at"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

// NewPaymentResponse maps a domain payment to its wire shape.
func NewPaymentResponse(p *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID.String(),
		ReservationID: p.ReservationID.String(),
		Status:        string(p.Status),
		Amount:        p.Amount.StringFixed(2),
		Currency:      p.Currency,
		RedirectURL:   p.RedirectURL,
		TransactionID: p.TransactionID,
		ReceiptURL:    p.ReceiptURL,
		FailureReason: p.FailureReason,
		ExpiresAt:     p.ExpiresAt.Format(time.RFC3339),
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     p.UpdatedAt.Format(time.RFC3339),
	}
}

// WebhookRequest is the provider's notification body. Amount arrives as a
// quoted decimal string; decimal.Decimal unmarshals both quoted and bare.
type WebhookRequest struct {
	PaymentID     string          `json:"payment_id" binding:"required,uuid"`
	Status        string          `json:"status" binding:"required,max=50"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Currency      string          `json:"currency" binding:"required,len=3"`
	TransactionID string          `json:"transaction_id" binding:"max=200"`
	ReceiptURL    string          `json:"receipt_url" binding:"omitempty,safe_url"`
	Timestamp     int64           `json:"timestamp" binding:"required"`
	Signature     string          `json:"signature" binding:"required"`
}
