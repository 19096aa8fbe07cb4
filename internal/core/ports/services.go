package ports

import (
	"context"
	"time"

	"tourist-tax-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=services.go -destination=mocks/services_mock.go -package=mocks

// PaymentGateway is the narrow contract against the external hosted-checkout
// provider. Network failures surface as GatewayError/TimeoutError app errors;
// the gateway never mutates engine state.
type PaymentGateway interface {
	// CreateSession opens a hosted checkout session. Never retried
	// internally: a failure must leave no partial state behind.
	CreateSession(ctx context.Context, req CreateSessionRequest) (*CheckoutSession, error)
	// GetStatus fetches the provider's authoritative session status.
	// Idempotent; implementations may retry with backoff.
	GetStatus(ctx context.Context, sessionID string) (*SessionStatus, error)
	// VerifySignature checks the keyed hash of an inbound webhook against
	// the shared secret, using the same canonicalization as outbound calls.
	VerifySignature(w WebhookNotification) bool
	// MapStatus translates a provider status string into the engine's
	// payment status. Unknown statuses return an error.
	MapStatus(external string) (domain.PaymentStatus, error)
}

// CreateSessionRequest carries everything the provider needs for a session.
type CreateSessionRequest struct {
	Amount        decimal.Decimal
	Currency      string
	OrderRef      string // reservation ID, echoed back by the provider
	CustomerName  string
	CustomerEmail string
	SuccessURL    string
	FailureURL    string
}

// CheckoutSession is the provider's handle on a hosted payment page.
type CheckoutSession struct {
	SessionID   string
	RedirectURL string
}

// SessionStatus is the provider's view of a session.
type SessionStatus struct {
	SessionID     string
	Status        string // provider vocabulary, see MapStatus
	TransactionID string
	ReceiptURL    string
}

// WebhookNotification is the parsed, signature-bearing webhook body.
// RawBody is kept verbatim for the payment audit record.
type WebhookNotification struct {
	PaymentID     uuid.UUID
	Status        string
	Amount        decimal.Decimal
	Currency      string
	TransactionID string
	ReceiptURL    string
	Timestamp     int64
	Signature     string
	RawBody       []byte
}

// EventNotifier appends lifecycle events to an external queue collaborator.
// Delivery is fire-and-forget: callers log errors and never fail the primary
// operation on them.
type EventNotifier interface {
	ReservationCreated(ctx context.Context, r *domain.Reservation) error
	PaymentStatusChanged(ctx context.Context, p *domain.Payment, previous domain.PaymentStatus) error
}

// --- Service Ports (Business Logic) ---

// CreateReservationInput holds validated input for reservation creation.
// TotalTax is never accepted from callers; it is always recomputed.
type CreateReservationInput struct {
	GuestName            string
	GuestEmail           string
	AccommodationName    string
	AccommodationAddress string
	City                 string
	CheckIn              time.Time
	CheckOut             time.Time
	Guests               int
	Currency             string
}

// ReservationLifecycleService owns all writes to reservations and payments
// and enforces the state machines and idempotency rules.
type ReservationLifecycleService interface {
	CreateReservation(ctx context.Context, input CreateReservationInput) (*domain.Reservation, error)
	GetReservation(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	ListReservations(ctx context.Context) ([]domain.Reservation, error)
	DeleteReservation(ctx context.Context, id uuid.UUID) error
	InitiatePayment(ctx context.Context, reservationID uuid.UUID, successURL, failureURL string) (*domain.Payment, error)
	GetPaymentStatus(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error)
	ProcessWebhook(ctx context.Context, notification WebhookNotification) (*domain.Payment, error)
}

// TokenService issues and validates the admin JWTs guarding the
// list/delete endpoints.
type TokenService interface {
	Generate(subject string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed admin JWT claims.
type TokenClaims struct {
	Subject string
}
