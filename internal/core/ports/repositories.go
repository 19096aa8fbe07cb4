package ports

import (
	"context"
	"errors"

	"tourist-tax-engine/internal/core/domain"

	"github.com/google/uuid"
)

// ErrVersionConflict is returned by PaymentRepository.Update when the stored
// row's version no longer matches the one the caller read. It signals a
// concurrent writer and must abort the in-flight transition.
var ErrVersionConflict = errors.New("payment version conflict")

//go:generate mockgen -source=repositories.go -destination=mocks/repositories_mock.go -package=mocks

// ReservationRepository defines durable persistence for reservations.
// Get methods return (nil, nil) when the record does not exist.
type ReservationRepository interface {
	Create(ctx context.Context, r *domain.Reservation) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	List(ctx context.Context) ([]domain.Reservation, error)
	Update(ctx context.Context, r *domain.Reservation) error
	// Delete removes the reservation. Returns (false, nil) when absent.
	// Payment rows are retained for audit; there is no cascade.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// PaymentRepository defines durable persistence for payment attempts.
type PaymentRepository interface {
	Create(ctx context.Context, p *domain.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	GetByReservationID(ctx context.Context, reservationID uuid.UUID) ([]domain.Payment, error)
	// Update persists p guarded by its Version field and increments it.
	// Returns ErrVersionConflict when another writer got there first.
	Update(ctx context.Context, p *domain.Payment) error
}

// PaymentLocker serializes lifecycle work per entity ID: webhook and
// reconciliation handling keyed by payment ID, payment initiation keyed by
// reservation ID. Acquire blocks until the lock is held or ctx is done; the
// returned release function must be called exactly once.
type PaymentLocker interface {
	Acquire(ctx context.Context, id uuid.UUID) (release func(), err error)
}
