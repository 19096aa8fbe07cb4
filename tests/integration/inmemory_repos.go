package integration

import (
	"context"
	"sync"

	"tourist-tax-engine/internal/core/domain"
	"tourist-tax-engine/internal/core/ports"

	"github.com/google/uuid"
)

// --- In-Memory Reservation Repo ---

type inMemoryReservationRepo struct {
	mu           sync.RWMutex
	reservations map[uuid.UUID]*domain.Reservation
}

func newInMemoryReservationRepo() *inMemoryReservationRepo {
	return &inMemoryReservationRepo{reservations: make(map[uuid.UUID]*domain.Reservation)}
}

func (r *inMemoryReservationRepo) Create(ctx context.Context, res *domain.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *res
	r.reservations[res.ID] = &cp
	return nil
}

func (r *inMemoryReservationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.reservations[id]
	if !ok {
		return nil, nil
	}
	cp := *res
	return &cp, nil
}

func (r *inMemoryReservationRepo) List(ctx context.Context) ([]domain.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Reservation, 0, len(r.reservations))
	for _, res := range r.reservations {
		out = append(out, *res)
	}
	return out, nil
}

func (r *inMemoryReservationRepo) Update(ctx context.Context, res *domain.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reservations[res.ID]; !ok {
		return errNotFound
	}
	cp := *res
	r.reservations[res.ID] = &cp
	return nil
}

func (r *inMemoryReservationRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reservations[id]; !ok {
		return false, nil
	}
	delete(r.reservations, id)
	return true, nil
}

// --- In-Memory Payment Repo ---

type inMemoryPaymentRepo struct {
	mu       sync.RWMutex
	payments map[uuid.UUID]*domain.Payment
}

func newInMemoryPaymentRepo() *inMemoryPaymentRepo {
	return &inMemoryPaymentRepo{payments: make(map[uuid.UUID]*domain.Payment)}
}

func (r *inMemoryPaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.payments[p.ID] = &cp
	return nil
}

func (r *inMemoryPaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *inMemoryPaymentRepo) GetByReservationID(ctx context.Context, reservationID uuid.UUID) ([]domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Payment
	for _, p := range r.payments {
		if p.ReservationID == reservationID {
			out = append(out, *p)
		}
	}
	return out, nil
}

// Update applies the same compare-and-swap the SQL implementation does:
// the write only lands if the stored version still matches the caller's.
func (r *inMemoryPaymentRepo) Update(ctx context.Context, p *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.payments[p.ID]
	if !ok || stored.Version != p.Version {
		return ports.ErrVersionConflict
	}
	cp := *p
	cp.Version++
	r.payments[p.ID] = &cp
	p.Version = cp.Version
	return nil
}

// --- In-Memory Payment Lock ---

type inMemoryPaymentLock struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newInMemoryPaymentLock() *inMemoryPaymentLock {
	return &inMemoryPaymentLock{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *inMemoryPaymentLock) Acquire(ctx context.Context, paymentID uuid.UUID) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[paymentID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[paymentID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock, nil
}

var errNotFound = &notFoundError{}

type notFoundError struct{}

func (e *notFoundError) Error() string { return "record not found" }
