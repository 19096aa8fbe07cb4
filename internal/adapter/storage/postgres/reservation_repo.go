package postgres

import (
	"context"
	"errors"
	"fmt"

	"tourist-tax-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ReservationRepo implements ports.ReservationRepository.
type ReservationRepo struct {
	pool Pool
}

// NewReservationRepo creates a new ReservationRepo.
func NewReservationRepo(pool Pool) *ReservationRepo {
	return &ReservationRepo{pool: pool}
}

const reservationColumns = `id, guest_name, guest_email, accommodation_name, accommodation_address,
	city, check_in, check_out, guests, nights, rate_per_night, total_tax, currency,
	status, payment_id, payment_url, created_at, updated_at`

// Create inserts a new reservation.
func (r *ReservationRepo) Create(ctx context.Context, res *domain.Reservation) error {
	query := `INSERT INTO reservations (` + reservationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err := r.pool.Exec(ctx, query,
		res.ID, res.GuestName, res.GuestEmail, res.AccommodationName, res.AccommodationAddress,
		res.City, res.CheckIn, res.CheckOut, res.Guests, res.Nights,
		res.RatePerNight, res.TotalTax, res.Currency,
		res.Status, res.PaymentID, res.PaymentURL, res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

// GetByID fetches a reservation by UUID. Returns (nil, nil) when absent.
func (r *ReservationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	return r.scanReservation(r.pool.QueryRow(ctx, query, id))
}

// List fetches all reservations, newest first.
func (r *ReservationRepo) List(ctx context.Context) ([]domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var reservations []domain.Reservation
	for rows.Next() {
		var res domain.Reservation
		if err := scanReservationFields(rows, &res); err != nil {
			return nil, fmt.Errorf("scan reservation row: %w", err)
		}
		reservations = append(reservations, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservation rows: %w", err)
	}
	return reservations, nil
}

// Update persists all mutable reservation fields.
func (r *ReservationRepo) Update(ctx context.Context, res *domain.Reservation) error {
	query := `UPDATE reservations SET status = $1, payment_id = $2, payment_url = $3, updated_at = $4
		WHERE id = $5`

	tag, err := r.pool.Exec(ctx, query, res.Status, res.PaymentID, res.PaymentURL, res.UpdatedAt, res.ID)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reservation not found: %s", res.ID)
	}
	return nil
}

// Delete removes a reservation. Payment rows are retained for audit.
func (r *ReservationRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete reservation: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// scanReservation scans a single row, mapping pgx.ErrNoRows to (nil, nil).
func (r *ReservationRepo) scanReservation(row pgx.Row) (*domain.Reservation, error) {
	res := &domain.Reservation{}
	if err := scanReservationFields(row, res); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan reservation: %w", err)
	}
	return res, nil
}

func scanReservationFields(row pgx.Row, res *domain.Reservation) error {
	return row.Scan(
		&res.ID, &res.GuestName, &res.GuestEmail, &res.AccommodationName, &res.AccommodationAddress,
		&res.City, &res.CheckIn, &res.CheckOut, &res.Guests, &res.Nights,
		&res.RatePerNight, &res.TotalTax, &res.Currency,
		&res.Status, &res.PaymentID, &res.PaymentURL, &res.CreatedAt, &res.UpdatedAt,
	)
}
