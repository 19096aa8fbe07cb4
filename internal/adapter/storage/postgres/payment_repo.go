package postgres

import (
	"context"
	"errors"
	"fmt"

	"tourist-tax-engine/internal/core/domain"
	"tourist-tax-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

const paymentColumns = `id, reservation_id, status, amount, currency, session_id, redirect_url,
	transaction_id, receipt_url, failure_reason, raw_payload, version, created_at, updated_at, expires_at`

// Create inserts a new payment attempt at version 0.
func (r *PaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	query := `INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.ReservationID, p.Status, p.Amount, p.Currency, p.SessionID, p.RedirectURL,
		p.TransactionID, p.ReceiptURL, p.FailureReason, p.RawPayload, p.Version,
		p.CreatedAt, p.UpdatedAt, p.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetByID fetches a payment by UUID. Returns (nil, nil) when absent.
func (r *PaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return r.scanPayment(r.pool.QueryRow(ctx, query, id))
}

// GetByReservationID fetches all payment attempts for a reservation,
// newest first.
func (r *PaymentRepo) GetByReservationID(ctx context.Context, reservationID uuid.UUID) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE reservation_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, reservationID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := scanPaymentFields(rows, &p); err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment rows: %w", err)
	}
	return payments, nil
}

// Update persists a payment guarded by its version: the row is written only
// when the stored version still matches, then bumped. A concurrent writer
// surfaces as ports.ErrVersionConflict.
func (r *PaymentRepo) Update(ctx context.Context, p *domain.Payment) error {
	query := `UPDATE payments SET status = $1, transaction_id = $2, receipt_url = $3,
		failure_reason = $4, raw_payload = $5, updated_at = $6, version = version + 1
		WHERE id = $7 AND version = $8`

	tag, err := r.pool.Exec(ctx, query,
		p.Status, p.TransactionID, p.ReceiptURL,
		p.FailureReason, p.RawPayload, p.UpdatedAt,
		p.ID, p.Version,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrVersionConflict
	}
	p.Version++
	return nil
}

// scanPayment scans a single row, mapping pgx.ErrNoRows to (nil, nil).
func (r *PaymentRepo) scanPayment(row pgx.Row) (*domain.Payment, error) {
	p := &domain.Payment{}
	if err := scanPaymentFields(row, p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return p, nil
}

func scanPaymentFields(row pgx.Row, p *domain.Payment) error {
	return row.Scan(
		&p.ID, &p.ReservationID, &p.Status, &p.Amount, &p.Currency, &p.SessionID, &p.RedirectURL,
		&p.TransactionID, &p.ReceiptURL, &p.FailureReason, &p.RawPayload, &p.Version,
		&p.CreatedAt, &p.UpdatedAt, &p.ExpiresAt,
	)
}
