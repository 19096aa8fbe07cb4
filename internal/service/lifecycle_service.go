package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tourist-tax-engine/internal/core/domain"
	"tourist-tax-engine/internal/core/ports"
	"tourist-tax-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LifecycleService implements ports.ReservationLifecycleService. It is the
// single writer for reservations and payments: every mutation goes through
// it, serialized per payment by the PaymentLocker and guarded a second time
// by the repository's version CAS.
type LifecycleService struct {
	reservations ports.ReservationRepository
	payments     ports.PaymentRepository
	gateway      ports.PaymentGateway
	notifier     ports.EventNotifier
	locker       ports.PaymentLocker
	calc         *TaxCalculator
	now          func() time.Time
	log          zerolog.Logger
}

// NewLifecycleService creates a new LifecycleService.
func NewLifecycleService(
	reservations ports.ReservationRepository,
	payments ports.PaymentRepository,
	gateway ports.PaymentGateway,
	notifier ports.EventNotifier,
	locker ports.PaymentLocker,
	calc *TaxCalculator,
	log zerolog.Logger,
) *LifecycleService {
	return &LifecycleService{
		reservations: reservations,
		payments:     payments,
		gateway:      gateway,
		notifier:     notifier,
		locker:       locker,
		calc:         calc,
		now:          func() time.Time { return time.Now().UTC() },
		log:          log,
	}
}

// WithClock overrides the time source. Test hook.
func (s *LifecycleService) WithClock(now func() time.Time) *LifecycleService {
	s.now = now
	return s
}

// CreateReservation validates input, derives nights/rate/total, persists the
// reservation in PENDING, and emits a reservation-created event best-effort.
func (s *LifecycleService) CreateReservation(ctx context.Context, input ports.CreateReservationInput) (*domain.Reservation, error) {
	if input.GuestName == "" {
		return nil, apperror.Validation("guest_name is required")
	}
	if input.Currency == "" {
		return nil, apperror.Validation("currency is required")
	}

	now := s.now()
	if toDate(input.CheckIn).Before(toDate(now)) {
		return nil, apperror.Validation("check_in must not be in the past")
	}

	nights, err := s.calc.NightsBetween(input.CheckIn, input.CheckOut)
	if err != nil {
		return nil, err
	}
	rate, err := s.calc.RateForCity(input.City)
	if err != nil {
		return nil, err
	}
	total, err := s.calc.TotalTax(input.Guests, nights, rate)
	if err != nil {
		return nil, err
	}

	city := input.City
	if canonical, ok := s.calc.Rates().CanonicalCity(input.City); ok {
		city = canonical
	}

	r := &domain.Reservation{
		ID:                   uuid.New(),
		GuestName:            input.GuestName,
		GuestEmail:           input.GuestEmail,
		AccommodationName:    input.AccommodationName,
		AccommodationAddress: input.AccommodationAddress,
		City:                 city,
		CheckIn:              toDate(input.CheckIn),
		CheckOut:             toDate(input.CheckOut),
		Guests:               input.Guests,
		Nights:               nights,
		RatePerNight:         rate,
		TotalTax:             total,
		Currency:             input.Currency,
		Status:               domain.ReservationStatusPending,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.reservations.Create(ctx, r); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create reservation: %w", err))
	}

	if err := s.notifier.ReservationCreated(ctx, r); err != nil {
		s.log.Warn().Err(err).Str("reservation_id", r.ID.String()).Msg("reservation-created event not delivered")
	}

	s.log.Info().
		Str("reservation_id", r.ID.String()).
		Str("city", r.City).
		Int("guests", r.Guests).
		Int("nights", r.Nights).
		Str("total_tax", r.TotalTax.String()).
		Msg("reservation created")

	return r, nil
}

// GetReservation returns the stored reservation.
func (s *LifecycleService) GetReservation(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	r, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get reservation: %w", err))
	}
	if r == nil {
		return nil, apperror.ErrNotFound("reservation")
	}
	return r, nil
}

// ListReservations returns all stored reservations.
func (s *LifecycleService) ListReservations(ctx context.Context) ([]domain.Reservation, error) {
	list, err := s.reservations.List(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list reservations: %w", err))
	}
	return list, nil
}

// DeleteReservation removes the reservation at any status. Payment records
// are intentionally left behind for audit.
func (s *LifecycleService) DeleteReservation(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.reservations.Delete(ctx, id)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("delete reservation: %w", err))
	}
	if !deleted {
		return apperror.ErrNotFound("reservation")
	}
	s.log.Info().Str("reservation_id", id.String()).Msg("reservation deleted")
	return nil
}

// InitiatePayment creates a hosted checkout session for a PENDING
// reservation and persists the resulting Payment. A gateway failure leaves
// no partial Payment record behind.
func (s *LifecycleService) InitiatePayment(ctx context.Context, reservationID uuid.UUID, successURL, failureURL string) (*domain.Payment, error) {
	// Concurrent initiations for one reservation must serialize, or both
	// would read PENDING and open two live checkout sessions. Reservation
	// and payment UUIDs never collide, so the lock key space is shared.
	release, err := s.locker.Acquire(ctx, reservationID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("acquire reservation lock: %w", err))
	}
	defer release()

	r, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get reservation: %w", err))
	}
	if r == nil {
		return nil, apperror.ErrNotFound("reservation")
	}
	if r.Status != domain.ReservationStatusPending {
		return nil, apperror.ErrInvalidState(string(r.Status), "initiate payment")
	}

	paymentID := uuid.New()
	session, err := s.gateway.CreateSession(ctx, ports.CreateSessionRequest{
		Amount:        r.TotalTax,
		Currency:      r.Currency,
		OrderRef:      r.ID.String(),
		CustomerName:  r.GuestName,
		CustomerEmail: r.GuestEmail,
		SuccessURL:    successURL,
		FailureURL:    failureURL,
	})
	if err != nil {
		// Surfaced as-is when the gateway adapter already classified it.
		return nil, err
	}

	now := s.now()
	p := &domain.Payment{
		ID:            paymentID,
		ReservationID: r.ID,
		Status:        domain.PaymentStatusPending,
		Amount:        r.TotalTax,
		Currency:      r.Currency,
		SessionID:     session.SessionID,
		RedirectURL:   session.RedirectURL,
		CreatedAt:     now,
		UpdatedAt:     now,
		ExpiresAt:     now.Add(domain.PaymentExpiry),
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create payment: %w", err))
	}

	r.PaymentID = &p.ID
	r.PaymentURL = &p.RedirectURL
	r.UpdatedAt = now
	if err := s.reservations.Update(ctx, r); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("link payment to reservation: %w", err))
	}

	s.log.Info().
		Str("payment_id", p.ID.String()).
		Str("reservation_id", r.ID.String()).
		Str("session_id", p.SessionID).
		Time("expires_at", p.ExpiresAt).
		Msg("payment initiated")

	return p, nil
}

// GetPaymentStatus returns the stored payment. For non-terminal payments it
// reconciles against the gateway's authoritative status; reconciliation
// failures are logged and swallowed, the stored status is returned anyway.
func (s *LifecycleService) GetPaymentStatus(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	p, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payment: %w", err))
	}
	if p == nil {
		return nil, apperror.ErrNotFound("payment")
	}
	if p.Status.IsTerminal() || p.Status == domain.PaymentStatusFailed {
		return p, nil
	}

	release, err := s.locker.Acquire(ctx, p.ID)
	if err != nil {
		s.log.Warn().Err(err).Str("payment_id", p.ID.String()).Msg("payment lock not acquired, skipping reconciliation")
		return p, nil
	}
	defer release()

	// Re-read under the lock; a webhook may have won the race.
	p, err = s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payment: %w", err))
	}
	if p == nil {
		return nil, apperror.ErrNotFound("payment")
	}
	if p.Status.IsTerminal() || p.Status == domain.PaymentStatusFailed {
		return p, nil
	}

	now := s.now()
	if p.IsExpired(now) && p.Status == domain.PaymentStatusPending {
		if err := s.failExpired(ctx, p); err != nil {
			return nil, err
		}
		return p, nil
	}

	status, err := s.gateway.GetStatus(ctx, p.SessionID)
	if err != nil {
		s.log.Warn().Err(err).Str("payment_id", p.ID.String()).Msg("gateway reconciliation failed, returning stored status")
		return p, nil
	}
	mapped, err := s.gateway.MapStatus(status.Status)
	if err != nil {
		s.log.Warn().Err(err).Str("payment_id", p.ID.String()).Str("external_status", status.Status).Msg("unknown gateway status, returning stored status")
		return p, nil
	}
	if mapped == p.Status {
		return p, nil
	}
	if !transitionAllowed(p.Status, mapped) {
		s.log.Warn().
			Str("payment_id", p.ID.String()).
			Str("from", string(p.Status)).
			Str("to", string(mapped)).
			Msg("gateway reported a status the state machine rejects, keeping stored status")
		return p, nil
	}

	var txID, receiptURL *string
	if status.TransactionID != "" {
		txID = &status.TransactionID
	}
	if mapped == domain.PaymentStatusCompleted && status.ReceiptURL != "" {
		receiptURL = &status.ReceiptURL
	}
	if err := s.applyTransition(ctx, p, mapped, txID, receiptURL, nil, nil); err != nil {
		return nil, err
	}
	return p, nil
}

// ProcessWebhook applies a gateway-delivered status notification. The
// handler is idempotent: redelivery of the current status is a no-op
// success, and transitions out of a terminal state are rejected.
func (s *LifecycleService) ProcessWebhook(ctx context.Context, n ports.WebhookNotification) (*domain.Payment, error) {
	if !s.gateway.VerifySignature(n) {
		return nil, apperror.ErrInvalidSignature()
	}

	release, err := s.locker.Acquire(ctx, n.PaymentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("acquire payment lock: %w", err))
	}
	defer release()

	p, err := s.payments.GetByID(ctx, n.PaymentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payment: %w", err))
	}
	if p == nil {
		// Unknown payments must stay investigable, never silently accepted.
		return nil, apperror.ErrNotFound("payment")
	}

	// Amounts are never trusted from the payload; the echoed amount/currency
	// must agree with the stored record before any transition applies.
	if !n.Amount.Equal(p.Amount) || n.Currency != p.Currency {
		return nil, apperror.ErrAmountMismatch(
			p.Amount.StringFixed(2)+" "+p.Currency,
			n.Amount.StringFixed(2)+" "+n.Currency,
		)
	}

	target, err := s.gateway.MapStatus(n.Status)
	if err != nil {
		return nil, apperror.Validation(fmt.Sprintf("unknown payment status %q", n.Status))
	}

	// Redelivery of the current status: successful no-op, no event.
	if target == p.Status {
		s.log.Debug().
			Str("payment_id", p.ID.String()).
			Str("status", string(p.Status)).
			Msg("duplicate webhook for current status, no-op")
		return p, nil
	}

	// Past the session deadline a still-PENDING payment can only fail. The
	// provider's own failure or cancellation still applies; any forward
	// progress (processing, completed) would let a late completion in and
	// is rejected in favor of reason "expired".
	if p.Status == domain.PaymentStatusPending && p.IsExpired(s.now()) &&
		target != domain.PaymentStatusFailed && target != domain.PaymentStatusCancelled {
		if err := s.failExpired(ctx, p); err != nil {
			return nil, err
		}
		return p, nil
	}

	if !transitionAllowed(p.Status, target) {
		return nil, apperror.ErrInvalidTransition(string(p.Status), string(target))
	}

	var txID, receiptURL *string
	if n.TransactionID != "" {
		txID = &n.TransactionID
	}
	if target == domain.PaymentStatusCompleted && n.ReceiptURL != "" {
		receiptURL = &n.ReceiptURL
	}
	if err := s.applyTransition(ctx, p, target, txID, receiptURL, nil, n.RawBody); err != nil {
		return nil, err
	}
	return p, nil
}

// transitionAllowed checks a payment transition, additionally accepting the
// collapsed PENDING -> COMPLETED hop: the provider is free to skip the
// PROCESSING notification, and both legs of that path are valid on their own.
func transitionAllowed(from, to domain.PaymentStatus) bool {
	if from.CanTransitionTo(to) {
		return true
	}
	return from == domain.PaymentStatusPending && to == domain.PaymentStatusCompleted
}

// failExpired transitions a PENDING payment past its deadline to FAILED
// with reason "expired", updating the reservation in lock-step.
func (s *LifecycleService) failExpired(ctx context.Context, p *domain.Payment) error {
	reason := domain.FailureReasonExpired
	return s.applyTransition(ctx, p, domain.PaymentStatusFailed, nil, nil, &reason, nil)
}

// applyTransition persists an already-validated payment transition, updates
// the linked reservation in lock-step, and emits a status-change event.
// Callers must hold the per-payment lock.
func (s *LifecycleService) applyTransition(
	ctx context.Context,
	p *domain.Payment,
	target domain.PaymentStatus,
	transactionID, receiptURL, failureReason *string,
	rawPayload []byte,
) error {
	previous := p.Status
	now := s.now()

	p.Status = target
	p.UpdatedAt = now
	if transactionID != nil {
		p.TransactionID = transactionID
	}
	if receiptURL != nil {
		p.ReceiptURL = receiptURL
	}
	if failureReason != nil {
		p.FailureReason = failureReason
	}
	if rawPayload != nil {
		p.RawPayload = rawPayload
	}

	if err := s.payments.Update(ctx, p); err != nil {
		if errors.Is(err, ports.ErrVersionConflict) {
			return apperror.ErrInvalidTransition(string(previous), string(target))
		}
		return apperror.InternalError(fmt.Errorf("update payment: %w", err))
	}

	if resStatus, ok := domain.ReservationStatusFor(target); ok {
		r, err := s.reservations.GetByID(ctx, p.ReservationID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("get reservation: %w", err))
		}
		if r != nil && r.Status != resStatus && r.Status.CanTransitionTo(resStatus) {
			r.Status = resStatus
			r.UpdatedAt = now
			if err := s.reservations.Update(ctx, r); err != nil {
				return apperror.InternalError(fmt.Errorf("update reservation: %w", err))
			}
		}
	}

	if err := s.notifier.PaymentStatusChanged(ctx, p, previous); err != nil {
		s.log.Warn().Err(err).Str("payment_id", p.ID.String()).Msg("payment-status-changed event not delivered")
	}

	s.log.Info().
		Str("payment_id", p.ID.String()).
		Str("reservation_id", p.ReservationID.String()).
		Str("from", string(previous)).
		Str("to", string(target)).
		Msg("payment status transition applied")

	return nil
}
