package integration

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tourist-tax-engine/config"
	"tourist-tax-engine/internal/adapter/gateway"
	"tourist-tax-engine/internal/core/domain"
	"tourist-tax-engine/internal/core/ports"
	"tourist-tax-engine/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingNotifier counts emitted events so tests can assert that a
// transition's side effects fire exactly once.
type countingNotifier struct {
	reservationCreated atomic.Int64
	statusChanged      atomic.Int64
}

func (n *countingNotifier) ReservationCreated(context.Context, *domain.Reservation) error {
	n.reservationCreated.Add(1)
	return nil
}

func (n *countingNotifier) PaymentStatusChanged(context.Context, *domain.Payment, domain.PaymentStatus) error {
	n.statusChanged.Add(1)
	return nil
}

type concurrencyStack struct {
	svc      *service.LifecycleService
	notifier *countingNotifier
	payments *inMemoryPaymentRepo
	provider *fakeProvider
}

func newConcurrencyStack(t *testing.T) *concurrencyStack {
	t.Helper()

	provider := newFakeProvider()
	t.Cleanup(provider.srv.Close)

	gw := gateway.NewClient(config.GatewayConfig{
		BaseURL:       provider.srv.URL,
		MerchantID:    "merchant-test",
		SecretKey:     providerSecret,
		Timeout:       2 * time.Second,
		StatusRetries: 1,
	}, zerolog.Nop())

	notifier := &countingNotifier{}
	payments := newInMemoryPaymentRepo()
	svc := service.NewLifecycleService(
		newInMemoryReservationRepo(),
		payments,
		gw,
		notifier,
		newInMemoryPaymentLock(),
		service.NewTaxCalculator(service.NewTaxRateTable()),
		zerolog.Nop(),
	)
	return &concurrencyStack{svc: svc, notifier: notifier, payments: payments, provider: provider}
}

func (s *concurrencyStack) reservationWithPayment(t *testing.T) *domain.Payment {
	t.Helper()
	ctx := context.Background()

	res, err := s.svc.CreateReservation(ctx, ports.CreateReservationInput{
		GuestName:            "Anna Kowalska",
		GuestEmail:           "anna@example.com",
		AccommodationName:    "Hotel Wawel",
		AccommodationAddress: "ul. Grodzka 1, Krakow",
		City:                 "Krakow",
		CheckIn:              time.Now().UTC().AddDate(0, 0, 10),
		CheckOut:             time.Now().UTC().AddDate(0, 0, 13),
		Guests:               2,
		Currency:             "PLN",
	})
	require.NoError(t, err)

	p, err := s.svc.InitiatePayment(ctx, res.ID, "https://shop.example/ok", "https://shop.example/fail")
	require.NoError(t, err)
	return p
}

func (s *concurrencyStack) signedNotification(p *domain.Payment, status string) ports.WebhookNotification {
	ts := time.Now().Unix()
	amount := p.Amount.StringFixed(2)
	return ports.WebhookNotification{
		PaymentID:     p.ID,
		Status:        status,
		Amount:        p.Amount,
		Currency:      p.Currency,
		TransactionID: "txn_c1",
		Timestamp:     ts,
		Signature: signWebhook(map[string]string{
			"amount":         amount,
			"currency":       p.Currency,
			"payment_id":     p.ID.String(),
			"status":         status,
			"timestamp":      fmt.Sprintf("%d", ts),
			"transaction_id": "txn_c1",
		}),
		RawBody: []byte(`{"status":"` + status + `"}`),
	}
}

func TestConcurrentDuplicateWebhooks(t *testing.T) {
	s := newConcurrencyStack(t)
	p := s.reservationWithPayment(t)
	n := s.signedNotification(p, "completed")

	eventsBefore := s.notifier.statusChanged.Load()

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.svc.ProcessWebhook(context.Background(), n)
		}(i)
	}
	wg.Wait()

	// Every delivery reports success: one applies the transition, the rest
	// observe the terminal status and no-op.
	for i, err := range errs {
		assert.NoError(t, err, "delivery %d", i)
	}

	stored, err := s.payments.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, stored.Status)
	assert.Equal(t, int64(1), s.notifier.statusChanged.Load()-eventsBefore,
		"the status-change event fires exactly once")
}

func TestConcurrentConflictingWebhooks(t *testing.T) {
	s := newConcurrencyStack(t)
	p := s.reservationWithPayment(t)

	completed := s.signedNotification(p, "completed")
	failed := s.signedNotification(p, "failed")

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, n := range []ports.WebhookNotification{completed, failed} {
		wg.Add(1)
		go func(i int, n ports.WebhookNotification) {
			defer wg.Done()
			_, results[i] = s.svc.ProcessWebhook(context.Background(), n)
		}(i, n)
	}
	wg.Wait()

	// Exactly one outcome wins; the loser is rejected, never merged.
	stored, err := s.payments.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Contains(t, []domain.PaymentStatus{
		domain.PaymentStatusCompleted, domain.PaymentStatusFailed,
	}, stored.Status)

	if stored.Status == domain.PaymentStatusCompleted {
		assert.NoError(t, results[0])
		assert.Error(t, results[1], "failed cannot follow completed")
	} else {
		assert.NoError(t, results[1])
	}
}

func TestConcurrentReservationCreation(t *testing.T) {
	s := newConcurrencyStack(t)

	const workers = 8
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.svc.CreateReservation(context.Background(), ports.CreateReservationInput{
				GuestName:            fmt.Sprintf("Guest %d", i),
				GuestEmail:           fmt.Sprintf("guest%d@example.com", i),
				AccommodationName:    "Hotel Wawel",
				AccommodationAddress: "ul. Grodzka 1, Krakow",
				City:                 "Krakow",
				CheckIn:              time.Now().UTC().AddDate(0, 0, 10),
				CheckOut:             time.Now().UTC().AddDate(0, 0, 13),
				Guests:               2,
				Currency:             "PLN",
			})
			if assert.NoError(t, err) {
				ids[i] = res.ID.String()
			}
		}(i)
	}
	wg.Wait()

	// No implicit dedup: identical-shaped inputs still get distinct records.
	seen := make(map[string]bool, workers)
	for _, id := range ids {
		require.NotEmpty(t, id)
		assert.False(t, seen[id], "duplicate reservation ID %s", id)
		seen[id] = true
	}
	assert.Equal(t, int64(workers), s.notifier.reservationCreated.Load())
}

func TestConcurrentPaymentInitiations(t *testing.T) {
	s := newConcurrencyStack(t)
	p := s.reservationWithPayment(t)
	resID := p.ReservationID

	const workers = 8
	var wg sync.WaitGroup
	created := make([]*domain.Payment, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := s.svc.InitiatePayment(context.Background(), resID,
				"https://shop.example/ok", "https://shop.example/fail")
			if assert.NoError(t, err) {
				created[i] = p
			}
		}(i)
	}
	wg.Wait()

	// Initiations serialize on the reservation: the stored link must pair a
	// payment ID with that same payment's redirect URL, never a mix of two
	// interleaved writers.
	res, err := s.svc.GetReservation(context.Background(), resID)
	require.NoError(t, err)
	require.NotNil(t, res.PaymentID)
	require.NotNil(t, res.PaymentURL)

	linked, err := s.payments.GetByID(context.Background(), *res.PaymentID)
	require.NoError(t, err)
	require.NotNil(t, linked, "linked payment must exist")
	assert.Equal(t, linked.RedirectURL, *res.PaymentURL)

	var found bool
	for _, c := range created {
		require.NotNil(t, c)
		if c.ID == linked.ID {
			found = true
		}
	}
	assert.True(t, found, "the stored link points at one of this test's initiations")
}

func TestPaymentRepoVersionConflict(t *testing.T) {
	repo := newInMemoryPaymentRepo()
	ctx := context.Background()

	p := &domain.Payment{
		ID:       uuid.New(),
		Status:   domain.PaymentStatusPending,
		Amount:   decimal.RequireFromString("15.00"),
		Currency: "PLN",
		Version:  1,
	}
	require.NoError(t, repo.Create(ctx, p))

	first, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)

	first.Status = domain.PaymentStatusProcessing
	require.NoError(t, repo.Update(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	// The stale reader loses the CAS.
	second.Status = domain.PaymentStatusCancelled
	err = repo.Update(ctx, second)
	require.ErrorIs(t, err, ports.ErrVersionConflict)

	stored, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusProcessing, stored.Status)
}
