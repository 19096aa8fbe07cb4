package integration

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"tourist-tax-engine/config"
	"tourist-tax-engine/internal/adapter/gateway"
	"tourist-tax-engine/internal/adapter/http/handler"
	"tourist-tax-engine/internal/adapter/rabbitmq"
	"tourist-tax-engine/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const providerSecret = "integration-secret"

// fakeProvider emulates the hosted-checkout provider: it issues sessions and
// serves their status, so the real gateway client runs against real HTTP.
type fakeProvider struct {
	mu       sync.Mutex
	srv      *httptest.Server
	sessions map[string]string // session ID -> provider status
	nextID   int
}

func newFakeProvider() *fakeProvider {
	p := &fakeProvider{sessions: make(map[string]string)}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sessions", p.createSession)
	mux.HandleFunc("GET /v1/sessions/", p.getSession)
	p.srv = httptest.NewServer(mux)
	return p
}

func (p *fakeProvider) createSession(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.nextID++
	id := fmt.Sprintf("sess_%d", p.nextID)
	p.sessions[id] = "pending"
	p.mu.Unlock()

	_ = json.NewEncoder(w).Encode(map[string]string{
		"session_id":   id,
		"redirect_url": p.srv.URL + "/checkout/" + id,
	})
}

func (p *fakeProvider) getSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	p.mu.Lock()
	status, ok := p.sessions[id]
	p.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{
		"session_id": id,
		"status":     status,
	})
}

func (p *fakeProvider) setStatus(id, status string) {
	p.mu.Lock()
	p.sessions[id] = status
	p.mu.Unlock()
}

// signWebhook computes the provider-side HMAC the engine verifies on inbound
// webhooks: SHA-256 over the alphabetically sorted key=value parameter set.
func signWebhook(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	mac := hmac.New(sha256.New, []byte(providerSecret))
	mac.Write([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}

// testStack is a full engine wired over in-memory persistence and the fake
// provider. Only PostgreSQL, Redis and RabbitMQ are substituted.
type testStack struct {
	router       *gin.Engine
	provider     *fakeProvider
	reservations *inMemoryReservationRepo
	payments     *inMemoryPaymentRepo
	adminToken   string
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	provider := newFakeProvider()
	t.Cleanup(provider.srv.Close)

	gw := gateway.NewClient(config.GatewayConfig{
		BaseURL:       provider.srv.URL,
		MerchantID:    "merchant-test",
		SecretKey:     providerSecret,
		Timeout:       2 * time.Second,
		StatusRetries: 1,
	}, zerolog.Nop())

	reservations := newInMemoryReservationRepo()
	payments := newInMemoryPaymentRepo()

	svc := service.NewLifecycleService(
		reservations,
		payments,
		gw,
		rabbitmq.NopNotifier{},
		newInMemoryPaymentLock(),
		service.NewTaxCalculator(service.NewTaxRateTable()),
		zerolog.Nop(),
	)

	tokenSvc := service.NewJWTTokenService("integration-jwt-secret", time.Hour, "tourist-tax-engine")
	adminToken, _, err := tokenSvc.Generate("ops")
	require.NoError(t, err)

	router := handler.SetupRouter(handler.RouterDeps{
		LifecycleSvc: svc,
		TokenSvc:     tokenSvc,
		Logger:       zerolog.Nop(),
	})

	return &testStack{
		router:       router,
		provider:     provider,
		reservations: reservations,
		payments:     payments,
		adminToken:   adminToken,
	}
}

func (s *testStack) do(t *testing.T, method, path string, body any, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("Authorization", "Bearer "+s.adminToken)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope), w.Body.String())
	return envelope.Data
}

func futureDate(days int) string {
	return time.Now().UTC().AddDate(0, 0, days).Format("2006-01-02")
}

func reservationBody() map[string]any {
	return map[string]any{
		"guest_name":            "Anna Kowalska",
		"guest_email":           "anna@example.com",
		"accommodation_name":    "Hotel Wawel",
		"accommodation_address": "ul. Grodzka 1, Krakow",
		"city":                  "Krakow",
		"check_in":              futureDate(10),
		"check_out":             futureDate(13),
		"guests":                2,
		"currency":              "PLN",
	}
}

// createReservation drives POST /reservations and returns the new ID.
func (s *testStack) createReservation(t *testing.T) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/reservations", reservationBody(), false)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := decodeData(t, w)
	return data["id"].(string)
}

// initiatePayment drives POST /payments and returns (paymentID, sessionID).
func (s *testStack) initiatePayment(t *testing.T, reservationID string) (string, string) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/payments", map[string]any{
		"reservation_id": reservationID,
		"success_url":    "https://shop.example/ok",
		"failure_url":    "https://shop.example/fail",
	}, false)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := decodeData(t, w)

	redirect := data["redirect_url"].(string)
	sessionID := redirect[strings.LastIndex(redirect, "/")+1:]
	return data["id"].(string), sessionID
}

// sendWebhook posts a correctly signed provider notification.
func (s *testStack) sendWebhook(t *testing.T, paymentID, status, amount, txnID string) *httptest.ResponseRecorder {
	t.Helper()
	ts := time.Now().Unix()
	body := map[string]any{
		"payment_id":     paymentID,
		"status":         status,
		"amount":         amount,
		"currency":       "PLN",
		"transaction_id": txnID,
		"timestamp":      ts,
		"signature": signWebhook(map[string]string{
			"amount":         amount,
			"currency":       "PLN",
			"payment_id":     paymentID,
			"status":         status,
			"timestamp":      fmt.Sprintf("%d", ts),
			"transaction_id": txnID,
		}),
	}
	return s.do(t, http.MethodPost, "/api/v1/payments/webhooks", body, false)
}

func TestFullPaymentLifecycle(t *testing.T) {
	s := newTestStack(t)

	// Create: Kraków, 2 guests, 3 nights at 2.50 PLN comes to 15.00.
	resID := s.createReservation(t)
	w := s.do(t, http.MethodGet, "/api/v1/reservations/"+resID, nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "Kraków", data["city"])
	assert.Equal(t, "15.00", data["total_tax"])
	assert.Equal(t, "PENDING", data["status"])

	// Initiate: a checkout session opens at the provider.
	payID, sessionID := s.initiatePayment(t, resID)
	assert.NotEmpty(t, sessionID)

	// Provider moves the session along, webhook confirms completion.
	s.provider.setStatus(sessionID, "completed")
	w = s.sendWebhook(t, payID, "completed", "15.00", "txn_1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "COMPLETED", decodeData(t, w)["status"])

	// Reservation followed the payment to PAID.
	w = s.do(t, http.MethodGet, "/api/v1/reservations/"+resID, nil, false)
	data = decodeData(t, w)
	assert.Equal(t, "PAID", data["status"])
}

func TestDuplicateWebhookIsAccepted(t *testing.T) {
	s := newTestStack(t)

	resID := s.createReservation(t)
	payID, _ := s.initiatePayment(t, resID)

	first := s.sendWebhook(t, payID, "completed", "15.00", "txn_1")
	require.Equal(t, http.StatusOK, first.Code)

	// Redelivery of the same notification is a no-op, still 200.
	second := s.sendWebhook(t, payID, "completed", "15.00", "txn_1")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "COMPLETED", decodeData(t, second)["status"])
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	s := newTestStack(t)

	resID := s.createReservation(t)
	payID, _ := s.initiatePayment(t, resID)

	ts := time.Now().Unix()
	body := map[string]any{
		"payment_id":     payID,
		"status":         "completed",
		"amount":         "15.00",
		"currency":       "PLN",
		"transaction_id": "txn_1",
		"timestamp":      ts,
		"signature":      strings.Repeat("0", 64),
	}
	w := s.do(t, http.MethodPost, "/api/v1/payments/webhooks", body, false)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "SEC_001")

	// The payment is untouched.
	status := s.do(t, http.MethodGet, "/api/v1/payments/"+payID, nil, false)
	assert.Equal(t, "PENDING", decodeData(t, status)["status"])
}

func TestWebhookRejectsAmountMismatch(t *testing.T) {
	s := newTestStack(t)

	resID := s.createReservation(t)
	payID, _ := s.initiatePayment(t, resID)

	w := s.sendWebhook(t, payID, "completed", "1.00", "txn_1")
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "PAY_002")
}

func TestWebhookRejectsRegression(t *testing.T) {
	s := newTestStack(t)

	resID := s.createReservation(t)
	payID, _ := s.initiatePayment(t, resID)

	require.Equal(t, http.StatusOK, s.sendWebhook(t, payID, "completed", "15.00", "txn_1").Code)

	// COMPLETED is terminal; a late "failed" must be rejected.
	w := s.sendWebhook(t, payID, "failed", "15.00", "txn_1")
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "PAY_001")
}

func TestFailedWebhookFailsReservation(t *testing.T) {
	s := newTestStack(t)

	resID := s.createReservation(t)
	payID, _ := s.initiatePayment(t, resID)

	require.Equal(t, http.StatusOK, s.sendWebhook(t, payID, "failed", "15.00", "").Code)

	// The reservation follows the payment to FAILED and payment initiation
	// now reports the invalid state.
	w := s.do(t, http.MethodGet, "/api/v1/reservations/"+resID, nil, false)
	require.Equal(t, "FAILED", decodeData(t, w)["status"])

	retry := s.do(t, http.MethodPost, "/api/v1/payments", map[string]any{
		"reservation_id": resID,
		"success_url":    "https://shop.example/ok",
		"failure_url":    "https://shop.example/fail",
	}, false)
	require.Equal(t, http.StatusConflict, retry.Code)
	assert.Contains(t, retry.Body.String(), "RES_002")
}

func TestReinitiationSupersedesAbandonedSession(t *testing.T) {
	s := newTestStack(t)

	// Initiation does not move the reservation out of PENDING, so an
	// abandoned checkout can simply be re-initiated with a fresh Payment.
	resID := s.createReservation(t)
	firstPayID, _ := s.initiatePayment(t, resID)
	secondPayID, _ := s.initiatePayment(t, resID)
	require.NotEqual(t, firstPayID, secondPayID)

	require.Equal(t, http.StatusOK, s.sendWebhook(t, secondPayID, "completed", "15.00", "txn_2").Code)

	w := s.do(t, http.MethodGet, "/api/v1/reservations/"+resID, nil, false)
	data := decodeData(t, w)
	assert.Equal(t, "PAID", data["status"])
	assert.Equal(t, secondPayID, data["payment_id"])
}

func TestStatusPollReconcilesWithProvider(t *testing.T) {
	s := newTestStack(t)

	resID := s.createReservation(t)
	payID, sessionID := s.initiatePayment(t, resID)

	// Provider advanced but no webhook arrived yet.
	s.provider.setStatus(sessionID, "processing")

	w := s.do(t, http.MethodGet, "/api/v1/payments/"+payID+"/status", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PROCESSING", decodeData(t, w)["status"])
}

func TestAdminListAndDelete(t *testing.T) {
	s := newTestStack(t)

	resID := s.createReservation(t)

	// List requires the admin token.
	require.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/v1/reservations", nil, false).Code)

	w := s.do(t, http.MethodGet, "/api/v1/reservations", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), resID)

	require.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/v1/reservations/"+resID, nil, true).Code)
	require.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/reservations/"+resID, nil, false).Code)

	// Deleting again reports not found.
	require.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/v1/reservations/"+resID, nil, true).Code)
}

func TestUnsupportedCityRejected(t *testing.T) {
	s := newTestStack(t)

	body := reservationBody()
	body["city"] = "Berlin"
	w := s.do(t, http.MethodPost, "/api/v1/reservations", body, false)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "CITY_001")
}

func TestReservationStatusFollowsPaymentCancellation(t *testing.T) {
	s := newTestStack(t)

	resID := s.createReservation(t)
	payID, _ := s.initiatePayment(t, resID)

	require.Equal(t, http.StatusOK, s.sendWebhook(t, payID, "cancelled", "15.00", "").Code)

	w := s.do(t, http.MethodGet, "/api/v1/reservations/"+resID, nil, false)
	require.Equal(t, "CANCELLED", decodeData(t, w)["status"])

	// CANCELLED is terminal for reservations; no further payment attempts.
	pay := s.do(t, http.MethodPost, "/api/v1/payments", map[string]any{
		"reservation_id": resID,
		"success_url":    "https://shop.example/ok",
		"failure_url":    "https://shop.example/fail",
	}, false)
	require.Equal(t, http.StatusConflict, pay.Code)
}
