package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"tourist-tax-engine/config"
	"tourist-tax-engine/internal/core/domain"
	"tourist-tax-engine/internal/core/ports"
	"tourist-tax-engine/pkg/apperror"

	"github.com/rs/zerolog"
)

// statusRetryBase is the backoff unit between GetStatus attempts.
const statusRetryBase = 200 * time.Millisecond

// Client implements ports.PaymentGateway against the hosted-checkout
// provider's HTTP API. It holds no engine state: session creation either
// fully succeeds or reports an error with nothing persisted on our side.
type Client struct {
	baseURL       string
	merchantID    string
	secret        string
	statusRetries int
	httpClient    *http.Client
	log           zerolog.Logger
}

// NewClient creates a gateway client from configuration.
func NewClient(cfg config.GatewayConfig, log zerolog.Logger) *Client {
	return &Client{
		baseURL:       cfg.BaseURL,
		merchantID:    cfg.MerchantID,
		secret:        cfg.SecretKey,
		statusRetries: cfg.StatusRetries,
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		log:           log,
	}
}

type createSessionBody struct {
	MerchantID    string `json:"merchant_id"`
	OrderRef      string `json:"order_ref"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	SuccessURL    string `json:"success_url"`
	FailureURL    string `json:"failure_url"`
	Signature     string `json:"signature"`
}

type createSessionReply struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

// CreateSession opens a hosted checkout session. Never retried: a duplicate
// request could create a duplicate charge, and a failure leaves no partial
// state to clean up.
func (c *Client) CreateSession(ctx context.Context, req ports.CreateSessionRequest) (*ports.CheckoutSession, error) {
	amount := req.Amount.StringFixed(2)
	body := createSessionBody{
		MerchantID:    c.merchantID,
		OrderRef:      req.OrderRef,
		Amount:        amount,
		Currency:      req.Currency,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		SuccessURL:    req.SuccessURL,
		FailureURL:    req.FailureURL,
		Signature: sign(c.secret, map[string]string{
			"amount":      amount,
			"currency":    req.Currency,
			"failure_url": req.FailureURL,
			"merchant_id": c.merchantID,
			"order_ref":   req.OrderRef,
			"success_url": req.SuccessURL,
		}),
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal session request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/sessions", bytes.NewReader(payload))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("build session request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.classify(err, "create session")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Error().Int("status", resp.StatusCode).Str("order_ref", req.OrderRef).
			Str("body", string(snippet)).Msg("gateway rejected session creation")
		return nil, apperror.ErrGateway(fmt.Errorf("create session: provider returned %d", resp.StatusCode))
	}

	var reply createSessionReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, apperror.ErrGateway(fmt.Errorf("decode session response: %w", err))
	}
	if reply.SessionID == "" || reply.RedirectURL == "" {
		return nil, apperror.ErrGateway(errors.New("create session: provider returned incomplete session"))
	}

	return &ports.CheckoutSession{
		SessionID:   reply.SessionID,
		RedirectURL: reply.RedirectURL,
	}, nil
}

type sessionStatusReply struct {
	SessionID     string `json:"session_id"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	ReceiptURL    string `json:"receipt_url"`
}

// GetStatus fetches the provider's authoritative view of a session. The
// query is idempotent, so it is retried with exponential backoff up to the
// configured budget.
func (c *Client) GetStatus(ctx context.Context, sessionID string) (*ports.SessionStatus, error) {
	var lastErr error
	attempts := c.statusRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := statusRetryBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, apperror.ErrGatewayTimeout(ctx.Err())
			case <-time.After(backoff):
			}
		}

		status, err := c.fetchStatus(ctx, sessionID)
		if err == nil {
			return status, nil
		}
		lastErr = err
		c.log.Warn().Err(err).Str("session_id", sessionID).Int("attempt", attempt+1).Msg("gateway status query failed")
	}
	return nil, c.classify(lastErr, "get status")
}

func (c *Client) fetchStatus(ctx context.Context, sessionID string) (*ports.SessionStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/sessions/"+sessionID, nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}
	httpReq.Header.Set("X-Merchant-Id", c.merchantID)
	httpReq.Header.Set("X-Signature", sign(c.secret, map[string]string{
		"merchant_id": c.merchantID,
		"session_id":  sessionID,
	}))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("get status: provider returned %d", resp.StatusCode)
	}

	var reply sessionStatusReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	return &ports.SessionStatus{
		SessionID:     reply.SessionID,
		Status:        reply.Status,
		TransactionID: reply.TransactionID,
		ReceiptURL:    reply.ReceiptURL,
	}, nil
}

// VerifySignature checks an inbound webhook's keyed hash using the same
// canonicalization as outbound requests.
func (c *Client) VerifySignature(w ports.WebhookNotification) bool {
	return verify(c.secret, map[string]string{
		"amount":         w.Amount.StringFixed(2),
		"currency":       w.Currency,
		"payment_id":     w.PaymentID.String(),
		"status":         w.Status,
		"timestamp":      strconv.FormatInt(w.Timestamp, 10),
		"transaction_id": w.TransactionID,
	}, w.Signature)
}

// MapStatus translates the provider's status vocabulary into the engine's.
func (c *Client) MapStatus(external string) (domain.PaymentStatus, error) {
	switch external {
	case "new", "pending":
		return domain.PaymentStatusPending, nil
	case "processing", "in_progress":
		return domain.PaymentStatusProcessing, nil
	case "completed", "success", "paid":
		return domain.PaymentStatusCompleted, nil
	case "failed", "rejected", "expired":
		return domain.PaymentStatusFailed, nil
	case "cancelled", "canceled":
		return domain.PaymentStatusCancelled, nil
	default:
		return "", fmt.Errorf("unknown gateway status %q", external)
	}
}

// classify wraps transport errors: deadline problems become timeouts,
// everything else a gateway error. Provider error text stays in the wrapped
// error for logs only.
func (c *Client) classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return apperror.ErrGatewayTimeout(fmt.Errorf("%s: %w", op, err))
	}
	return apperror.ErrGateway(fmt.Errorf("%s: %w", op, err))
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
