package handler

import (
	"bytes"
	"io"

	"tourist-tax-engine/internal/adapter/http/dto"
	"tourist-tax-engine/internal/core/ports"
	"tourist-tax-engine/pkg/apperror"
	"tourist-tax-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PaymentHandler handles payment and webhook endpoints.
type PaymentHandler struct {
	lifecycleSvc ports.ReservationLifecycleService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(lifecycleSvc ports.ReservationLifecycleService) *PaymentHandler {
	return &PaymentHandler{lifecycleSvc: lifecycleSvc}
}

// Create handles POST /api/v1/payments.
func (h *PaymentHandler) Create(c *gin.Context) {
	var req dto.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	reservationID, err := uuid.Parse(req.ReservationID)
	if err != nil {
		response.Error(c, apperror.Validation("reservation_id must be a UUID"))
		return
	}

	p, err := h.lifecycleSvc.InitiatePayment(c.Request.Context(), reservationID, req.SuccessURL, req.FailureURL)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewPaymentResponse(p))
}

// Get handles GET /api/v1/payments/:id and GET /api/v1/payments/:id/status.
// Both may reconcile against the gateway when the stored status is stale.
func (h *PaymentHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id must be a UUID"))
		return
	}

	p, err := h.lifecycleSvc.GetPaymentStatus(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewPaymentResponse(p))
}

// Webhook handles POST /api/v1/payments/webhooks. The raw body is retained
// verbatim for the payment audit record before binding consumes it.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.Validation("cannot read request body"))
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(rawBody))

	var req dto.WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	paymentID, err := uuid.Parse(req.PaymentID)
	if err != nil {
		response.Error(c, apperror.Validation("payment_id must be a UUID"))
		return
	}

	p, err := h.lifecycleSvc.ProcessWebhook(c.Request.Context(), ports.WebhookNotification{
		PaymentID:     paymentID,
		Status:        req.Status,
		Amount:        req.Amount,
		Currency:      req.Currency,
		TransactionID: req.TransactionID,
		ReceiptURL:    req.ReceiptURL,
		Timestamp:     req.Timestamp,
		Signature:     req.Signature,
		RawBody:       rawBody,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewPaymentResponse(p))
}
