package handler

import (
	"time"

	"tourist-tax-engine/internal/adapter/http/dto"
	"tourist-tax-engine/internal/core/ports"
	"tourist-tax-engine/pkg/apperror"
	"tourist-tax-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReservationHandler handles reservation endpoints.
type ReservationHandler struct {
	lifecycleSvc ports.ReservationLifecycleService
}

// NewReservationHandler creates a new ReservationHandler.
func NewReservationHandler(lifecycleSvc ports.ReservationLifecycleService) *ReservationHandler {
	return &ReservationHandler{lifecycleSvc: lifecycleSvc}
}

// Create handles POST /api/v1/reservations.
func (h *ReservationHandler) Create(c *gin.Context) {
	var req dto.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	checkIn, err := time.Parse(dto.DateLayout, req.CheckIn)
	if err != nil {
		response.Error(c, apperror.Validation("check_in must be a YYYY-MM-DD date"))
		return
	}
	checkOut, err := time.Parse(dto.DateLayout, req.CheckOut)
	if err != nil {
		response.Error(c, apperror.Validation("check_out must be a YYYY-MM-DD date"))
		return
	}

	res, err := h.lifecycleSvc.CreateReservation(c.Request.Context(), ports.CreateReservationInput{
		GuestName:            req.GuestName,
		GuestEmail:           req.GuestEmail,
		AccommodationName:    req.AccommodationName,
		AccommodationAddress: req.AccommodationAddress,
		City:                 req.City,
		CheckIn:              checkIn,
		CheckOut:             checkOut,
		Guests:               req.Guests,
		Currency:             req.Currency,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.NewReservationResponse(res))
}

// Get handles GET /api/v1/reservations/:id.
func (h *ReservationHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id must be a UUID"))
		return
	}

	res, err := h.lifecycleSvc.GetReservation(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewReservationResponse(res))
}

// List handles GET /api/v1/reservations (admin).
func (h *ReservationHandler) List(c *gin.Context) {
	reservations, err := h.lifecycleSvc.ListReservations(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.ReservationResponse, 0, len(reservations))
	for i := range reservations {
		items = append(items, dto.NewReservationResponse(&reservations[i]))
	}
	response.OK(c, items)
}

// Delete handles DELETE /api/v1/reservations/:id (admin).
func (h *ReservationHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id must be a UUID"))
		return
	}

	if err := h.lifecycleSvc.DeleteReservation(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
