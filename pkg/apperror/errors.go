package apperror

import (
	"fmt"
	"net/http"
	"strings"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Validation (VAL) ----

// Validation returns a generic bad-input error naming the offending field.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

func ErrInvalidDateRange() *AppError {
	return New("VAL_002", "check-out date must be after check-in date", http.StatusBadRequest)
}

func ErrInvalidQuantity(message string) *AppError {
	return New("VAL_003", message, http.StatusBadRequest)
}

// ErrUnsupportedCity lists the supported cities so callers can correct input.
func ErrUnsupportedCity(city string, supported []string) *AppError {
	return New("CITY_001",
		fmt.Sprintf("city %q is not supported; supported cities: %s", city, strings.Join(supported, ", ")),
		http.StatusBadRequest)
}

// ---- Reservation & Payment Lifecycle (RES/PAY) ----

func ErrNotFound(entity string) *AppError {
	return New("RES_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrInvalidState(current string, operation string) *AppError {
	return New("RES_002",
		fmt.Sprintf("operation %s is not permitted while reservation is %s", operation, current),
		http.StatusConflict)
}

func ErrInvalidTransition(from string, to string) *AppError {
	return New("PAY_001",
		fmt.Sprintf("invalid payment status transition %s -> %s", from, to),
		http.StatusConflict)
}

func ErrAmountMismatch(expected string, got string) *AppError {
	return New("PAY_002",
		fmt.Sprintf("webhook amount %s does not match stored payment amount %s", got, expected),
		http.StatusConflict)
}

// ---- Security (SEC) ----

func ErrInvalidSignature() *AppError {
	return New("SEC_001", "Invalid webhook signature", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("SEC_002", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- Gateway (GW) ----

// ErrGateway wraps an upstream provider failure. The provider's error text
// stays in the wrapped error for logs and is never sent to clients.
func ErrGateway(err error) *AppError {
	return Wrap("GW_001", "Payment provider request failed", http.StatusBadGateway, err)
}

func ErrGatewayTimeout(err error) *AppError {
	return Wrap("GW_002", "Payment provider request timed out", http.StatusGatewayTimeout, err)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
