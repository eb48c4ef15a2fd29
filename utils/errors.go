package utils

import (
	"fmt"
	"net/http"
)

type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
	}
}

func NewAPIErrorWithDetails(code int, message, details string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

var (
	ErrInvalidRequest     = NewAPIError(http.StatusBadRequest, "Invalid request")
	ErrUnauthorized       = NewAPIError(http.StatusUnauthorized, "Unauthorized")
	ErrForbidden          = NewAPIError(http.StatusForbidden, "Forbidden")
	ErrNotFound           = NewAPIError(http.StatusNotFound, "Resource not found")
	ErrConflict           = NewAPIError(http.StatusConflict, "Resource conflict")
	ErrTooManyRequests    = NewAPIError(http.StatusTooManyRequests, "Too many requests")
	ErrInternalServer     = NewAPIError(http.StatusInternalServerError, "Internal server error")
	ErrServiceUnavailable = NewAPIError(http.StatusServiceUnavailable, "Service unavailable")
)

var (
	ErrInvalidSignature  = NewAPIError(http.StatusUnauthorized, "Invalid signature")
	ErrTokenExpired      = NewAPIError(http.StatusUnauthorized, "Token expired")
	ErrInvalidToken      = NewAPIError(http.StatusUnauthorized, "Invalid token")
	ErrRateLimitExceeded = NewAPIError(http.StatusTooManyRequests, "Rate limit exceeded")
)

var (
	ErrWebhookInvalidSignature = NewAPIError(http.StatusUnauthorized, "Invalid webhook signature")
	ErrWebhookInvalidPayload   = NewAPIError(http.StatusBadRequest, "Invalid webhook payload")
	ErrWebhookReplayed         = NewAPIError(http.StatusConflict, "Webhook already delivered")
)

var (
	ErrIdempotencyKeyReused  = NewAPIError(http.StatusUnprocessableEntity, "Idempotency key reused with a different request body")
	ErrIdempotencyInProgress = NewAPIError(http.StatusConflict, "A request with this idempotency key is in progress")
)

func WrapError(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}
