// Package errors provides standardized error handling for the discovery and
// notification pipeline.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Discovery errors
	ErrCodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrCodeIssuerNotFound      ErrorCode = "ISSUER_NOT_FOUND"
	ErrCodeParseFailure        ErrorCode = "PARSE_FAILURE"

	// Delivery errors
	ErrCodeInvalidToken           ErrorCode = "INVALID_TOKEN"
	ErrCodePartialDeliveryFailure ErrorCode = "PARTIAL_DELIVERY_FAILURE"
	ErrCodeSendFailed             ErrorCode = "SEND_FAILED"

	// Settings-surface errors (consumed by the excluded API layer)
	ErrCodeNotConfigured      ErrorCode = "NOT_CONFIGURED"
	ErrCodeNoDeviceRegistered ErrorCode = "NO_DEVICE_REGISTERED"

	// Persistence errors
	ErrCodeDatabaseUnavailable ErrorCode = "DATABASE_UNAVAILABLE"
	ErrCodeInsertFailed        ErrorCode = "DATABASE_INSERT_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewUpstreamUnavailableError creates a retryable upstream error. Retry means
// the next scheduled scan cycle, never an inline retry.
func NewUpstreamUnavailableError(source string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamUnavailable,
		Message:   "Upstream discovery source unavailable",
		Details:   fmt.Sprintf("source: %s, error: %s", source, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewIssuerNotFoundError creates a non-retryable unknown-issuer error.
// Permanent until an operator re-registers the issuer.
func NewIssuerNotFoundError(cik string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIssuerNotFound,
		Message:   "Issuer unknown to the submissions endpoint",
		Details:   fmt.Sprintf("cik: %s", cik),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewParseFailureError creates a non-retryable parse error for one entry.
// The entry is dropped and counted; the batch continues.
func NewParseFailureError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeParseFailure,
		Message:   "Unparseable feed entry",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSendFailedError creates a retryable delivery error.
func NewSendFailedError(transport string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSendFailed,
		Message:   "Push delivery failed",
		Details:   fmt.Sprintf("transport: %s, error: %s", transport, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotConfiguredError signals that a push transport is not configured.
func NewNotConfiguredError(transport string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotConfigured,
		Message:   "Push notification service is not configured",
		Details:   fmt.Sprintf("transport: %s", transport),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNoDeviceRegisteredError signals that the user has no push endpoints.
func NewNoDeviceRegisteredError(userID int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeNoDeviceRegistered,
		Message:   "No active device tokens found",
		Details:   fmt.Sprintf("userId: %d", userID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInsertFailedError creates a retryable database insert error.
func NewInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInsertFailed,
		Message:   "Database insert operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Classification Helpers
// ==========================

// IsCode reports whether err is a StandardError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsRetryable reports whether err may succeed on the next scheduled cycle.
func IsRetryable(err error) bool {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}
