// Package errors provides the standardized error taxonomy for the conversation core.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Input errors are rejected before scoring and never change session state.
// Provider errors are classified retryable vs non-retryable; consistency
// errors come from concurrent session writes.
const (
	ErrCodeUnknownTenant ErrorCode = "UNKNOWN_TENANT"
	ErrCodeEmptyMessage  ErrorCode = "EMPTY_MESSAGE"

	ErrCodeCatalogLoadFailed ErrorCode = "CATALOG_LOAD_FAILED"

	ErrCodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrCodeProviderTimeout     ErrorCode = "PROVIDER_TIMEOUT"
	ErrCodeRateLimited         ErrorCode = "RATE_LIMITED"
	ErrCodeInvalidResponse     ErrorCode = "INVALID_RESPONSE"

	ErrCodeDataNotFound    ErrorCode = "DATA_NOT_FOUND"
	ErrCodeConnectionError ErrorCode = "CONNECTION_ERROR"

	ErrCodeDeliveryFailed ErrorCode = "DELIVERY_FAILED"

	ErrCodeSessionConflict   ErrorCode = "SESSION_CONFLICT"
	ErrCodeSessionLoadFailed ErrorCode = "SESSION_LOAD_FAILED"
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

// NewUnknownTenantError creates a non-retryable input error for a tenant id
// with no catalog.
func NewUnknownTenantError(tenantID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownTenant,
		Message:   "No tenant configuration found",
		Details:   fmt.Sprintf("tenantId: %s", tenantID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmptyMessageError creates a non-retryable input error for a message with
// no extractable content after normalization.
func NewEmptyMessageError() *StandardError {
	return &StandardError{
		Code:      ErrCodeEmptyMessage,
		Message:   "Message has no extractable content",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCatalogLoadFailedError creates a retryable catalog load error. Halts only
// the affected tenant's processing.
func NewCatalogLoadFailedError(tenantID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCatalogLoadFailed,
		Message:   "Intent catalog load failed",
		Details:   fmt.Sprintf("tenantId: %s, error: %s", tenantID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderUnavailableError creates a retryable provider error. A nil err
// means the capability has no binding at all.
func NewProviderUnavailableError(provider string, err error) *StandardError {
	details := "no binding registered"
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      ErrCodeProviderUnavailable,
		Message:   fmt.Sprintf("Provider '%s' unavailable", provider),
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewProviderTimeoutError creates a retryable provider timeout error.
func NewProviderTimeoutError(provider string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProviderTimeout,
		Message:   fmt.Sprintf("Provider '%s' call timed out", provider),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRateLimitedError creates a retryable rate-limit error.
func NewRateLimitedError(provider string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRateLimited,
		Message:   fmt.Sprintf("Provider '%s' rate limited the request", provider),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidResponseError creates a non-retryable malformed-response error.
func NewInvalidResponseError(provider, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidResponse,
		Message:   fmt.Sprintf("Provider '%s' returned a malformed response", provider),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDataNotFoundError creates a non-retryable data-source miss.
func NewDataNotFoundError(descriptor string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDataNotFound,
		Message:   "Data source returned no result",
		Details:   fmt.Sprintf("descriptor: %s", descriptor),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewConnectionError creates a retryable data-source connection error.
func NewConnectionError(source string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeConnectionError,
		Message:   fmt.Sprintf("Connection to '%s' failed", source),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDeliveryFailedError creates a retryable outbound delivery error.
func NewDeliveryFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeliveryFailed,
		Message:   fmt.Sprintf("Message delivery via '%s' failed", channel),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionConflictError creates a concurrent-write conflict error. The flow
// manager retries the turn once by reloading; after that the turn is dropped.
func NewSessionConflictError(sessionKey string, expectedVersion, storedVersion int64) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionConflict,
		Message:   "Concurrent write conflict on session save",
		Details:   fmt.Sprintf("sessionKey: %s, expectedVersion: %d, storedVersion: %d", sessionKey, expectedVersion, storedVersion),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionLoadFailedError creates a retryable session store error.
func NewSessionLoadFailedError(sessionKey string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionLoadFailed,
		Message:   "Session load failed",
		Details:   fmt.Sprintf("sessionKey: %s, error: %s", sessionKey, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Classification
// ==========================

// GetRetryCount returns the recommended in-turn retry count per code. Tenant
// retry policy may cap this lower, never higher.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeCatalogLoadFailed,
		ErrCodeConnectionError,
		ErrCodeDeliveryFailed,
		ErrCodeSessionLoadFailed:
		return 3

	case ErrCodeProviderUnavailable,
		ErrCodeRateLimited:
		return 2

	case ErrCodeProviderTimeout,
		ErrCodeSessionConflict:
		return 1

	default:
		return 0 // Input and malformed-response errors: no retry
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// CodeOf extracts the ErrorCode from any error, or empty when it is not a
// StandardError.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// IsRetryable reports whether an error should be retried within the turn.
// Unknown errors are treated as non-retryable so they escalate instead of
// looping.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable && GetRetryCount(stdErr.Code) > 0
	}
	return false
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "TENANT") || strings.Contains(codeStr, "MESSAGE"):
		return "INPUT"
	case strings.Contains(codeStr, "CATALOG"):
		return "CATALOG"
	case strings.Contains(codeStr, "PROVIDER") || strings.Contains(codeStr, "RATE") || strings.Contains(codeStr, "RESPONSE"):
		return "PROVIDER"
	case strings.Contains(codeStr, "DATA") || strings.Contains(codeStr, "CONNECTION"):
		return "DATA_SOURCE"
	case strings.Contains(codeStr, "DELIVERY"):
		return "MESSAGING"
	case strings.Contains(codeStr, "SESSION"):
		return "SESSION"
	default:
		return "OTHER"
	}
}
