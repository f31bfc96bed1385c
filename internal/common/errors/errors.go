// Package errors provides the standardized error taxonomy for the feed engine.
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

const (
	// Precondition / user-facing
	ErrCodeRequestUnavailable       ErrorCode = "REQUEST_UNAVAILABLE"
	ErrCodeActionWriteFailed        ErrorCode = "ACTION_WRITE_FAILED"
	ErrCodeResponseValidationFailed ErrorCode = "RESPONSE_VALIDATION_FAILED"
	ErrCodeDialNumberMissing        ErrorCode = "DIAL_NUMBER_MISSING"

	// Live data
	ErrCodeListenerFailed    ErrorCode = "LISTENER_FAILED"
	ErrCodeMalformedDocument ErrorCode = "MALFORMED_DOCUMENT"
	ErrCodeSeenWriteFailed   ErrorCode = "SEEN_WRITE_FAILED"

	// Infrastructure
	ErrCodeStoreConnectionFailed  ErrorCode = "STORE_CONNECTION_FAILED"
	ErrCodeDocumentNotFound       ErrorCode = "DOCUMENT_NOT_FOUND"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeTokenLookupFailed      ErrorCode = "TOKEN_LOOKUP_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error { return e.cause }

// WithMetadata attaches a key/value pair and returns the receiver.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

// NewRequestUnavailableError is raised when an action targets a request that no
// longer resolves to a requester.
func NewRequestUnavailableError(requestID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRequestUnavailable,
		Message:   "This request is no longer active.",
		Details:   fmt.Sprintf("requestId: %s", requestID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewActionWriteFailedError wraps a failed accept/decline write. verb is
// "accept" or "decline"; the message carries the underlying store error so it
// can be shown to the user.
func NewActionWriteFailedError(verb string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeActionWriteFailed,
		Message:   fmt.Sprintf("Failed to %s request: %s", verb, err.Error()),
		Details:   fmt.Sprintf("action: %s", verb),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewResponseValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeResponseValidationFailed,
		Message:   "Response payload failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewDialNumberMissingError() *StandardError {
	return &StandardError{
		Code:      ErrCodeDialNumberMissing,
		Message:   "No phone number available",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewListenerFailedError wraps an error delivered by a live subscription.
func NewListenerFailedError(listener string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeListenerFailed,
		Message:   "Live subscription failed",
		Details:   fmt.Sprintf("listener: %s, error: %v", listener, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewMalformedDocumentError(collection, id, missing string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedDocument,
		Message:   "Document is missing essential fields",
		Details:   fmt.Sprintf("collection: %s, id: %s, missing: %s", collection, id, missing),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSeenWriteFailedError(role string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSeenWriteFailed,
		Message:   "Marking notifications as seen failed",
		Details:   fmt.Sprintf("role: %s, error: %v", role, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewStoreConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreConnectionFailed,
		Message:   "Document store connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewDocumentNotFoundError(collection, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDocumentNotFound,
		Message:   "Document not found",
		Details:   fmt.Sprintf("collection: %s, id: %s", collection, id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("type: %s, error: %v", notificationType, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewTokenLookupFailedError(uid string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTokenLookupFailed,
		Message:   "Push token lookup failed",
		Details:   fmt.Sprintf("uid: %s, error: %v", uid, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 3. Classification
// ==========================

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStoreConnectionFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeTokenLookupFailed:
		return 3
	case ErrCodeListenerFailed,
		ErrCodeSeenWriteFailed:
		return 1
	default:
		return 0
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// IsUserFacing reports whether the error should be surfaced to the user as an
// alert. Everything else is logged only.
func IsUserFacing(err error) bool {
	var stdErr *StandardError
	if !errors.As(err, &stdErr) {
		return false
	}
	switch stdErr.Code {
	case ErrCodeRequestUnavailable, ErrCodeActionWriteFailed,
		ErrCodeResponseValidationFailed, ErrCodeDialNumberMissing:
		return true
	}
	return false
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "REQUEST") || strings.Contains(codeStr, "ACTION"):
		return "ACTION"
	case strings.Contains(codeStr, "LISTENER") || strings.Contains(codeStr, "SEEN"):
		return "SYNC"
	case strings.Contains(codeStr, "STORE") || strings.Contains(codeStr, "DOCUMENT"):
		return "STORE"
	case strings.Contains(codeStr, "NOTIFICATION") || strings.Contains(codeStr, "TOKEN"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "DIAL"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// HasCode reports whether err is a StandardError carrying code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return errors.As(err, &stdErr) && stdErr.Code == code
}
