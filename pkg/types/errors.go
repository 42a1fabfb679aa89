package types

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeForbidden  ErrorType = "forbidden"
	ErrorTypeInternal   ErrorType = "internal"
)

// OrderError represents a structured error in the order engine
type OrderError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *OrderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *OrderError) Unwrap() error {
	return e.Cause
}

// Error codes for the order engine taxonomy
const (
	ErrCodeNotFound               = "NOT_FOUND"
	ErrCodeNotEligible            = "NOT_ELIGIBLE"
	ErrCodeCapacityExceeded       = "CAPACITY_EXCEEDED"
	ErrCodeIllegalTransition      = "ILLEGAL_TRANSITION"
	ErrCodeCancellationNotAllowed = "CANCELLATION_NOT_ALLOWED"
	ErrCodeConcurrentModification = "CONCURRENT_MODIFICATION"
	ErrCodeForbidden              = "FORBIDDEN"
	ErrCodeInvalidInput           = "INVALID_INPUT"
	ErrCodeInternalError          = "INTERNAL_ERROR"
)

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource, id string) *OrderError {
	return &OrderError{
		Type:    ErrorTypeNotFound,
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewNotEligibleError creates an error for a technician that cannot accept an order
func NewNotEligibleError(technicianID, reason string) *OrderError {
	return &OrderError{
		Type:    ErrorTypeConflict,
		Code:    ErrCodeNotEligible,
		Message: fmt.Sprintf("technician %s is not eligible: %s", technicianID, reason),
	}
}

// NewCapacityExceededError creates an error for a technician at maximum load
func NewCapacityExceededError(technicianID string) *OrderError {
	return &OrderError{
		Type:    ErrorTypeConflict,
		Code:    ErrCodeCapacityExceeded,
		Message: fmt.Sprintf("technician %s is at maximum concurrent orders", technicianID),
	}
}

// NewIllegalTransitionError creates an error for a state change the lifecycle forbids
func NewIllegalTransitionError(from, to OrderStatus) *OrderError {
	return &OrderError{
		Type:    ErrorTypeConflict,
		Code:    ErrCodeIllegalTransition,
		Message: fmt.Sprintf("illegal transition from %s to %s", from, to),
	}
}

// NewCancellationNotAllowedError creates an error for cancelling past the cutoff states
func NewCancellationNotAllowedError(current OrderStatus) *OrderError {
	return &OrderError{
		Type:    ErrorTypeConflict,
		Code:    ErrCodeCancellationNotAllowed,
		Message: fmt.Sprintf("order in status %s can no longer be cancelled", current),
	}
}

// NewConcurrentModificationError creates an error for a lost optimistic-concurrency race
func NewConcurrentModificationError(resource, id string) *OrderError {
	return &OrderError{
		Type:    ErrorTypeConflict,
		Code:    ErrCodeConcurrentModification,
		Message: fmt.Sprintf("%s %s was modified concurrently", resource, id),
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string, details map[string]interface{}) *OrderError {
	return &OrderError{
		Type:    ErrorTypeValidation,
		Code:    ErrCodeInvalidInput,
		Message: message,
		Details: details,
	}
}

// NewForbiddenError creates a new authorization error
func NewForbiddenError(message string) *OrderError {
	return &OrderError{
		Type:    ErrorTypeForbidden,
		Code:    ErrCodeForbidden,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *OrderError {
	return &OrderError{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeInternalError,
		Message: message,
		Cause:   cause,
	}
}

// IsErrorCode reports whether err is an OrderError carrying the given code.
func IsErrorCode(err error, code string) bool {
	var oe *OrderError
	if errors.As(err, &oe) {
		return oe.Code == code
	}
	return false
}
