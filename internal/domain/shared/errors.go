package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrUnauthorized        = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrForbidden           = NewDomainError("FORBIDDEN", "Access to this resource is forbidden")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrConflict            = NewDomainError("CONFLICT", "Operation conflicts with the current resource state")
	ErrOverPayment         = NewDomainError("OVERPAYMENT", "Payment exceeds the amount due on this item")
	ErrUnderflow           = NewDomainError("UNDERFLOW", "Operation would produce a negative amount")
)

// IsNotFound reports whether err is the NOT_FOUND domain error
func IsNotFound(err error) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Code == ErrNotFound.Code
}

// IsAlreadyExists reports whether err is the ALREADY_EXISTS domain error
func IsAlreadyExists(err error) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Code == ErrAlreadyExists.Code
}

// IsConcurrencyConflict reports whether err is the optimistic locking conflict
// that the application layer retries automatically.
func IsConcurrencyConflict(err error) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Code == ErrConcurrencyConflict.Code
}
