package ledger

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the reservation ledger.
var (
	ErrInvalidDate             = errors.New("invalid date")
	ErrServiceNotFound         = errors.New("service not found")
	ErrBookingNotFound         = errors.New("booking not found")
	ErrInvalidTransition       = errors.New("invalid status transition")
	ErrInsufficientSeats       = errors.New("insufficient seats")
	ErrPaymentDeclined         = errors.New("payment declined")
	ErrCorruptPersistedState   = errors.New("corrupt persisted state")
	ErrPersistenceWriteFailure = errors.New("persistence write failure")
	ErrAlreadyCancelled        = errors.New("booking already cancelled")
	ErrDuplicateReference      = errors.New("duplicate booking reference")
	ErrServiceExists           = errors.New("service already exists")
	ErrInvalidServiceID        = errors.New("invalid service id")
	ErrInvalidServiceName      = errors.New("invalid service name")
	ErrInvalidRoute            = errors.New("invalid route")
	ErrInvalidSeatCount        = errors.New("invalid seat count")
	ErrInvalidRiders           = errors.New("invalid riders")
	ErrInvalidReference        = errors.New("invalid booking reference")
	ErrInvalidAmountCents      = errors.New("invalid amount cents")
	ErrInvalidBookingStatus    = errors.New("invalid booking status")
	ErrInvalidServiceKind      = errors.New("invalid service kind")
	ErrInvalidUsername         = errors.New("invalid username")
	ErrInvalidRole             = errors.New("invalid role")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrPasswordRehash          = errors.New("password rehash failed")
	ErrInvalidServiceConfig    = errors.New("invalid service config")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
