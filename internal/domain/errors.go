package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across repositories and services.
// Call sites classify conditional-update misses into one of these
// (or an ArgumentError) after a secondary lookup.
var (
	// ErrNotFound indicates the entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotImplemented indicates an unsupported variant or format.
	ErrNotImplemented = errors.New("not implemented")

	// ErrServiceUnavailable indicates a transiently unavailable dependency,
	// such as the sequence counter or the store.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrDuplicateTransactionNumber indicates a transaction start hit the
	// uniqueness constraint on transaction_number. API layers may map this
	// to an idempotent "already processed" response.
	ErrDuplicateTransactionNumber = errors.New("transaction number already exists")
)

// ArgumentError indicates an invalid argument or an invalid state transition,
// such as confirming an expired transaction or authorizing beyond the
// available balance.
type ArgumentError struct {
	Argument string
	Message  string
}

// NewArgumentError creates an ArgumentError for the named argument.
func NewArgumentError(argument, message string) *ArgumentError {
	return &ArgumentError{Argument: argument, Message: message}
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Argument, e.Message)
}

// ArgumentNullError indicates a required identifier was missing.
type ArgumentNullError struct {
	Argument string
}

// NewArgumentNullError creates an ArgumentNullError for the named argument.
func NewArgumentNullError(argument string) *ArgumentNullError {
	return &ArgumentNullError{Argument: argument}
}

func (e *ArgumentNullError) Error() string {
	return fmt.Sprintf("argument %q is required", e.Argument)
}

// IsArgument reports whether err is an ArgumentError or ArgumentNullError.
func IsArgument(err error) bool {
	var argErr *ArgumentError
	if errors.As(err, &argErr) {
		return true
	}
	var nullErr *ArgumentNullError
	return errors.As(err, &nullErr)
}
