package service

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means the caller presented no valid credential
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the caller lacks the capability the operation needs
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidRequest means the request is malformed or incomplete
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotFound means the addressed order does not exist
	ErrNotFound = errors.New("order not found")
	// ErrDuplicateRequest means a checkout with the same idempotency key is still running
	ErrDuplicateRequest = errors.New("duplicate request in progress")
	// ErrPersistence wraps store failures
	ErrPersistence = errors.New("persistence failure")
)

// InsufficientStockError reports a cart line the inventory cannot cover
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	label := e.ProductID
	if e.ProductName != "" {
		label = fmt.Sprintf("%s (%s)", e.ProductName, e.ProductID)
	}
	return fmt.Sprintf("Not enough stock for %s. Available: %d", label, e.Available)
}

func invalidRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

func persistenceFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
