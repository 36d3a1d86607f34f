// Package apperrors defines the error classes shared by the order engine layers.
// Handlers map each class to an HTTP status; only TransientError is retried.
package apperrors

import (
	"errors"
	"fmt"
)

// ValidationError is returned before any side effect when input is malformed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NotFoundError covers unknown ids and records hidden from the caller.
// It never says whether the record exists.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// ConflictError reports insufficient stock for a product.
type ConflictError struct {
	ProductID string
	Available int
	Requested int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s (requested: %d, available: %d)", e.ProductID, e.Requested, e.Available)
}

// DuplicateError reports a unique field already in use, such as a username.
type DuplicateError struct {
	Resource string
	Field    string
	Value    string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s '%s' already taken", e.Field, e.Value)
}

// TransientError wraps store timeouts and lock failures that may succeed on retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: temporarily unavailable: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Validation builds a ValidationError.
func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NotFound builds a NotFoundError.
func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// InsufficientStock builds a ConflictError.
func InsufficientStock(productID string, available, requested int) error {
	return &ConflictError{ProductID: productID, Available: available, Requested: requested}
}

// Duplicate builds a DuplicateError.
func Duplicate(resource, field, value string) error {
	return &DuplicateError{Resource: resource, Field: field, Value: value}
}

// Transient builds a TransientError.
func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func IsDuplicate(err error) bool {
	var target *DuplicateError
	return errors.As(err, &target)
}

// IsRetryable reports whether err may be retried automatically.
func IsRetryable(err error) bool {
	var target *TransientError
	return errors.As(err, &target)
}
