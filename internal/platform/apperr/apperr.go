// Package apperr defines the error taxonomy shared by the clinic services,
// the HTTP envelope and the remote client.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Machine-readable codes carried in the response envelope.
const (
	CodeValidation        = "validation"
	CodeInvalidTransition = "invalid_transition"
	CodeInsufficientStock = "insufficient_stock"
	CodeNotFound          = "not_found"
	CodeRemote            = "remote"
	CodeLedgerDrift       = "ledger_drift"
	CodeInternal          = "internal"
)

// Coded is implemented by every error in this package.
type Coded interface {
	error
	Code() string
}

// ValidationError is a rule violation detectable before any store call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Code() string  { return CodeValidation }

// Validation builds a ValidationError for field.
func Validation(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InvalidTransitionError is returned when a state machine rejects a change.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}
func (e *InvalidTransitionError) Code() string { return CodeInvalidTransition }

// InsufficientStockError is returned when a removal exceeds the on-hand count.
type InsufficientStockError struct {
	ItemID    string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: requested %d, available %d", e.Requested, e.Available)
}
func (e *InsufficientStockError) Code() string { return CodeInsufficientStock }

// NotFoundError means the target of an operation does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}
func (e *NotFoundError) Code() string { return CodeNotFound }

// NotFound builds a NotFoundError.
func NotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// RemoteError is a transport or server failure seen by a client. Status is
// zero when no response arrived (timeout, connection refused).
type RemoteError struct {
	Status  int
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Status == 0 {
		return "remote error: " + e.Message
	}
	return fmt.Sprintf("remote error (%d): %s", e.Status, e.Message)
}
func (e *RemoteError) Code() string  { return CodeRemote }
func (e *RemoteError) Unwrap() error { return e.Err }

// DriftError reports a cached aggregate that disagrees with the history it
// is derived from. It is never corrected automatically.
type DriftError struct {
	Entity     string
	ID         string
	Field      string
	Cached     string
	Recomputed string
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("%s %s drifted: %s cached %s, recomputed %s", e.Entity, e.ID, e.Field, e.Cached, e.Recomputed)
}
func (e *DriftError) Code() string { return CodeLedgerDrift }

// CodeOf returns the envelope code for err.
func CodeOf(err error) string {
	var coded Coded
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return CodeInternal
}

// StatusCode maps err to an HTTP status.
func StatusCode(err error) int {
	switch CodeOf(err) {
	case CodeValidation:
		return http.StatusUnprocessableEntity
	case CodeInvalidTransition, CodeInsufficientStock:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRemote:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// FromCode rebuilds an error received in an envelope. The result is always a
// *RemoteError carrying the server message; known codes additionally wrap
// the matching typed error so errors.As still classifies it.
func FromCode(code, message string, status int) *RemoteError {
	remote := &RemoteError{Status: status, Message: message}
	switch code {
	case CodeValidation:
		remote.Err = &ValidationError{Message: message}
	case CodeInvalidTransition:
		remote.Err = &InvalidTransitionError{}
	case CodeInsufficientStock:
		remote.Err = &InsufficientStockError{}
	case CodeNotFound:
		remote.Err = &NotFoundError{Resource: message}
	case CodeLedgerDrift:
		remote.Err = &DriftError{}
	}
	return remote
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsInvalidTransition(err error) bool {
	var e *InvalidTransitionError
	return errors.As(err, &e)
}

func IsInsufficientStock(err error) bool {
	var e *InsufficientStockError
	return errors.As(err, &e)
}

func IsRemote(err error) bool {
	var e *RemoteError
	return errors.As(err, &e)
}
