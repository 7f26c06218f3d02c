package store

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// ErrCodeStorageFault indicates the medium is unavailable or corrupt
	// (disk full, locked, I/O error, closed handle).
	ErrCodeStorageFault ErrorCode = "STORAGE_FAULT"

	// ErrCodeNotFound indicates an update referenced an absent id.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeInvalidTransition indicates an attempt to move status backwards.
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"

	// ErrCodeInvalidRecord indicates a record that cannot be stored as given
	// (empty id, unknown status, zero timestamp, payload that is not JSON).
	ErrCodeInvalidRecord ErrorCode = "INVALID_RECORD"
)

// Error is returned by every Store operation that fails.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op names the failed operation ("put", "update status", ...).
	Op string

	// ID is the report id involved, if any.
	ID string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Op)
	if e.ID != "" {
		msg += fmt.Sprintf(" (id=%s)", e.ID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func fault(op, id string, err error) *Error {
	return &Error{Code: ErrCodeStorageFault, Op: op, ID: id, Err: err}
}

func notFound(op, id string) *Error {
	return &Error{Code: ErrCodeNotFound, Op: op, ID: id}
}

func invalid(op, id string, err error) *Error {
	return &Error{Code: ErrCodeInvalidRecord, Op: op, ID: id, Err: err}
}

func hasCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsStorageFault returns true if the error is a medium failure.
// Uses errors.As to handle wrapped errors.
func IsStorageFault(err error) bool {
	return hasCode(err, ErrCodeStorageFault)
}

// IsNotFound returns true if the error reports an absent id.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsInvalidTransition returns true if the error reports a backwards status move.
func IsInvalidTransition(err error) bool {
	return hasCode(err, ErrCodeInvalidTransition)
}

// IsInvalidRecord returns true if the error reports a malformed record.
func IsInvalidRecord(err error) bool {
	return hasCode(err, ErrCodeInvalidRecord)
}
