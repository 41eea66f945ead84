package domain

import (
	"errors"
	"fmt"
)

// Failure kinds returned by the ledger. Callers match them with errors.Is;
// messages carry the entity and reason.
var (
	// ErrNotFound - entity missing or not owned by the caller
	ErrNotFound = errors.New("not found")
	// ErrConflict - entity already exists (duplicate holding)
	ErrConflict = errors.New("conflict")
	// ErrNotAllowed - policy violation (e.g. deleting an open position)
	ErrNotAllowed = errors.New("not allowed")
	// ErrValidation - malformed input or insufficient shares
	ErrValidation = errors.New("validation error")
	// ErrLocked - a background sync for the same key is already running
	ErrLocked = errors.New("locked")
	// ErrRateNotFound - no exchange rate covers the requested date
	ErrRateNotFound = errors.New("exchange rate not found")
)

func kindf(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// NotFoundf returns an ErrNotFound with a formatted message.
func NotFoundf(format string, args ...interface{}) error {
	return kindf(ErrNotFound, format, args...)
}

// Conflictf returns an ErrConflict with a formatted message.
func Conflictf(format string, args ...interface{}) error {
	return kindf(ErrConflict, format, args...)
}

// NotAllowedf returns an ErrNotAllowed with a formatted message.
func NotAllowedf(format string, args ...interface{}) error {
	return kindf(ErrNotAllowed, format, args...)
}

// Validationf returns an ErrValidation with a formatted message.
func Validationf(format string, args ...interface{}) error {
	return kindf(ErrValidation, format, args...)
}

// Lockedf returns an ErrLocked with a formatted message.
func Lockedf(format string, args ...interface{}) error {
	return kindf(ErrLocked, format, args...)
}

// RateNotFoundf returns an ErrRateNotFound with a formatted message.
func RateNotFoundf(format string, args ...interface{}) error {
	return kindf(ErrRateNotFound, format, args...)
}
