package model

import "errors"

// Ingestion-time failures. Terminal for the single event; the terminal's
// own retransmission is absorbed by dedup, never requested by us.
var (
	ErrDeviceNotRegistered = errors.New("device not registered")
	ErrMalformedPayload    = errors.New("malformed payload")
	ErrEmployeeNotFound    = errors.New("employee not found")
	ErrClockSkewRejected   = errors.New("timestamp too far in the future")
)

// Validation-action failures. Caller errors, reported per item, no state change.
var (
	ErrRecordNotFound       = errors.New("record not found")
	ErrInvalidTransition    = errors.New("record not pending validation")
	ErrMissingCorrectedType = errors.New("correct action requires a corrected type")
)

// ErrDuplicateKey is returned by stores when an insert loses the dedup race.
var ErrDuplicateKey = errors.New("dedup key already present")
