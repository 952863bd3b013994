package model

import "fmt"

// TransportError is a network or HTTP failure on a gateway call.
type TransportError struct {
	Op     string
	Status int // 0 when no response was received
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s failed: HTTP %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ValidationRejection is an intent refused before any network call because
// its input is invalid.
type ValidationRejection struct {
	Op     string
	Reason string
}

func (e *ValidationRejection) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// ConflictWarning is an intent refused because unsaved changes are pending.
// It only asks the user to act; nothing was changed.
type ConflictWarning struct {
	Op      string
	Message string
}

func (e *ConflictWarning) Error() string {
	return e.Message
}
