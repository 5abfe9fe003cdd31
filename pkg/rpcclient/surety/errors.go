package surety

import (
	"errors"
	"fmt"
)

// RejectedError is returned when the contract refuses the call (the
// invocation or the transaction ends in FAULT state). Reason is the
// contract-supplied message (usually the exception text).
type RejectedError struct {
	Method string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("rejected by contract: %s", e.Reason)
	}
	return fmt.Sprintf("%s rejected by contract: %s", e.Method, e.Reason)
}

// Unwrap returns the underlying error if any.
func (e *RejectedError) Unwrap() error {
	return e.Err
}

// RejectionReason returns the contract-supplied reason if err is (or wraps) a
// RejectedError.
func RejectionReason(err error) (string, bool) {
	var re *RejectedError
	if errors.As(err, &re) {
		return re.Reason, true
	}
	return "", false
}
