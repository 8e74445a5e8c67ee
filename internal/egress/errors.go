package egress

import (
	"errors"
	"fmt"
)

var (
	// ErrVerificationTimeout is returned when the echo endpoint does not
	// answer within the verifier's timeout.
	ErrVerificationTimeout = errors.New("egress verification timed out")

	// ErrRequestFailed is returned when the request could not be completed
	// for a reason other than a timeout.
	ErrRequestFailed = errors.New("egress request failed")

	// ErrUnexpectedStatus is returned for non-2xx responses.
	ErrUnexpectedStatus = errors.New("unexpected status from egress endpoint")

	// ErrUnparsableBody is returned when no IP address could be read from
	// the response body.
	ErrUnparsableBody = errors.New("egress response did not contain an IP address")
)

// VerificationError describes a failed egress lookup.
type VerificationError struct {
	// Endpoint is the URL that was queried.
	Endpoint string

	// StatusCode is the HTTP status, or 0 if no response arrived.
	StatusCode int

	// Err is one of the package sentinel errors, possibly wrapping the cause.
	Err error
}

// Error implements error.
func (e *VerificationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("egress check against %s failed (HTTP %d): %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("egress check against %s failed: %v", e.Endpoint, e.Err)
}

// Unwrap returns the underlying error.
func (e *VerificationError) Unwrap() error {
	return e.Err
}
