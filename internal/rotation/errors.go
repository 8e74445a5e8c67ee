package rotation

import (
	"errors"
	"fmt"

	"github.com/nao1215/exitswitch/internal/session"
	"github.com/nao1215/exitswitch/internal/tor"
)

var (
	// ErrAuthenticationFailed reports a misconfigured secret or credential.
	// Retrying will not help.
	ErrAuthenticationFailed = errors.New("rotation authentication failed")

	// ErrRotationIO reports that the rotation mechanism could not be reached
	// or rejected the request.
	ErrRotationIO = errors.New("rotation mechanism unavailable")

	// ErrVerificationInconclusive is set on Result.VerificationErr when the
	// new egress address could not be observed.
	ErrVerificationInconclusive = errors.New("egress verification inconclusive")

	// ErrTierNotConfigured is returned when the tier has no rotation
	// mechanism wired.
	ErrTierNotConfigured = errors.New("tier not configured for rotation")
)

// classify maps a rotation mechanism error onto the package sentinels while
// keeping the cause in the chain.
func classify(err error) error {
	switch {
	case errors.Is(err, tor.ErrAuthenticationFailed),
		errors.Is(err, session.ErrMissingCredentials),
		errors.Is(err, session.ErrUnknownProvider):
		return fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	default:
		return fmt.Errorf("%w: %w", ErrRotationIO, err)
	}
}
