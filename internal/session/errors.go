package session

import "errors"

var (
	// ErrUnknownProvider is returned for a provider name without a
	// username template.
	ErrUnknownProvider = errors.New("unknown proxy provider: valid options are brightdata, oxylabs, smartproxy, iproyal, floppydata")

	// ErrMissingCredentials is returned when the provider's username or
	// password is not configured.
	ErrMissingCredentials = errors.New("proxy credentials not configured")
)
