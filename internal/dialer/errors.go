package dialer

import "errors"

var (
	// ErrTierNotConfigured is returned when no descriptor exists for a tier.
	ErrTierNotConfigured = errors.New("proxy tier not configured")

	// ErrUnsupportedProtocol is returned for descriptors with an unknown protocol.
	ErrUnsupportedProtocol = errors.New("unsupported proxy protocol")

	// ErrAmbientConfigured is returned when Ambient.Configure is called twice.
	ErrAmbientConfigured = errors.New("ambient proxy configuration already set")

	// ErrAmbientNotConfigured is returned when Ambient is used before Configure.
	ErrAmbientNotConfigured = errors.New("ambient proxy configuration not set")

	// ErrDefaultInstalled is returned when InstallDefault is called twice.
	ErrDefaultInstalled = errors.New("ambient transport already installed as http.DefaultTransport")
)
