package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() so callers can use
// errors.Is() while users still get a readable message.
var (
	// ErrInvalidPort is returned when a Tor port is outside 1-65535.
	ErrInvalidPort = errors.New("invalid port: must be between 1 and 65535")

	// ErrMissingTorHost is returned when no Tor host is set and the embedded
	// daemon is disabled.
	ErrMissingTorHost = errors.New("tor host not configured: set TOR_PROXY_HOST or use --embedded-tor")

	// ErrInvalidCooldown is returned for negative cooldowns.
	ErrInvalidCooldown = errors.New("invalid cooldown: must be non-negative")

	// ErrInvalidSettleDelay is returned for negative settle delays.
	ErrInvalidSettleDelay = errors.New("invalid settle delay: must be non-negative")

	// ErrInvalidTimeout is returned when a timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrMissingEgressEndpoint is returned when no IP-echo endpoint is set.
	ErrMissingEgressEndpoint = errors.New("egress endpoint not configured")

	// ErrUnknownProvider is returned for unsupported paid providers.
	ErrUnknownProvider = errors.New("unknown proxy provider: valid options are brightdata, oxylabs, smartproxy, iproyal, floppydata")

	// ErrInvalidProviderGateway is returned when the selected provider has no
	// usable host and port.
	ErrInvalidProviderGateway = errors.New("invalid provider gateway: host and port are required")

	// ErrInvalidProtocol is returned for protocols other than http and socks5.
	ErrInvalidProtocol = errors.New("invalid proxy protocol: must be http or socks5")

	// ErrInvalidStore is returned for unknown cooldown store kinds.
	ErrInvalidStore = errors.New("invalid cooldown store: valid options are memory, sqlite, redis")

	// ErrMissingStateDir is returned when the sqlite store has no directory.
	ErrMissingStateDir = errors.New("sqlite cooldown store requires a state directory")

	// ErrMissingRedisAddr is returned when the redis store has no address.
	ErrMissingRedisAddr = errors.New("redis cooldown store requires an address")

	// ErrInvalidWorkers is returned when the expected worker count is below one.
	ErrInvalidWorkers = errors.New("invalid expected worker count: must be at least 1")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidEnv is returned when an environment variable cannot be parsed.
	ErrInvalidEnv = errors.New("invalid environment variable")
)
