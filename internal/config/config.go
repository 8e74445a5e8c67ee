package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/exitswitch/internal/cooldown"
	"github.com/nao1215/exitswitch/internal/model"
	"github.com/nao1215/exitswitch/internal/session"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "exitswitch"

	// DefaultListenAddress is where `exitswitch serve` listens.
	DefaultListenAddress = "127.0.0.1:8080"

	// DefaultTorHost is the host of the Tor SOCKS and control ports.
	// We use 127.0.0.1 instead of localhost to avoid resolving through IPv6.
	DefaultTorHost = "127.0.0.1"

	// DefaultTorSocksPort is the Tor daemon's standard SOCKS port.
	DefaultTorSocksPort = 9050

	// DefaultTorControlPort is the Tor daemon's standard control port.
	DefaultTorControlPort = 9051

	// DefaultFreeCooldown matches Tor's own NEWNYM rate limit. Signals sent
	// faster than this are accepted but do not produce a new circuit.
	DefaultFreeCooldown = 10 * time.Second

	// DefaultPaidCooldown is zero: a session rotation is a local operation.
	DefaultPaidCooldown = 0

	// DefaultFreeSettleDelay gives Tor time to build the new circuit.
	DefaultFreeSettleDelay = time.Second

	// DefaultPaidSettleDelay is zero: the gateway maps the new token at once.
	DefaultPaidSettleDelay = 0

	// DefaultEgressEndpoint is the IP-echo service used to verify rotations.
	DefaultEgressEndpoint = "https://httpbin.org/ip"

	// DefaultEgressTimeout bounds one egress check. Tor circuits are slow to
	// answer the first request, so this is generous.
	DefaultEgressTimeout = 30 * time.Second

	// DefaultControlTimeout bounds one control port session.
	DefaultControlTimeout = 10 * time.Second

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultProvider is the paid provider used when none is configured.
	DefaultProvider = session.ProviderBrightData

	// DefaultExpectedWorkers is the number of server processes the
	// deployment is expected to run against one cooldown store.
	DefaultExpectedWorkers = 1
)

// Config holds all configuration options for exitswitch.
// It is populated once at startup and passed down by value or pointer;
// nothing reads configuration from globals afterwards.
type Config struct {
	// ListenAddress is the HTTP listen address of the server.
	ListenAddress string `yaml:"listen,omitempty"`

	// APIToken, when set, is required as a bearer token on /proxy and
	// /fetch routes.
	APIToken string `yaml:"apiToken,omitempty"`

	// Verbose enables debug logging.
	Verbose bool `yaml:"verbose,omitempty"`

	// LogJSON switches the server log to JSON lines.
	LogJSON bool `yaml:"logJSON,omitempty"`

	// ExpectedWorkers is how many server processes the deployment runs
	// against the same cooldown (for example behind a process manager or
	// load balancer). exitswitch never forks them itself; the value only
	// triggers a warning when it exceeds one with the memory store.
	ExpectedWorkers int `yaml:"expectedWorkers,omitempty"`

	// Free configures the Tor tier.
	Free FreeConfig `yaml:"free"`

	// Paid configures the residential proxy tier.
	Paid PaidConfig `yaml:"paid"`

	// Egress configures the rotation check.
	Egress EgressConfig `yaml:"egress"`

	// Store selects where cooldown state lives.
	Store StoreConfig `yaml:"store"`

	// ConfigFilePath is the path of the loaded YAML file, if any.
	ConfigFilePath string `yaml:"-"`

	// JSONReport and MarkdownReport select the output format of the rotate
	// and test commands. They are mutually exclusive.
	JSONReport     bool `yaml:"-"`
	MarkdownReport bool `yaml:"-"`
}

// FreeConfig configures the Tor tier.
type FreeConfig struct {
	// Host is the host of the Tor SOCKS and control ports.
	Host string `yaml:"host,omitempty"`

	// SocksPort is the Tor SOCKS5 port.
	SocksPort int `yaml:"socksPort,omitempty"`

	// ControlPort is the Tor control port.
	ControlPort int `yaml:"controlPort,omitempty"`

	// ControlPassword is the plaintext password whose hash is configured as
	// HashedControlPassword in torrc. Empty means cookie or no auth.
	ControlPassword string `yaml:"controlPassword,omitempty"`

	// CookiePath is the control_auth_cookie file used for cookie auth.
	CookiePath string `yaml:"cookiePath,omitempty"`

	// ControlTimeout bounds one control port session.
	ControlTimeout time.Duration `yaml:"controlTimeout,omitempty"`

	// Cooldown is the minimum interval between NEWNYM signals.
	Cooldown time.Duration `yaml:"cooldown,omitempty"`

	// SettleDelay is how long to wait after NEWNYM before verifying.
	SettleDelay time.Duration `yaml:"settleDelay,omitempty"`

	// Embedded starts a private Tor daemon instead of using Host.
	Embedded bool `yaml:"embedded,omitempty"`

	// StartupTimeout bounds the embedded daemon's bootstrap.
	StartupTimeout time.Duration `yaml:"startupTimeout,omitempty"`
}

// PaidConfig configures the residential proxy tier.
type PaidConfig struct {
	// Provider selects the account in Providers.
	Provider string `yaml:"provider,omitempty"`

	// Cooldown is the minimum interval between session rotations.
	Cooldown time.Duration `yaml:"cooldown,omitempty"`

	// SettleDelay is how long to wait after rotating before verifying.
	SettleDelay time.Duration `yaml:"settleDelay,omitempty"`

	// Providers holds the gateway and account of every known provider.
	Providers map[string]ProviderConfig `yaml:"providers,omitempty"`
}

// ProviderConfig is the gateway and account of one paid provider.
type ProviderConfig struct {
	Host     string         `yaml:"host,omitempty"`
	Port     int            `yaml:"port,omitempty"`
	Protocol model.Protocol `yaml:"protocol,omitempty"`

	session.Credentials `yaml:",inline"`
}

// EgressConfig configures the IP-echo check.
type EgressConfig struct {
	Endpoint string        `yaml:"endpoint,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

// StoreConfig selects the cooldown store.
type StoreConfig struct {
	// Kind is memory, sqlite or redis.
	Kind string `yaml:"kind,omitempty"`

	// Dir is the SQLite state directory. Defaults to the XDG data dir.
	Dir string `yaml:"dir,omitempty"`

	RedisAddr     string `yaml:"redisAddr,omitempty"`
	RedisPassword string `yaml:"redisPassword,omitempty"`
	RedisDB       int    `yaml:"redisDB,omitempty"`
	RedisPrefix   string `yaml:"redisPrefix,omitempty"`
}

// defaultProviders are the public gateways of the supported providers.
func defaultProviders() map[string]ProviderConfig {
	return map[string]ProviderConfig{
		session.ProviderBrightData: {Host: "brd.superproxy.io", Port: 33335, Protocol: model.ProtocolHTTP},
		session.ProviderOxylabs:    {Host: "pr.oxylabs.io", Port: 7777, Protocol: model.ProtocolHTTP},
		session.ProviderSmartproxy: {Host: "gate.smartproxy.com", Port: 7000, Protocol: model.ProtocolHTTP},
		session.ProviderIPRoyal:    {Host: "geo.iproyal.com", Port: 12321, Protocol: model.ProtocolHTTP},
		session.ProviderFloppyData: {Host: "geo.floppydata.com", Port: 10080, Protocol: model.ProtocolHTTP,
			Credentials: session.Credentials{Country: "US"}},
	}
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		ListenAddress:   DefaultListenAddress,
		ExpectedWorkers: DefaultExpectedWorkers,
		Free: FreeConfig{
			Host:           DefaultTorHost,
			SocksPort:      DefaultTorSocksPort,
			ControlPort:    DefaultTorControlPort,
			ControlTimeout: DefaultControlTimeout,
			Cooldown:       DefaultFreeCooldown,
			SettleDelay:    DefaultFreeSettleDelay,
			StartupTimeout: DefaultTorStartupTimeout,
		},
		Paid: PaidConfig{
			Provider:    DefaultProvider,
			Cooldown:    DefaultPaidCooldown,
			SettleDelay: DefaultPaidSettleDelay,
			Providers:   defaultProviders(),
		},
		Egress: EgressConfig{
			Endpoint: DefaultEgressEndpoint,
			Timeout:  DefaultEgressTimeout,
		},
		Store: StoreConfig{
			Kind:        cooldown.StoreMemory,
			Dir:         XDGDataDir(),
			RedisPrefix: cooldown.DefaultRedisPrefix,
		},
	}
}

// XDGDataDir returns the XDG data directory for exitswitch.
// On Linux: ~/.local/share/exitswitch
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for exitswitch.
// On Linux: ~/.config/exitswitch
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Provider returns the settings of the selected paid provider.
func (c *Config) Provider() ProviderConfig {
	return c.Paid.Providers[c.Paid.Provider]
}

// FreeDescriptor describes the Tor tier.
func (c *Config) FreeDescriptor() model.ProxyDescriptor {
	credentialRef := ""
	switch {
	case c.Free.ControlPassword != "":
		credentialRef = "env:" + EnvTorControlPassword
	case c.Free.CookiePath != "":
		credentialRef = "file:" + c.Free.CookiePath
	}
	return model.ProxyDescriptor{
		Tier:          model.TierFree,
		Provider:      "tor",
		Host:          c.Free.Host,
		Port:          c.Free.SocksPort,
		ControlPort:   c.Free.ControlPort,
		Protocol:      model.ProtocolSOCKS5,
		CredentialRef: credentialRef,
	}
}

// PaidDescriptor describes the residential tier.
func (c *Config) PaidDescriptor() model.ProxyDescriptor {
	p := c.Provider()
	protocol := p.Protocol
	if protocol == "" {
		protocol = model.ProtocolHTTP
	}
	return model.ProxyDescriptor{
		Tier:          model.TierPaid,
		Provider:      c.Paid.Provider,
		Host:          p.Host,
		Port:          p.Port,
		Protocol:      protocol,
		CredentialRef: "env:" + envName(c.Paid.Provider, "PASSWORD"),
	}
}

// PaidCredentials returns the account of the selected provider.
func (c *Config) PaidCredentials() session.Credentials {
	return c.Provider().Credentials
}

// StoreOptions converts the store section for cooldown.OpenStore.
func (c *Config) StoreOptions() cooldown.StoreOptions {
	return cooldown.StoreOptions{
		Kind:          c.Store.Kind,
		Dir:           c.Store.Dir,
		RedisAddr:     c.Store.RedisAddr,
		RedisPassword: c.Store.RedisPassword,
		RedisDB:       c.Store.RedisDB,
		RedisPrefix:   c.Store.RedisPrefix,
	}
}

// Validate checks if the configuration is valid.
// It returns the first problem found as a sentinel error.
//
// Paid credentials are not required here: a deployment may only use the
// free tier, and a missing account surfaces as an authentication failure
// on the first paid request.
func (c *Config) Validate() error {
	if !validPort(c.Free.SocksPort) || !validPort(c.Free.ControlPort) {
		return ErrInvalidPort
	}
	if c.Free.Host == "" && !c.Free.Embedded {
		return ErrMissingTorHost
	}
	if c.Free.Cooldown < 0 || c.Paid.Cooldown < 0 {
		return ErrInvalidCooldown
	}
	if c.Free.SettleDelay < 0 || c.Paid.SettleDelay < 0 {
		return ErrInvalidSettleDelay
	}
	if c.Free.ControlTimeout <= 0 || c.Egress.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Free.Embedded && c.Free.StartupTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Egress.Endpoint == "" {
		return ErrMissingEgressEndpoint
	}

	if !session.IsKnownProvider(c.Paid.Provider) {
		return ErrUnknownProvider
	}
	p := c.Provider()
	if !validPort(p.Port) || p.Host == "" {
		return ErrInvalidProviderGateway
	}
	if p.Protocol != "" && !p.Protocol.Valid() {
		return ErrInvalidProtocol
	}

	switch c.Store.Kind {
	case cooldown.StoreMemory, "":
	case cooldown.StoreSQLite:
		if c.Store.Dir == "" {
			return ErrMissingStateDir
		}
	case cooldown.StoreRedis:
		if c.Store.RedisAddr == "" {
			return ErrMissingRedisAddr
		}
	default:
		return ErrInvalidStore
	}

	if c.ExpectedWorkers < 1 {
		return ErrInvalidWorkers
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}

// CrossProcessUnsafe reports whether several workers would each enforce
// their own cooldown.
func (c *Config) CrossProcessUnsafe() bool {
	return c.ExpectedWorkers > 1 && (c.Store.Kind == cooldown.StoreMemory || c.Store.Kind == "")
}

func validPort(port int) bool {
	return port > 0 && port <= 65535
}
