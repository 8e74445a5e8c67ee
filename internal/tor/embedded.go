package tor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nao1215/exitswitch/internal/model"
	"github.com/nao1215/tornago"
)

// ErrEmbeddedNotRunning is returned by accessors that need a started daemon.
var ErrEmbeddedNotRunning = errors.New("embedded Tor daemon is not running")

// cookieFileName is the file Tor writes when CookieAuthentication is on.
const cookieFileName = "control_auth_cookie"

// EmbeddedTor runs a private Tor daemon through tornago. It is used when no
// external tor-proxy service is configured for the free tier.
//
// Bootstrapping takes one to three minutes on a cold start because the
// daemon has to fetch directory information and build its first circuits.
type EmbeddedTor struct {
	process        *tornago.TorProcess
	socksAddr      string
	controlAddr    string
	dataDir        string
	startupTimeout time.Duration
	logger         *slog.Logger
}

// EmbeddedTorOption configures an EmbeddedTor instance.
type EmbeddedTorOption func(*EmbeddedTor)

// WithStartupTimeout sets the maximum time to wait for Tor to bootstrap.
func WithStartupTimeout(timeout time.Duration) EmbeddedTorOption {
	return func(e *EmbeddedTor) {
		e.startupTimeout = timeout
	}
}

// WithEmbeddedLogger sets the logger used for lifecycle messages.
func WithEmbeddedLogger(logger *slog.Logger) EmbeddedTorOption {
	return func(e *EmbeddedTor) {
		e.logger = logger
	}
}

// NewEmbeddedTor creates a new embedded Tor manager. Call Start to launch it.
func NewEmbeddedTor(opts ...EmbeddedTorOption) *EmbeddedTor {
	e := &EmbeddedTor{
		startupTimeout: 3 * time.Minute,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Start launches the daemon on OS-assigned ports and blocks until it has
// bootstrapped or the startup timeout elapses.
func (e *EmbeddedTor) Start(ctx context.Context) error {
	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(e.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	e.logger.Info("starting embedded Tor daemon", "startup_timeout", e.startupTimeout)

	process, err := tornago.StartTorDaemon(launchCfg)
	if err != nil {
		return fmt.Errorf("failed to start embedded Tor daemon: %w", err)
	}

	select {
	case <-ctx.Done():
		_ = process.Stop() //nolint:errcheck // Best effort cleanup
		return ctx.Err()
	default:
	}

	e.process = process
	e.socksAddr = process.SocksAddr()
	e.controlAddr = process.ControlAddr()
	e.dataDir = process.DataDir()

	e.logger.Info("embedded Tor daemon ready", "socks", e.socksAddr, "control", e.controlAddr)
	return nil
}

// Stop shuts the daemon down. It is safe to call more than once.
func (e *EmbeddedTor) Stop() error {
	if e.process == nil {
		return nil
	}
	err := e.process.Stop()
	e.process = nil
	return err
}

// IsRunning reports whether the daemon has been started and not stopped.
func (e *EmbeddedTor) IsRunning() bool {
	return e.process != nil
}

// SocksAddr returns the SOCKS5 listener, or "" before Start.
func (e *EmbeddedTor) SocksAddr() string {
	return e.socksAddr
}

// ControlAddr returns the control listener, or "" before Start.
func (e *EmbeddedTor) ControlAddr() string {
	return e.controlAddr
}

// CookiePath returns the control auth cookie written by the daemon.
func (e *EmbeddedTor) CookiePath() string {
	if e.dataDir == "" {
		return ""
	}
	return filepath.Join(e.dataDir, cookieFileName)
}

// Descriptor describes the running daemon as the free tier's proxy.
func (e *EmbeddedTor) Descriptor() (model.ProxyDescriptor, error) {
	if !e.IsRunning() {
		return model.ProxyDescriptor{}, ErrEmbeddedNotRunning
	}

	host, socksPort, err := splitPort(e.socksAddr)
	if err != nil {
		return model.ProxyDescriptor{}, fmt.Errorf("embedded SOCKS address: %w", err)
	}
	_, controlPort, err := splitPort(e.controlAddr)
	if err != nil {
		return model.ProxyDescriptor{}, fmt.Errorf("embedded control address: %w", err)
	}

	return model.ProxyDescriptor{
		Tier:          model.TierFree,
		Provider:      "tor",
		Host:          host,
		Port:          socksPort,
		ControlPort:   controlPort,
		Protocol:      model.ProtocolSOCKS5,
		CredentialRef: "file:" + e.CookiePath(),
	}, nil
}

// ControlClient returns a cookie-authenticated client for the daemon.
func (e *EmbeddedTor) ControlClient(opts ...ControlOption) (*ControlClient, error) {
	if !e.IsRunning() {
		return nil, ErrEmbeddedNotRunning
	}
	return NewControlClient(e.controlAddr, ControlAuthFromCookie(e.CookiePath()), opts...)
}

// splitPort splits "host:port" and normalizes an empty or wildcard host to
// the loopback address.
func splitPort(address string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return host, port, nil
}
