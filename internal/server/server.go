package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/nao1215/exitswitch/internal/fetch"
	"github.com/nao1215/exitswitch/internal/model"
	"github.com/nao1215/exitswitch/internal/rotation"
)

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 15 * time.Second

// Rotator runs rotations and tests. *rotation.Orchestrator satisfies it.
type Rotator interface {
	Rotate(ctx context.Context, tier model.Tier, opts ...rotation.RotateOption) (*rotation.Result, error)
	Test(ctx context.Context, tier model.Tier) *rotation.TestResult
	Provider(tier model.Tier) string
	Remaining(ctx context.Context, tier model.Tier) (time.Duration, error)
	CurrentSession(ctx context.Context, tier model.Tier) string
}

// Fetcher fetches pages through a tier. *fetch.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, req fetch.Request) (*fetch.Response, error)
}

// DescriptorSource exposes tier descriptors. *dialer.Factory satisfies it.
type DescriptorSource interface {
	Descriptor(tier model.Tier) (model.ProxyDescriptor, bool)
}

// CircuitReporter lists Tor circuits. *tor.ControlClient satisfies it.
type CircuitReporter interface {
	CircuitStatus(ctx context.Context) ([]string, error)
}

// Server is the HTTP API.
type Server struct {
	echo            *echo.Echo
	rotator         Rotator
	fetcher         Fetcher
	descriptors     DescriptorSource
	circuits        CircuitReporter
	apiToken        string
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithFetcher enables GET /fetch.
func WithFetcher(f Fetcher) Option {
	return func(s *Server) {
		s.fetcher = f
	}
}

// WithDescriptors adds proxy addresses to /proxy/status and /tor/test.
func WithDescriptors(d DescriptorSource) Option {
	return func(s *Server) {
		s.descriptors = d
	}
}

// WithCircuits enables /proxy/status?circuits=true.
func WithCircuits(c CircuitReporter) Option {
	return func(s *Server) {
		s.circuits = c
	}
}

// WithAPIToken requires token as a bearer token on every route but /health.
func WithAPIToken(token string) Option {
	return func(s *Server) {
		s.apiToken = token
	}
}

// WithShutdownTimeout overrides DefaultShutdownTimeout.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a Server with all routes registered.
func New(rotator Rotator, opts ...Option) *Server {
	s := &Server{
		rotator:         rotator,
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleHTTPError

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(requestLogger(s.logger))

	e.GET("/health", s.health)

	api := e.Group("")
	if s.apiToken != "" {
		api.Use(bearerAuth(s.apiToken))
	}

	proxy := api.Group("/proxy")
	proxy.POST("/new-identity", s.newIdentity)
	proxy.GET("/test", s.testProxy)
	proxy.GET("/status", s.status)

	legacy := api.Group("/tor")
	legacy.GET("/test", s.legacyTest)
	legacy.POST("/new-identity", s.legacyNewIdentity)

	if s.fetcher != nil {
		api.GET("/fetch", s.fetch)
	}

	s.echo = e
	return s
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(addr)
	}()
	s.logger.Info("server listening", "address", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
