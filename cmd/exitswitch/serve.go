package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/exitswitch/internal/config"
	"github.com/nao1215/exitswitch/internal/dialer"
	"github.com/nao1215/exitswitch/internal/fetch"
	applog "github.com/nao1215/exitswitch/internal/log"
	"github.com/nao1215/exitswitch/internal/model"
	"github.com/nao1215/exitswitch/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the identity rotation HTTP API",
		Long: `Serve starts the HTTP API:

  POST /proxy/new-identity?isFree=   rotate the tier's exit identity
  GET  /proxy/test?isFree=           compare direct and proxied exit address
  GET  /proxy/status                 provider, cooldown and session per tier
  GET  /fetch?url=&isFree=           fetch a page through the tier
  GET  /health                       liveness

Serve runs a single process. When the deployment runs several copies
behind one address, give them a shared store: --store sqlite (same host)
or --store redis (several hosts). The memory store only limits rotations
inside one process; --expected-workers makes serve warn about that
mismatch.

Examples:
  # Serve on the default address with a local Tor daemon
  exitswitch serve

  # Route every outbound request of this process through the paid tier
  exitswitch serve --ambient-tier paid

  # One of four processes started by a supervisor, sharing a SQLite cooldown
  exitswitch serve --expected-workers 4 --store sqlite`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("listen", "l", config.DefaultListenAddress, "HTTP listen address")
	cmd.Flags().Int("expected-workers", config.DefaultExpectedWorkers,
		"Number of serve processes the deployment runs against this cooldown store (warning only; serve never forks)")
	cmd.Flags().Bool("log-json", false, "Write logs as JSON lines")
	cmd.Flags().String("ambient-tier", "",
		"Install a process-wide proxy for the given tier (free or paid) into http.DefaultTransport")
	cmd.Flags().Bool("no-fetch", false, "Disable the /fetch endpoint")
	addTierFlags(cmd)

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := applog.NewServerLogger(os.Stderr, cfg.Verbose, cfg.LogJSON)

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.CrossProcessUnsafe() {
		logger.Warn("cooldown is not enforced across processes with the memory store; use sqlite or redis",
			"expectedWorkers", cfg.ExpectedWorkers)
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	a.checkFreeTier(ctx)

	ambientTier, err := cmd.Flags().GetString("ambient-tier")
	if err != nil {
		return err
	}
	if err := installAmbient(dialer.DefaultAmbient, a.factory, ambientTier); err != nil {
		return err
	}

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithDescriptors(a.factory),
		server.WithCircuits(a.control),
		server.WithAPIToken(cfg.APIToken),
	}
	noFetch, err := cmd.Flags().GetBool("no-fetch")
	if err != nil {
		return err
	}
	if !noFetch {
		opts = append(opts, server.WithFetcher(fetch.NewFetcher(a.factory,
			fetch.WithRotator(a.orchestrator),
			fetch.WithLogger(logger),
		)))
	}

	return server.New(a.orchestrator, opts...).Run(ctx, cfg.ListenAddress)
}

// installAmbient routes http.DefaultTransport through tier. An empty tier
// leaves the default transport alone.
func installAmbient(ambient *dialer.Ambient, source dialer.TransportSource, tier string) error {
	if tier == "" {
		return nil
	}
	parsed, err := model.ParseTier(tier)
	if err != nil {
		return fmt.Errorf("invalid --ambient-tier: %w", err)
	}
	if err := ambient.Configure(source, parsed); err != nil {
		return err
	}
	return ambient.InstallDefault()
}

// commandContext returns cmd's context, or Background when run outside
// Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
