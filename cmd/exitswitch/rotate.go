package main

import (
	"fmt"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	applog "github.com/nao1215/exitswitch/internal/log"
	"github.com/nao1215/exitswitch/internal/model"
	"github.com/nao1215/exitswitch/internal/report"
	"github.com/nao1215/exitswitch/internal/rotation"
)

// NewRotateCmd creates the rotate command.
func NewRotateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Rotate the exit identity of a tier once",
		Long: `Rotate switches the exit identity of one tier and checks the new exit
address.

The free tier sends SIGNAL NEWNYM to the Tor control port; Tor builds fresh
circuits for new connections. The paid tier mints a new session token, so the
provider maps the next request to a different residential address.

A rotation inside the tier's cooldown is refused. The cooldown only spans
separate invocations with --store sqlite or --store redis.

Exit status is non-zero when the rotation was refused or failed. A rotation
whose new address could not be confirmed still exits zero.

Examples:
  # Rotate the paid session
  exitswitch rotate

  # Request a new Tor circuit and print JSON
  exitswitch rotate --free --json

  # Report whether the exit address actually changed
  exitswitch rotate --free --previous-ip 185.220.101.4`,
		Args: cobra.NoArgs,
		RunE: runRotateCmd,
	}

	cmd.Flags().BoolP("free", "f", false, "Rotate the free Tor tier instead of the paid residential tier")
	cmd.Flags().String("previous-ip", "", "Exit address seen before the rotation, to detect an unchanged exit")
	addTierFlags(cmd)
	addReportFlags(cmd)

	return cmd
}

func runRotateCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	free, err := cmd.Flags().GetBool("free")
	if err != nil {
		return err
	}

	var opts []rotation.RotateOption
	previous, err := cmd.Flags().GetString("previous-ip")
	if err != nil {
		return err
	}
	if previous != "" {
		ip, err := netip.ParseAddr(previous)
		if err != nil {
			return fmt.Errorf("invalid --previous-ip %q: %w", previous, err)
		}
		opts = append(opts, rotation.WithPreviousIP(ip.Unmap()))
	}

	logger := applog.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	result, rotateErr := a.orchestrator.Rotate(ctx, model.TierFromIsFree(free), opts...)
	if err := writeReport(cmd, cfg, func(w report.Writer) error {
		_, err := w.WriteRotation(result, rotateErr)
		return err
	}); err != nil {
		return err
	}
	return rotateErr
}
