package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	applog "github.com/nao1215/exitswitch/internal/log"
	"github.com/nao1215/exitswitch/internal/model"
	"github.com/nao1215/exitswitch/internal/report"
)

// errProxyNotWorking makes `exitswitch test` exit non-zero.
var errProxyNotWorking = errors.New("proxy is not working: exit address unknown or equal to the direct address")

// NewTestCmd creates the test command.
func NewTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Check that a tier's traffic leaves through its proxy",
		Long: `Test looks up the host's own address and the tier's exit address in
parallel and reports whether they differ.

Exit status is non-zero when either lookup fails or both addresses are equal.

Examples:
  # Test the paid residential tier
  exitswitch test

  # Test Tor and print Markdown
  exitswitch test --free --markdown`,
		Args: cobra.NoArgs,
		RunE: runTestCmd,
	}

	cmd.Flags().BoolP("free", "f", false, "Test the free Tor tier instead of the paid residential tier")
	addTierFlags(cmd)
	addReportFlags(cmd)

	return cmd
}

func runTestCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	free, err := cmd.Flags().GetBool("free")
	if err != nil {
		return err
	}

	logger := applog.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	result := a.orchestrator.Test(ctx, model.TierFromIsFree(free))
	if err := writeReport(cmd, cfg, func(w report.Writer) error {
		_, err := w.WriteTest(result)
		return err
	}); err != nil {
		return err
	}

	if !result.ProxyWorking {
		if result.Err != nil {
			return errors.Join(errProxyNotWorking, result.Err)
		}
		return errProxyNotWorking
	}
	return nil
}
