package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/exitswitch/internal/config"
)

// NewRootCmd creates the root command for exitswitch.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exitswitch",
		Short: "Rotate outbound proxy identities across Tor and residential proxies",
		Long: `exitswitch chooses between two outbound proxy tiers:

  free  a Tor SOCKS5 circuit, rotated with the NEWNYM control signal
  paid  a rotating residential proxy session (BrightData, Oxylabs,
        Smartproxy, IPRoyal or FloppyData), rotated by minting a new
        session token

Every rotation honors a per-tier cooldown and checks the new exit address
against an IP echo service.

Configuration is read from defaults, then the YAML file (.exitswitch), then
the .env file and environment variables, then command-line flags.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .exitswitch in current or home directory)")
	cmd.PersistentFlags().String("env-file", config.DefaultEnvFile,
		"dotenv file to read before the process environment")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewRotateCmd())
	cmd.AddCommand(NewTestCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
