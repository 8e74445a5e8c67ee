package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/exitswitch/internal/config"
)

//go:embed templates/exitswitch.yaml
var configTemplate embed.FS

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a commented exitswitch configuration file",
		Long: `Init writes a .exitswitch configuration file to the current directory.

The generated file lists every option with its default value: the Tor
SOCKS and control ports, the paid provider gateways, the cooldown of each
tier, the IP echo endpoint and the cooldown store.

Examples:
  # Create .exitswitch in the current directory
  exitswitch init

  # Create the file at a specific path
  exitswitch init -o deploy/exitswitch.yaml

  # Overwrite an existing file
  exitswitch init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/exitswitch.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// The file may end up holding passwords.
	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nKeep secrets out of it where possible:")
	fmt.Fprintln(out, "  TOR_CONTROL_PASSWORD, <PROVIDER>_USERNAME, <PROVIDER>_PASSWORD")
	fmt.Fprintln(out, "  and EXITSWITCH_API_TOKEN are read from the environment or .env")

	return nil
}
