package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nao1215/exitswitch/internal/config"
)

// flagOverlay copies one changed flag onto the configuration.
type flagOverlay struct {
	name  string
	apply func(flags *pflag.FlagSet, cfg *config.Config) error
}

func boolFlag(name string, field func(*config.Config) *bool) flagOverlay {
	return flagOverlay{name, func(f *pflag.FlagSet, c *config.Config) error {
		v, err := f.GetBool(name)
		*field(c) = v
		return err
	}}
}

func stringFlag(name string, field func(*config.Config) *string) flagOverlay {
	return flagOverlay{name, func(f *pflag.FlagSet, c *config.Config) error {
		v, err := f.GetString(name)
		*field(c) = v
		return err
	}}
}

func intFlag(name string, field func(*config.Config) *int) flagOverlay {
	return flagOverlay{name, func(f *pflag.FlagSet, c *config.Config) error {
		v, err := f.GetInt(name)
		*field(c) = v
		return err
	}}
}

func durationFlag(name string, field func(*config.Config) *time.Duration) flagOverlay {
	return flagOverlay{name, func(f *pflag.FlagSet, c *config.Config) error {
		v, err := f.GetDuration(name)
		*field(c) = v
		return err
	}}
}

// flagOverlays lists every flag that maps onto a configuration field. A
// command only declares the flags that make sense for it; unknown names are
// skipped.
var flagOverlays = []flagOverlay{
	boolFlag("verbose", func(c *config.Config) *bool { return &c.Verbose }),
	stringFlag("listen", func(c *config.Config) *string { return &c.ListenAddress }),
	intFlag("expected-workers", func(c *config.Config) *int { return &c.ExpectedWorkers }),
	boolFlag("log-json", func(c *config.Config) *bool { return &c.LogJSON }),
	boolFlag("embedded-tor", func(c *config.Config) *bool { return &c.Free.Embedded }),
	durationFlag("tor-timeout", func(c *config.Config) *time.Duration { return &c.Free.StartupTimeout }),
	stringFlag("store", func(c *config.Config) *string { return &c.Store.Kind }),
	stringFlag("state-dir", func(c *config.Config) *string { return &c.Store.Dir }),
	stringFlag("provider", func(c *config.Config) *string { return &c.Paid.Provider }),
	stringFlag("egress-endpoint", func(c *config.Config) *string { return &c.Egress.Endpoint }),
	durationFlag("egress-timeout", func(c *config.Config) *time.Duration { return &c.Egress.Timeout }),
	boolFlag("json", func(c *config.Config) *bool { return &c.JSONReport }),
	boolFlag("markdown", func(c *config.Config) *bool { return &c.MarkdownReport }),
}

// loadConfig builds the configuration of cmd. Later sources win:
// defaults, YAML file, .env file and environment, flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	if found := config.FindConfigFile(configPath); found != "" {
		if err := cfg.LoadConfigFile(found); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", found, err)
		}
	} else if configPath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, configPath)
	}

	envFile, err := flags.GetString("env-file")
	if err != nil {
		return nil, err
	}
	if err := cfg.LoadEnv(envFile); err != nil {
		return nil, err
	}

	for _, o := range flagOverlays {
		if flags.Lookup(o.name) == nil || !flags.Changed(o.name) {
			continue
		}
		if err := o.apply(flags, cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// addReportFlags declares the output flags shared by rotate and test.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false, "Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false, "Output Markdown (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "", "Write the report to the given file path; a text summary still goes to stdout")
}

// addTierFlags declares the flags that reach the tiers.
func addTierFlags(cmd *cobra.Command) {
	cmd.Flags().String("provider", "", "Paid provider (brightdata, oxylabs, smartproxy, iproyal, floppydata)")
	cmd.Flags().Bool("embedded-tor", false, "Start a private Tor daemon for the free tier")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout, "Timeout for embedded Tor startup")
	cmd.Flags().String("egress-endpoint", "", "IP echo endpoint used to observe the exit address")
	cmd.Flags().Duration("egress-timeout", time.Duration(0), "Timeout of one exit address lookup")
	cmd.Flags().String("store", "", "Cooldown store: memory, sqlite or redis")
	cmd.Flags().String("state-dir", "", "Directory of the SQLite cooldown store")
}
