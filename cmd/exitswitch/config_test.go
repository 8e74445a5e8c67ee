package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/nao1215/exitswitch/internal/config"
	"github.com/nao1215/exitswitch/internal/dialer"
)

// parsedCommand returns the subcommand name of a fresh root with args parsed.
func parsedCommand(t *testing.T, name string, args ...string) *cobra.Command {
	t.Helper()
	cmd, _, err := NewRootCmd().Find([]string{name})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	return cmd
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestLoadConfigPrecedence is not parallel because it sets process
// environment variables.
func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	configPath := writeFile(t, filepath.Join(dir, "exitswitch.yaml"), "listen: 127.0.0.1:1000\nexpectedWorkers: 2\n")
	envPath := writeFile(t, filepath.Join(dir, "test.env"), "EXITSWITCH_LISTEN=127.0.0.1:2000\n")
	missingEnv := filepath.Join(dir, "missing.env")

	tests := []struct {
		name       string
		processEnv string
		args       []string
		want       string
	}{
		{
			name: "yaml over defaults",
			args: []string{"--config", configPath, "--env-file", missingEnv},
			want: "127.0.0.1:1000",
		},
		{
			name: "env file over yaml",
			args: []string{"--config", configPath, "--env-file", envPath},
			want: "127.0.0.1:2000",
		},
		{
			name:       "process env over env file",
			processEnv: "127.0.0.1:2500",
			args:       []string{"--config", configPath, "--env-file", envPath},
			want:       "127.0.0.1:2500",
		},
		{
			name:       "flag over everything",
			processEnv: "127.0.0.1:2500",
			args:       []string{"--config", configPath, "--env-file", envPath, "--listen", "127.0.0.1:3000"},
			want:       "127.0.0.1:3000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.processEnv != "" {
				t.Setenv(config.EnvListenAddress, tt.processEnv)
			}

			cfg, err := loadConfig(parsedCommand(t, "serve", tt.args...))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.ListenAddress != tt.want {
				t.Errorf("expected listen %q, got %q", tt.want, cfg.ListenAddress)
			}
			if cfg.ExpectedWorkers != 2 {
				t.Errorf("expected expectedWorkers from yaml to survive, got %d", cfg.ExpectedWorkers)
			}
		})
	}
}

func TestLoadConfigUnchangedFlagKeepsFileValue(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	configPath := writeFile(t, filepath.Join(dir, "exitswitch.yaml"), "store:\n  kind: sqlite\n  dir: "+dir+"\n")

	cfg, err := loadConfig(parsedCommand(t, "rotate",
		"--config", configPath, "--env-file", filepath.Join(dir, "missing.env")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Store.Kind != "sqlite" {
		t.Errorf("expected store from file, got %q", cfg.Store.Kind)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	missingEnv := filepath.Join(dir, "missing.env")

	tests := []struct {
		name    string
		command string
		args    []string
		wantErr error
	}{
		{
			name:    "explicit config path missing",
			command: "rotate",
			args:    []string{"--config", filepath.Join(dir, "nope.yaml"), "--env-file", missingEnv},
			wantErr: config.ErrConfigNotFound,
		},
		{
			name:    "json and markdown together",
			command: "rotate",
			args:    []string{"--json", "--markdown", "--env-file", missingEnv},
			wantErr: config.ErrConflictingReportFormats,
		},
		{
			name:    "unknown store",
			command: "test",
			args:    []string{"--store", "etcd", "--env-file", missingEnv},
			wantErr: config.ErrInvalidStore,
		},
		{
			name:    "unknown provider",
			command: "test",
			args:    []string{"--provider", "acme", "--env-file", missingEnv},
			wantErr: config.ErrUnknownProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := loadConfig(parsedCommand(t, tt.command, tt.args...))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestInstallAmbient(t *testing.T) {
	t.Parallel()

	factory := dialer.NewFactory()

	t.Run("empty tier leaves the default transport alone", func(t *testing.T) {
		t.Parallel()
		ambient := &dialer.Ambient{}
		if err := installAmbient(ambient, factory, ""); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if _, err := ambient.Tier(); err == nil {
			t.Error("expected ambient to stay unconfigured")
		}
	})

	t.Run("invalid tier", func(t *testing.T) {
		t.Parallel()
		err := installAmbient(&dialer.Ambient{}, factory, "gold")
		if err == nil {
			t.Error("expected error for unknown tier")
		}
	})
}

func TestServeExpectedWorkersIsAHint(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	serve, _, err := NewRootCmd().Find([]string{"serve"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if serve.Flags().Lookup("workers") != nil {
		t.Error("serve must not offer a --workers flag it cannot honor")
	}
	if !strings.Contains(serve.Flags().Lookup("expected-workers").Usage, "never forks") {
		t.Error("expected --expected-workers help to say serve never forks")
	}

	cfg, err := loadConfig(parsedCommand(t, "serve",
		"--expected-workers", "4", "--env-file", filepath.Join(dir, "missing.env")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ExpectedWorkers != 4 {
		t.Errorf("ExpectedWorkers = %d, want 4", cfg.ExpectedWorkers)
	}
	if !cfg.CrossProcessUnsafe() {
		t.Error("four processes on the memory store must be reported as unsafe")
	}
}
