package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".exitswitch"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile overlays the YAML file at path onto c. Keys absent from the
// file keep their current values. If the file does not exist, it returns
// ErrConfigNotFound.
func (c *Config) LoadConfigFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return ErrConfigNotFound
		}
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	c.fillProviderDefaults()
	c.ConfigFilePath = path
	return nil
}

// fillProviderDefaults restores gateway defaults for providers that a config
// file listed with credentials only. Decoding a provider entry replaces the
// whole entry, so the defaults are merged back here.
func (c *Config) fillProviderDefaults() {
	if c.Paid.Providers == nil {
		c.Paid.Providers = make(map[string]ProviderConfig)
	}
	for name, def := range defaultProviders() {
		p, ok := c.Paid.Providers[name]
		if !ok {
			c.Paid.Providers[name] = def
			continue
		}
		if p.Host == "" {
			p.Host = def.Host
		}
		if p.Port == 0 {
			p.Port = def.Port
		}
		if p.Protocol == "" {
			p.Protocol = def.Protocol
		}
		if p.Country == "" {
			p.Country = def.Country
		}
		c.Paid.Providers[name] = p
	}
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .exitswitch in the current directory
// 3. Look for .exitswitch in the user's home directory
// 4. Look for config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	candidates := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), "config.yaml"))

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
