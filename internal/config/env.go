package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/nao1215/exitswitch/internal/model"
	"github.com/nao1215/exitswitch/internal/session"
)

// Environment variable names. The Tor and provider names follow the
// conventions of existing scraper deployments so their .env files work
// unchanged.
const (
	EnvTorProxyHost       = "TOR_PROXY_HOST"
	EnvTorProxyPort       = "TOR_PROXY_PORT"
	EnvTorControlPort     = "TOR_CONTROL_PORT"
	EnvTorControlPassword = "TOR_CONTROL_PASSWORD"
	EnvTorCookiePath      = "TOR_COOKIE_PATH"
	EnvTorCooldown        = "TOR_COOLDOWN"
	EnvProxyProvider      = "PROXY_PROVIDER"
	EnvPaidCooldown       = "PROXY_COOLDOWN"
	EnvEgressEndpoint     = "EGRESS_ENDPOINT"
	EnvEgressTimeout      = "EGRESS_TIMEOUT"
	EnvCooldownStore      = "COOLDOWN_STORE"
	EnvStateDir           = "EXITSWITCH_STATE_DIR"
	EnvRedisAddr          = "REDIS_ADDR"
	EnvRedisPassword      = "REDIS_PASSWORD"
	EnvRedisDB            = "REDIS_DB"
	EnvListenAddress      = "EXITSWITCH_LISTEN"
	EnvExpectedWorkers    = "EXITSWITCH_EXPECTED_WORKERS"
	EnvAPIToken           = "EXITSWITCH_API_TOKEN"
)

// DefaultEnvFile is the dotenv file read from the working directory.
const DefaultEnvFile = ".env"

// LookupFunc reads one variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// LoadEnv applies the dotenv file at path (if it exists) and then the
// process environment. Process variables win over the file.
func (c *Config) LoadEnv(path string) error {
	fileValues := map[string]string{}
	if path != "" {
		values, err := godotenv.Read(path)
		switch {
		case err == nil:
			fileValues = values
		case errors.Is(err, os.ErrNotExist):
		default:
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	return c.ApplyEnv(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileValues[key]
		return v, ok
	})
}

// ApplyEnv overlays the variables visible through lookup onto c.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	e := envReader{lookup: lookup}

	e.str(EnvListenAddress, &c.ListenAddress)
	e.int(EnvExpectedWorkers, &c.ExpectedWorkers)
	e.str(EnvAPIToken, &c.APIToken)

	e.str(EnvTorProxyHost, &c.Free.Host)
	e.int(EnvTorProxyPort, &c.Free.SocksPort)
	e.int(EnvTorControlPort, &c.Free.ControlPort)
	e.str(EnvTorControlPassword, &c.Free.ControlPassword)
	e.str(EnvTorCookiePath, &c.Free.CookiePath)
	e.duration(EnvTorCooldown, &c.Free.Cooldown)

	if v, ok := lookup(EnvProxyProvider); ok && v != "" {
		c.Paid.Provider = strings.ToLower(v)
	}
	e.duration(EnvPaidCooldown, &c.Paid.Cooldown)

	c.fillProviderDefaults()
	for _, name := range session.Providers {
		p := c.Paid.Providers[name]
		e.str(envName(name, "USERNAME"), &p.Username)
		e.str(envName(name, "PASSWORD"), &p.Password)
		e.str(envName(name, "HOST"), &p.Host)
		e.int(envName(name, "PORT"), &p.Port)
		if v, ok := lookup(envName(name, "PROTOCOL")); ok && v != "" {
			p.Protocol = model.Protocol(strings.ToLower(v))
		}
		e.str(envName(name, "COUNTRY"), &p.Country)
		e.str(envName(name, "CITY"), &p.City)
		e.int(envName(name, "ROTATION"), &p.Rotation)
		c.Paid.Providers[name] = p
	}

	e.str(EnvEgressEndpoint, &c.Egress.Endpoint)
	e.duration(EnvEgressTimeout, &c.Egress.Timeout)

	e.str(EnvCooldownStore, &c.Store.Kind)
	e.str(EnvStateDir, &c.Store.Dir)
	e.str(EnvRedisAddr, &c.Store.RedisAddr)
	e.str(EnvRedisPassword, &c.Store.RedisPassword)
	e.int(EnvRedisDB, &c.Store.RedisDB)

	return e.err
}

// envName builds a provider variable name such as BRIGHTDATA_USERNAME.
func envName(provider, suffix string) string {
	return strings.ToUpper(provider) + "_" + suffix
}

// envReader keeps the first parse error so ApplyEnv reads like a list.
type envReader struct {
	lookup LookupFunc
	err    error
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.lookup(key); ok && v != "" {
		*dst = v
	}
}

func (e *envReader) int(key string, dst *int) {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.fail(key, v)
		return
	}
	*dst = n
}

// duration accepts Go durations ("10s") or bare seconds ("10").
func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return
	}
	v = strings.TrimSpace(v)
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		*dst = time.Duration(secs * float64(time.Second))
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v)
		return
	}
	*dst = d
}

func (e *envReader) fail(key, value string) {
	if e.err == nil {
		e.err = fmt.Errorf("%w: %s=%q", ErrInvalidEnv, key, value)
	}
}
