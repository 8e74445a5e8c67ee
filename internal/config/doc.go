// Package config provides the configuration of exitswitch: the proxy tiers,
// the Tor control port, the paid provider account, the egress check and the
// cooldown store. Values are layered as defaults, then the YAML file, then
// .env and environment variables, then CLI flags.
package config
