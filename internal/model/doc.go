// Package model defines the core data structures shared by exitswitch.
//
// This package contains the following main types:
//   - Tier: Which outbound proxy backend a request uses (free Tor or paid residential)
//   - ProxyDescriptor: Immutable configuration of one tier's proxy endpoint
//   - EgressSnapshot: The public address observed through a tier at one point in time
//
// Models live in their own package so that the rotation, dialer, server and
// report packages can share them without import cycles.
package model
