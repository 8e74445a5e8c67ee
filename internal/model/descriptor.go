package model

import (
	"net"
	"strconv"
)

// Protocol is the wire protocol spoken by a proxy's data-plane port.
type Protocol string

const (
	// ProtocolSOCKS5 is used by Tor and optionally by paid providers.
	ProtocolSOCKS5 Protocol = "socks5"

	// ProtocolHTTP is an HTTP CONNECT proxy, the common paid-provider gateway.
	ProtocolHTTP Protocol = "http"
)

// Valid reports whether p is a supported protocol.
func (p Protocol) Valid() bool {
	return p == ProtocolSOCKS5 || p == ProtocolHTTP
}

// ProxyDescriptor is the immutable configuration of one tier.
// Descriptors are built once at startup and shared read-only afterwards,
// so they are passed by value.
type ProxyDescriptor struct {
	// Tier is the backend this descriptor belongs to.
	Tier Tier `json:"tier"`

	// Provider is "tor" for the free tier or the paid provider name
	// (brightdata, oxylabs, smartproxy, iproyal, floppydata).
	Provider string `json:"provider"`

	// Host and Port locate the data-plane proxy listener.
	Host string `json:"host"`
	Port int    `json:"port"`

	// ControlPort is the Tor control port. Zero means the tier has none.
	ControlPort int `json:"control_port,omitempty"`

	// Protocol is the data-plane protocol.
	Protocol Protocol `json:"protocol"`

	// CredentialRef names where the credential is loaded from,
	// e.g. "env:BRIGHTDATA_PASSWORD". It never holds the secret itself.
	CredentialRef string `json:"credential_ref,omitempty"`
}

// Address returns the data-plane proxy address in "host:port" form.
func (d ProxyDescriptor) Address() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// ControlAddress returns the control port address, or "" if the tier has no
// control port.
func (d ProxyDescriptor) ControlAddress() string {
	if d.ControlPort == 0 {
		return ""
	}
	return net.JoinHostPort(d.Host, strconv.Itoa(d.ControlPort))
}

// HasControlPort reports whether rotation can be signalled over a control port.
func (d ProxyDescriptor) HasControlPort() bool {
	return d.ControlPort != 0
}
