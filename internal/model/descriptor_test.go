package model

import (
	"net/netip"
	"testing"
)

// TestProxyDescriptorAddresses tests address formatting.
func TestProxyDescriptorAddresses(t *testing.T) {
	t.Parallel()

	t.Run("tor descriptor with control port", func(t *testing.T) {
		t.Parallel()

		d := ProxyDescriptor{Tier: TierFree, Host: "tor-proxy", Port: 9050, ControlPort: 9051, Protocol: ProtocolSOCKS5}
		if d.Address() != "tor-proxy:9050" {
			t.Errorf("Address() = %q", d.Address())
		}
		if d.ControlAddress() != "tor-proxy:9051" {
			t.Errorf("ControlAddress() = %q", d.ControlAddress())
		}
		if !d.HasControlPort() {
			t.Error("expected HasControlPort to be true")
		}
	})

	t.Run("paid descriptor without control port", func(t *testing.T) {
		t.Parallel()

		d := ProxyDescriptor{Tier: TierPaid, Host: "brd.superproxy.io", Port: 22225, Protocol: ProtocolHTTP}
		if d.ControlAddress() != "" {
			t.Errorf("expected empty control address, got %q", d.ControlAddress())
		}
		if d.HasControlPort() {
			t.Error("expected HasControlPort to be false")
		}
	})

	t.Run("IPv6 host is bracketed", func(t *testing.T) {
		t.Parallel()

		d := ProxyDescriptor{Host: "::1", Port: 9050}
		if d.Address() != "[::1]:9050" {
			t.Errorf("Address() = %q", d.Address())
		}
	})
}

// TestProtocolValid tests protocol validation.
func TestProtocolValid(t *testing.T) {
	t.Parallel()

	if !ProtocolSOCKS5.Valid() || !ProtocolHTTP.Valid() {
		t.Error("expected built-in protocols to be valid")
	}
	if Protocol("https").Valid() {
		t.Error("expected https to be invalid")
	}
}

// TestEgressSnapshot tests snapshot helpers.
func TestEgressSnapshot(t *testing.T) {
	t.Parallel()

	var zero EgressSnapshot
	if !zero.IsZero() || zero.String() != "" {
		t.Error("expected zero snapshot to be empty")
	}

	s := NewEgressSnapshot(TierFree, netip.MustParseAddr("185.220.101.4"))
	if s.IsZero() {
		t.Error("expected non-zero snapshot")
	}
	if s.String() != "185.220.101.4" {
		t.Errorf("String() = %q", s.String())
	}
	if s.ObservedAt.IsZero() {
		t.Error("expected ObservedAt to be set")
	}
}
