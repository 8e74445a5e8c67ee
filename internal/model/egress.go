package model

import (
	"net/netip"
	"time"
)

// EgressSnapshot is the public address a downstream server observed for a
// request sent through a tier. A snapshot belongs to the single call that
// produced it and is never cached.
type EgressSnapshot struct {
	Tier       Tier       `json:"tier"`
	IP         netip.Addr `json:"ip"`
	ObservedAt time.Time  `json:"observed_at"`
}

// NewEgressSnapshot records ip as observed now.
func NewEgressSnapshot(tier Tier, ip netip.Addr) EgressSnapshot {
	return EgressSnapshot{
		Tier:       tier,
		IP:         ip,
		ObservedAt: time.Now(),
	}
}

// IsZero reports whether no address was observed.
func (s EgressSnapshot) IsZero() bool {
	return !s.IP.IsValid()
}

// String returns the textual address, or "" for a zero snapshot.
func (s EgressSnapshot) String() string {
	if !s.IP.IsValid() {
		return ""
	}
	return s.IP.String()
}
