package rotation

import (
	"net/netip"
	"time"

	"github.com/nao1215/exitswitch/internal/model"
)

// Result describes the outcome of one Rotate call.
type Result struct {
	Tier     model.Tier
	State    State
	Provider string

	// Remaining is the wait left when State is StateCooldownBlocked.
	Remaining time.Duration

	// OldSession and NewSession are the paid session tokens around the
	// rotation. They are empty for the free tier.
	OldSession string
	NewSession string

	// PreviousIP is the caller-supplied address from before the rotation.
	PreviousIP netip.Addr

	// NewIP is the observed egress address. It is only valid when Verified.
	NewIP    netip.Addr
	Verified bool

	// VerificationErr explains why Verified is false. It matches
	// ErrVerificationInconclusive.
	VerificationErr error

	// SameAsPrevious is set when PreviousIP was supplied and equals NewIP.
	// Rotation does not guarantee a distinct exit.
	SameAsPrevious bool

	Message string
	Note    string

	StartedAt time.Time
	Duration  time.Duration
}

// TestResult compares the host's own address with the tier's egress address.
type TestResult struct {
	Tier     model.Tier
	Provider string

	// SessionID is the paid session token in use, or "" for the free tier.
	SessionID string

	DirectIP  netip.Addr
	ProxiedIP netip.Addr

	// ProxyWorking is true when both addresses were observed and differ.
	ProxyWorking bool

	// Err holds the first lookup failure, if any.
	Err error
}
