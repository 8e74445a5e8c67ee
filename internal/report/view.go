package report

import (
	"errors"
	"math"
	"net/netip"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/exitswitch/internal/cooldown"
	"github.com/nao1215/exitswitch/internal/model"
	"github.com/nao1215/exitswitch/internal/rotation"
)

// Rotation status values.
const (
	StatusSuccess  = "success"
	StatusPartial  = "partial"
	StatusCooldown = "cooldown"
	StatusError    = "error"
)

// RotationView is the wire form of a rotation outcome.
type RotationView struct {
	Status            string  `json:"status"`
	Tier              string  `json:"tier"`
	State             string  `json:"state"`
	Provider          string  `json:"provider"`
	OldSessionID      *string `json:"old_session_id"`
	NewSessionID      *string `json:"new_session_id"`
	PreviousIP        *string `json:"previous_ip,omitempty"`
	NewIP             *string `json:"new_ip"`
	Verified          bool    `json:"verified"`
	SameAsPrevious    bool    `json:"same_as_previous,omitempty"`
	VerificationError string  `json:"verification_error,omitempty"`
	RetryAfterSeconds int     `json:"retry_after_seconds,omitempty"`
	Message           string  `json:"message,omitempty"`
	Note              string  `json:"note,omitempty"`
	Error             string  `json:"error,omitempty"`
	DurationMS        int64   `json:"duration_ms"`
}

// NewRotationView builds the view of a Rotate call. err is the error Rotate
// returned, if any.
func NewRotationView(result *rotation.Result, err error) RotationView {
	if result == nil {
		result = &rotation.Result{State: rotation.StateFailed}
	}

	v := RotationView{
		Status:         rotationStatus(result, err),
		Tier:           result.Tier.String(),
		State:          result.State.String(),
		Provider:       result.Provider,
		OldSessionID:   optional(result.OldSession),
		NewSessionID:   optional(result.NewSession),
		PreviousIP:     optionalAddr(result.PreviousIP),
		Verified:       result.Verified,
		SameAsPrevious: result.SameAsPrevious,
		Message:        result.Message,
		Note:           result.Note,
		DurationMS:     result.Duration.Milliseconds(),
	}
	if result.Verified {
		v.NewIP = optionalAddr(result.NewIP)
	}
	if result.VerificationErr != nil {
		v.VerificationError = result.VerificationErr.Error()
	}
	if result.State == rotation.StateCooldownBlocked {
		v.RetryAfterSeconds = RetryAfterSeconds(result.Remaining.Seconds())
	}
	if err != nil && !errors.Is(err, cooldown.ErrCooldownActive) {
		v.Error = err.Error()
	}
	return v
}

func rotationStatus(result *rotation.Result, err error) string {
	switch {
	case result.State == rotation.StateCooldownBlocked || errors.Is(err, cooldown.ErrCooldownActive):
		return StatusCooldown
	case err != nil || result.State == rotation.StateFailed:
		return StatusError
	case result.Verified:
		return StatusSuccess
	default:
		return StatusPartial
	}
}

// RetryAfterSeconds rounds a wait up to whole seconds, never below one.
func RetryAfterSeconds(seconds float64) int {
	n := int(math.Ceil(seconds))
	if n < 1 {
		return 1
	}
	return n
}

// TestView is the wire form of a proxy test.
type TestView struct {
	Tier         string  `json:"tier"`
	Provider     string  `json:"provider"`
	SessionID    *string `json:"session_id"`
	DirectIP     *string `json:"direct_ip"`
	ProxiedIP    *string `json:"proxied_ip"`
	ProxyWorking bool    `json:"proxy_working"`
	Error        string  `json:"error,omitempty"`
}

// NewTestView builds the view of a Test call.
func NewTestView(result *rotation.TestResult) TestView {
	v := TestView{
		Tier:         result.Tier.String(),
		Provider:     result.Provider,
		SessionID:    optional(result.SessionID),
		DirectIP:     optionalAddr(result.DirectIP),
		ProxiedIP:    optionalAddr(result.ProxiedIP),
		ProxyWorking: result.ProxyWorking,
	}
	if result.Err != nil {
		v.Error = result.Err.Error()
	}
	return v
}

// ProviderDisplayName returns a human-readable provider name.
func ProviderDisplayName(provider string) string {
	switch strings.ToLower(provider) {
	case "":
		return "-"
	case "tor":
		return "Tor"
	case "brightdata":
		return "Bright Data"
	case "iproyal":
		return "IPRoyal"
	case "floppydata":
		return "FloppyData"
	}
	return cases.Title(language.English).String(provider)
}

// TierDisplayName returns "Free (Tor)" or "Paid (residential)".
func TierDisplayName(tier model.Tier) string {
	if tier.IsFree() {
		return "Free (Tor)"
	}
	return "Paid (residential)"
}

// MaskToken hides all but the first four characters of a session token.
func MaskToken(token string) string {
	const visible = 4
	if token == "" {
		return ""
	}
	if len(token) <= visible {
		return strings.Repeat("*", len(token))
	}
	return token[:visible] + strings.Repeat("*", len(token)-visible)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalAddr(ip netip.Addr) *string {
	if !ip.IsValid() {
		return nil
	}
	s := ip.String()
	return &s
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
