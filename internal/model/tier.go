package model

import (
	"errors"
	"strconv"
	"strings"
)

// Tier identifies one of the two outbound proxy backends.
type Tier int

const (
	// TierPaid routes through a rotating residential proxy provider.
	// It is the zero value because the original service defaulted isFree to false.
	TierPaid Tier = iota

	// TierFree routes through a Tor SOCKS5 circuit.
	TierFree
)

// ErrInvalidTier is returned when a tier name cannot be parsed.
var ErrInvalidTier = errors.New("invalid proxy tier: expected free or paid")

// Tiers lists every tier in a stable order.
var Tiers = []Tier{TierFree, TierPaid}

// String returns the lower-case tier name used in logs, keys and JSON.
func (t Tier) String() string {
	switch t {
	case TierFree:
		return "free"
	case TierPaid:
		return "paid"
	default:
		return "unknown"
	}
}

// IsFree reports whether t is the Tor tier.
func (t Tier) IsFree() bool {
	return t == TierFree
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	if t != TierFree && t != TierPaid {
		return nil, ErrInvalidTier
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(text []byte) error {
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TierFromIsFree maps the isFree query flag onto a tier.
func TierFromIsFree(isFree bool) Tier {
	if isFree {
		return TierFree
	}
	return TierPaid
}

// ParseTier accepts "free"/"tor", "paid"/"residential", or a boolean string
// that is interpreted as the isFree flag.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "free", "tor":
		return TierFree, nil
	case "paid", "residential":
		return TierPaid, nil
	}
	isFree, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return TierPaid, ErrInvalidTier
	}
	return TierFromIsFree(isFree), nil
}
