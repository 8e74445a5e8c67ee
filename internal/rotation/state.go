package rotation

// State is a step of the rotation state machine.
type State int

const (
	// StateIdle is the state before a rotation starts.
	StateIdle State = iota
	// StateCooldownBlocked means the tier's cooldown had not elapsed.
	StateCooldownBlocked
	// StateRotating means the identity switch is in progress.
	StateRotating
	// StateVerifying means the new egress address is being observed.
	StateVerifying
	// StateDone means the identity was switched.
	StateDone
	// StateFailed means the identity switch itself failed.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCooldownBlocked:
		return "cooldown_blocked"
	case StateRotating:
		return "rotating"
	case StateVerifying:
		return "verifying"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
