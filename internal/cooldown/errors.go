package cooldown

import (
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/exitswitch/internal/model"
)

// ErrCooldownActive matches every *ActiveError via errors.Is.
var ErrCooldownActive = errors.New("rotation cooldown active")

// ErrUnknownStore is returned when the configured store kind is not supported.
var ErrUnknownStore = errors.New("unknown cooldown store: valid options are memory, sqlite, redis")

// ActiveError reports that a tier's cooldown window has not elapsed.
// It is a recoverable condition: the caller may retry after Remaining.
type ActiveError struct {
	Tier      model.Tier
	Remaining time.Duration
}

// Error implements error.
func (e *ActiveError) Error() string {
	return fmt.Sprintf("%s tier rotation cooldown active: retry in %s", e.Tier, e.Remaining.Round(time.Millisecond))
}

// Is makes errors.Is(err, ErrCooldownActive) true.
func (e *ActiveError) Is(target error) bool {
	return target == ErrCooldownActive
}

// RemainingFrom extracts the remaining wait from err, or 0 if err is not a
// cooldown error.
func RemainingFrom(err error) time.Duration {
	var active *ActiveError
	if errors.As(err, &active) {
		return active.Remaining
	}
	return 0
}
