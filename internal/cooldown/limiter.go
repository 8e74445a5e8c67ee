package cooldown

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/exitswitch/internal/model"
)

// Store persists the last rotation time per tier.
type Store interface {
	// Reserve records now as the tier's last rotation if at least cooldown
	// has passed since the previous one, and returns 0. Otherwise it returns
	// the remaining wait and leaves the state untouched. The check and the
	// write must be one atomic step.
	Reserve(ctx context.Context, tier model.Tier, now time.Time, cooldown time.Duration) (time.Duration, error)

	// Remaining returns the wait left in the tier's window without reserving.
	Remaining(ctx context.Context, tier model.Tier, now time.Time, cooldown time.Duration) (time.Duration, error)

	// Shared reports whether the store is visible to other processes.
	Shared() bool

	// Close releases the store's resources.
	Close() error
}

// Limiter applies per-tier cooldowns on top of a Store.
type Limiter struct {
	store     Store
	cooldowns map[model.Tier]time.Duration
	now       func() time.Time
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithClock replaces time.Now. Tests use it to step through a window.
func WithClock(now func() time.Time) LimiterOption {
	return func(l *Limiter) {
		l.now = now
	}
}

// WithCooldown sets the minimum interval between rotations for a tier.
func WithCooldown(tier model.Tier, cooldown time.Duration) LimiterOption {
	return func(l *Limiter) {
		if cooldown < 0 {
			cooldown = 0
		}
		l.cooldowns[tier] = cooldown
	}
}

// NewLimiter creates a Limiter. Tiers without an explicit cooldown have none.
func NewLimiter(store Store, opts ...LimiterOption) *Limiter {
	l := &Limiter{
		store:     store,
		cooldowns: make(map[model.Tier]time.Duration),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Cooldown returns the configured window for tier.
func (l *Limiter) Cooldown(tier model.Tier) time.Duration {
	return l.cooldowns[tier]
}

// Shared reports whether the cooldown is enforced across processes.
func (l *Limiter) Shared() bool {
	return l.store.Shared()
}

// CheckAndReserve reserves the tier's next rotation slot. It returns nil when
// the slot was reserved, or an *ActiveError carrying the remaining wait. It
// never blocks waiting for the window to open.
func (l *Limiter) CheckAndReserve(ctx context.Context, tier model.Tier) error {
	cooldown := l.cooldowns[tier]
	remaining, err := l.store.Reserve(ctx, tier, l.now(), cooldown)
	if err != nil {
		return fmt.Errorf("failed to reserve %s rotation slot: %w", tier, err)
	}
	if remaining > 0 {
		return &ActiveError{Tier: tier, Remaining: remaining}
	}
	return nil
}

// Peek returns the wait left before the tier can rotate again.
func (l *Limiter) Peek(ctx context.Context, tier model.Tier) (time.Duration, error) {
	remaining, err := l.store.Remaining(ctx, tier, l.now(), l.cooldowns[tier])
	if err != nil {
		return 0, fmt.Errorf("failed to read %s cooldown: %w", tier, err)
	}
	return remaining, nil
}

// Close closes the underlying store.
func (l *Limiter) Close() error {
	return l.store.Close()
}

// remainingAt computes the wait left in a window that opened at last.
// A last rotation in the future (clock skew between workers) is clamped so
// the result never exceeds cooldown.
func remainingAt(last, now time.Time, cooldown time.Duration) time.Duration {
	if last.IsZero() || cooldown <= 0 {
		return 0
	}
	elapsed := now.Sub(last)
	if elapsed < 0 {
		return cooldown
	}
	if elapsed >= cooldown {
		return 0
	}
	return cooldown - elapsed
}
