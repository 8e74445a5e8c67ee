package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// tokenLength is the number of characters kept from a generated UUID.
// Some gateways reject long session ids, so the token is kept short.
const tokenLength = 16

// Publisher shares the current token with other worker processes.
// The cooldown stores implement it.
type Publisher interface {
	PublishSession(ctx context.Context, token string) error
	LoadSession(ctx context.Context) (string, error)

	// ClaimSession stores token unless a token is already shared and
	// returns the shared one.
	ClaimSession(ctx context.Context, token string) (string, error)
}

// Rotator holds the paid tier's current session token.
// It is safe for concurrent use.
type Rotator struct {
	mu        sync.RWMutex
	current   string
	generate  func() string
	publisher Publisher
	logger    *slog.Logger
}

// RotatorOption configures a Rotator.
type RotatorOption func(*Rotator)

// WithGenerator replaces the token generator.
func WithGenerator(generate func() string) RotatorOption {
	return func(r *Rotator) {
		r.generate = generate
	}
}

// WithPublisher mirrors every new token to a shared store so that all worker
// processes use the same paid identity.
func WithPublisher(p Publisher) RotatorOption {
	return func(r *Rotator) {
		r.publisher = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RotatorOption {
	return func(r *Rotator) {
		r.logger = logger
	}
}

// NewRotator creates a Rotator with a freshly generated token. With a
// publisher, call Join before serving so the worker adopts the shared token.
func NewRotator(opts ...RotatorOption) *Rotator {
	r := &Rotator{generate: NewToken}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.current = r.generate()
	return r
}

// NewToken returns a fresh opaque session id.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:tokenLength]
}

// Join aligns the local token with the shared one: the token already
// published by another worker is adopted, otherwise the local token is
// published. Workers joining at the same time end up on the same token.
// Without a publisher Join does nothing.
func (r *Rotator) Join(ctx context.Context) error {
	if r.publisher == nil {
		return nil
	}

	r.mu.RLock()
	local := r.current
	r.mu.RUnlock()

	shared, err := r.publisher.ClaimSession(ctx, local)
	if err != nil {
		return err
	}
	if shared == "" {
		shared = local
	}

	r.mu.Lock()
	r.current = shared
	r.mu.Unlock()
	if shared != local {
		r.logger.Debug("adopted shared session token")
	}
	return nil
}

// Current returns the token new requests should use. When a publisher is
// configured the shared token wins over the local copy, so a rotation done by
// another worker is picked up here.
func (r *Rotator) Current(ctx context.Context) string {
	if r.publisher != nil {
		shared, err := r.publisher.LoadSession(ctx)
		if err != nil {
			r.logger.Warn("failed to load shared session token, using local copy", "error", err)
		} else if shared != "" {
			r.mu.Lock()
			r.current = shared
			r.mu.Unlock()
			return shared
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Rotate swaps in a new token and returns the previous and new values.
// The previous token is not revoked; in-flight requests keep working.
//
// With a publisher the new token is published first and only then used
// locally. If publishing fails the local token is unchanged and next is "".
func (r *Rotator) Rotate(ctx context.Context) (previous, next string, err error) {
	if r.publisher != nil {
		// Refresh the local copy so previous reflects the shared token.
		previous = r.Current(ctx)
		candidate := r.generate()
		if err := r.publisher.PublishSession(ctx, candidate); err != nil {
			return previous, "", err
		}
		next = candidate
	} else {
		next = r.generate()
	}

	r.mu.Lock()
	previous = r.current
	r.current = next
	r.mu.Unlock()

	return previous, next, nil
}
