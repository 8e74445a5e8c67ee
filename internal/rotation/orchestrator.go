package rotation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/exitswitch/internal/cooldown"
	"github.com/nao1215/exitswitch/internal/egress"
	"github.com/nao1215/exitswitch/internal/model"
)

const (
	// DefaultFreeSettleDelay gives Tor time to build the new circuit before
	// the egress address is checked.
	DefaultFreeSettleDelay = time.Second

	// DefaultPaidSettleDelay is zero: the gateway maps the new token on the
	// next request.
	DefaultPaidSettleDelay = 0
)

const (
	freeMessage  = "New Tor identity requested. New circuit should be established within 1-2 seconds."
	freeNote     = "Tor rate-limits this request to approximately once per 10 seconds."
	paidMessage  = "New session created. The next request will use a new IP address."
	paidNote     = "The previous session stays valid for requests already in flight."
	sameIPNote   = "The new exit IP equals the previous one; rotation does not guarantee a distinct exit."
	cooldownNote = "Identity rotation is rate-limited; retry in %s."
)

// Limiter reserves rotation slots.
type Limiter interface {
	CheckAndReserve(ctx context.Context, tier model.Tier) error
	Peek(ctx context.Context, tier model.Tier) (time.Duration, error)
}

// IdentitySignaler requests a new Tor circuit. *tor.ControlClient
// satisfies it.
type IdentitySignaler interface {
	NewIdentity(ctx context.Context) error
}

// SessionRotator swaps the paid session token. *session.Rotator satisfies it.
type SessionRotator interface {
	Current(ctx context.Context) string
	Rotate(ctx context.Context) (previous, next string, err error)
}

// ClientFactory builds tier clients. *dialer.Factory satisfies it.
type ClientFactory interface {
	ClientFor(ctx context.Context, tier model.Tier) (*http.Client, error)
	DirectClient() *http.Client
	Descriptor(tier model.Tier) (model.ProxyDescriptor, bool)
}

// IPVerifier observes egress addresses. *egress.Verifier satisfies it.
type IPVerifier interface {
	CurrentIP(ctx context.Context, tier model.Tier, client egress.Doer) (model.EgressSnapshot, error)
}

// Orchestrator runs rotations.
type Orchestrator struct {
	limiter  Limiter
	clients  ClientFactory
	verifier IPVerifier
	signaler IdentitySignaler
	sessions SessionRotator
	settle   map[model.Tier]time.Duration
	logger   *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSignaler wires the free tier's rotation mechanism.
func WithSignaler(s IdentitySignaler) Option {
	return func(o *Orchestrator) {
		o.signaler = s
	}
}

// WithSessions wires the paid tier's rotation mechanism.
func WithSessions(s SessionRotator) Option {
	return func(o *Orchestrator) {
		o.sessions = s
	}
}

// WithSettleDelay sets how long to wait after rotating before verifying.
func WithSettleDelay(tier model.Tier, d time.Duration) Option {
	return func(o *Orchestrator) {
		if d < 0 {
			d = 0
		}
		o.settle[tier] = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(limiter Limiter, clients ClientFactory, verifier IPVerifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		limiter:  limiter,
		clients:  clients,
		verifier: verifier,
		settle: map[model.Tier]time.Duration{
			model.TierFree: DefaultFreeSettleDelay,
			model.TierPaid: DefaultPaidSettleDelay,
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// RotateOption adjusts a single Rotate call.
type RotateOption func(*rotateOptions)

type rotateOptions struct {
	previousIP netip.Addr
}

// WithPreviousIP supplies the egress address observed before the rotation,
// enabling Result.SameAsPrevious.
func WithPreviousIP(ip netip.Addr) RotateOption {
	return func(o *rotateOptions) {
		o.previousIP = ip
	}
}

// Provider returns the provider name configured for tier.
func (o *Orchestrator) Provider(tier model.Tier) string {
	if d, ok := o.clients.Descriptor(tier); ok && d.Provider != "" {
		return d.Provider
	}
	if tier.IsFree() {
		return "tor"
	}
	return ""
}

// Remaining reports the tier's cooldown without reserving.
func (o *Orchestrator) Remaining(ctx context.Context, tier model.Tier) (time.Duration, error) {
	return o.limiter.Peek(ctx, tier)
}

// CurrentSession returns the paid token in use, or "" for the free tier.
func (o *Orchestrator) CurrentSession(ctx context.Context, tier model.Tier) string {
	if tier.IsFree() || o.sessions == nil {
		return ""
	}
	return o.sessions.Current(ctx)
}

// Rotate switches tier's identity and verifies the new egress address.
//
// It returns a non-nil error only for CooldownBlocked (matching
// cooldown.ErrCooldownActive) and Failed (matching ErrAuthenticationFailed,
// ErrRotationIO or ErrTierNotConfigured). A rotation whose verification
// failed is Done with a nil error.
//
// A paid rotation that fails while building its client (for example with
// missing credentials) has already consumed the token: Result.NewSession is
// set and is the token later requests use.
func (o *Orchestrator) Rotate(ctx context.Context, tier model.Tier, opts ...RotateOption) (*Result, error) {
	var ro rotateOptions
	for _, opt := range opts {
		opt(&ro)
	}

	result := &Result{
		Tier:       tier,
		State:      StateIdle,
		Provider:   o.Provider(tier),
		PreviousIP: ro.previousIP,
		StartedAt:  time.Now(),
	}
	defer func() {
		result.Duration = time.Since(result.StartedAt)
	}()
	logger := o.logger.With("tier", tier.String(), "provider", result.Provider)

	if err := o.checkWired(tier); err != nil {
		result.State = StateFailed
		return result, err
	}

	if err := o.limiter.CheckAndReserve(ctx, tier); err != nil {
		if errors.Is(err, cooldown.ErrCooldownActive) {
			result.State = StateCooldownBlocked
			result.Remaining = cooldown.RemainingFrom(err)
			result.Note = fmt.Sprintf(cooldownNote, result.Remaining.Round(time.Second))
			logger.Info("rotation blocked by cooldown", "remaining", result.Remaining)
			return result, err
		}
		result.State = StateFailed
		return result, fmt.Errorf("%w: %w", ErrRotationIO, err)
	}

	result.State = StateRotating
	client, err := o.rotate(ctx, tier, result)
	if err != nil {
		result.State = StateFailed
		err = classify(err)
		logger.Warn("rotation failed", "error", err)
		return result, err
	}
	if client != nil {
		defer client.CloseIdleConnections()
	}

	result.State = StateVerifying
	o.verify(ctx, tier, client, result)
	result.State = StateDone

	logger.Info("identity rotated",
		"verified", result.Verified,
		"new_ip", result.NewIP,
		"same_as_previous", result.SameAsPrevious,
	)
	return result, nil
}

func (o *Orchestrator) checkWired(tier model.Tier) error {
	if tier.IsFree() && o.signaler == nil {
		return fmt.Errorf("%w: %s tier has no control port", ErrTierNotConfigured, tier)
	}
	if !tier.IsFree() && o.sessions == nil {
		return fmt.Errorf("%w: %s tier has no session rotator", ErrTierNotConfigured, tier)
	}
	return nil
}

// rotate performs the identity switch. For the paid tier it also builds the
// client carrying the new token, since an unusable credential is a rotation
// failure rather than a verification one.
func (o *Orchestrator) rotate(ctx context.Context, tier model.Tier, result *Result) (*http.Client, error) {
	if tier.IsFree() {
		if err := o.signaler.NewIdentity(ctx); err != nil {
			return nil, err
		}
		result.Message = freeMessage
		result.Note = freeNote
		return nil, nil
	}

	previous, next, err := o.sessions.Rotate(ctx)
	result.OldSession = previous
	if err != nil {
		return nil, err
	}
	result.NewSession = next
	result.Message = paidMessage
	result.Note = paidNote

	client, err := o.clients.ClientFor(ctx, tier)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// verify fills the verification fields of result. Failures never turn the
// rotation into an error.
func (o *Orchestrator) verify(ctx context.Context, tier model.Tier, client *http.Client, result *Result) {
	inconclusive := func(err error) {
		result.Verified = false
		result.VerificationErr = fmt.Errorf("%w: %w", ErrVerificationInconclusive, err)
		o.logger.Warn("could not verify new identity", "tier", tier.String(), "error", err)
	}

	if err := sleep(ctx, o.settle[tier]); err != nil {
		inconclusive(err)
		return
	}

	if client == nil {
		c, err := o.clients.ClientFor(ctx, tier)
		if err != nil {
			inconclusive(err)
			return
		}
		defer c.CloseIdleConnections()
		client = c
	}

	snapshot, err := o.verifier.CurrentIP(ctx, tier, client)
	if err != nil {
		inconclusive(err)
		return
	}
	result.NewIP = snapshot.IP
	result.Verified = true
	if result.PreviousIP.IsValid() && result.PreviousIP == snapshot.IP {
		result.SameAsPrevious = true
		result.Note = sameIPNote
	}
}

// Test observes the host's direct address and the tier's egress address
// concurrently.
func (o *Orchestrator) Test(ctx context.Context, tier model.Tier) *TestResult {
	result := &TestResult{
		Tier:      tier,
		Provider:  o.Provider(tier),
		SessionID: o.CurrentSession(ctx, tier),
	}

	var g errgroup.Group
	g.Go(func() error {
		direct := o.clients.DirectClient()
		defer direct.CloseIdleConnections()
		snapshot, err := o.verifier.CurrentIP(ctx, tier, direct)
		if err != nil {
			return fmt.Errorf("direct lookup: %w", err)
		}
		result.DirectIP = snapshot.IP
		return nil
	})
	g.Go(func() error {
		client, err := o.clients.ClientFor(ctx, tier)
		if err != nil {
			return fmt.Errorf("proxied lookup: %w", err)
		}
		defer client.CloseIdleConnections()
		snapshot, err := o.verifier.CurrentIP(ctx, tier, client)
		if err != nil {
			return fmt.Errorf("proxied lookup: %w", err)
		}
		result.ProxiedIP = snapshot.IP
		return nil
	})
	result.Err = g.Wait()

	result.ProxyWorking = result.DirectIP.IsValid() && result.ProxiedIP.IsValid() &&
		result.DirectIP != result.ProxiedIP
	return result
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
