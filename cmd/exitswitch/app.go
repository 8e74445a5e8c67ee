package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/exitswitch/internal/config"
	"github.com/nao1215/exitswitch/internal/cooldown"
	"github.com/nao1215/exitswitch/internal/dialer"
	"github.com/nao1215/exitswitch/internal/egress"
	"github.com/nao1215/exitswitch/internal/model"
	"github.com/nao1215/exitswitch/internal/rotation"
	"github.com/nao1215/exitswitch/internal/session"
	"github.com/nao1215/exitswitch/internal/tor"
)

// app holds the components shared by serve, rotate and test.
type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	limiter      *cooldown.Limiter
	sessions     *session.Rotator
	factory      *dialer.Factory
	control      *tor.ControlClient
	embedded     *tor.EmbeddedTor
	orchestrator *rotation.Orchestrator
}

// newApp opens the cooldown store and wires the rotation core. The caller
// must call Close.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	store, err := cooldown.OpenStore(ctx, cfg.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open cooldown store: %w", err)
	}
	a.limiter = cooldown.NewLimiter(store,
		cooldown.WithCooldown(model.TierFree, cfg.Free.Cooldown),
		cooldown.WithCooldown(model.TierPaid, cfg.Paid.Cooldown),
	)
	logger.Debug("cooldown store opened", "kind", cfg.Store.Kind, "shared", store.Shared())

	rotatorOpts := []session.RotatorOption{session.WithLogger(logger)}
	if publisher, ok := store.(session.Publisher); ok && store.Shared() {
		rotatorOpts = append(rotatorOpts, session.WithPublisher(publisher))
	}
	a.sessions = session.NewRotator(rotatorOpts...)
	if err := a.sessions.Join(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to share paid session token: %w", err)
	}

	freeDescriptor, err := a.startFreeTier(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.factory = dialer.NewFactory(
		dialer.WithDescriptor(freeDescriptor),
		dialer.WithDescriptor(cfg.PaidDescriptor()),
		dialer.WithCredentials(cfg.PaidCredentials()),
		dialer.WithTokenSource(a.sessions),
		dialer.WithClientTimeout(cfg.Egress.Timeout),
	)

	verifier := egress.NewVerifier(
		egress.WithEndpoint(cfg.Egress.Endpoint),
		egress.WithTimeout(cfg.Egress.Timeout),
	)

	a.orchestrator = rotation.NewOrchestrator(a.limiter, a.factory, verifier,
		rotation.WithSignaler(a.control),
		rotation.WithSessions(a.sessions),
		rotation.WithSettleDelay(model.TierFree, cfg.Free.SettleDelay),
		rotation.WithSettleDelay(model.TierPaid, cfg.Paid.SettleDelay),
		rotation.WithLogger(logger),
	)
	return a, nil
}

// startFreeTier builds the Tor control client, starting the embedded daemon
// first when configured.
func (a *app) startFreeTier(ctx context.Context) (model.ProxyDescriptor, error) {
	cfg := a.cfg
	controlOpts := []tor.ControlOption{tor.WithControlTimeout(cfg.Free.ControlTimeout)}

	if !cfg.Free.Embedded {
		descriptor := cfg.FreeDescriptor()
		control, err := tor.NewControlClient(descriptor.ControlAddress(), controlAuth(cfg), controlOpts...)
		if err != nil {
			return model.ProxyDescriptor{}, fmt.Errorf("failed to create Tor control client: %w", err)
		}
		a.control = control
		return descriptor, nil
	}

	a.logger.Info("starting embedded Tor daemon; bootstrapping may take a few minutes")
	a.embedded = tor.NewEmbeddedTor(
		tor.WithStartupTimeout(cfg.Free.StartupTimeout),
		tor.WithEmbeddedLogger(a.logger),
	)
	if err := a.embedded.Start(ctx); err != nil {
		return model.ProxyDescriptor{}, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	descriptor, err := a.embedded.Descriptor()
	if err != nil {
		return model.ProxyDescriptor{}, err
	}
	control, err := a.embedded.ControlClient(controlOpts...)
	if err != nil {
		return model.ProxyDescriptor{}, fmt.Errorf("failed to create Tor control client: %w", err)
	}
	a.control = control
	a.logger.Info("embedded Tor daemon started",
		"socksAddr", a.embedded.SocksAddr(),
		"controlAddr", a.embedded.ControlAddr(),
	)
	return descriptor, nil
}

// controlAuth picks the control port credential: password, then cookie,
// then none.
func controlAuth(cfg *config.Config) tor.ControlAuth {
	switch {
	case cfg.Free.ControlPassword != "":
		return tor.ControlAuthFromPassword(cfg.Free.ControlPassword)
	case cfg.Free.CookiePath != "":
		return tor.ControlAuthFromCookie(cfg.Free.CookiePath)
	default:
		return tor.ControlAuthNone()
	}
}

// checkFreeTier checks that the Tor SOCKS port answers. It only warns: the
// paid tier works without Tor.
func (a *app) checkFreeTier(ctx context.Context) {
	descriptor, ok := a.factory.Descriptor(model.TierFree)
	if !ok {
		return
	}
	status := tor.CheckSOCKS(ctx, descriptor.Address(), tor.DefaultCheckTimeout)
	if status != tor.ProxyStatusOK {
		a.logger.Warn("Tor SOCKS proxy is not usable; free tier requests will fail",
			"address", descriptor.Address(), "status", status.String())
		return
	}
	a.logger.Info("Tor SOCKS proxy verified", "address", descriptor.Address())
}

// Close releases the store and stops the embedded daemon.
func (a *app) Close() {
	var errs []error
	if a.limiter != nil {
		errs = append(errs, a.limiter.Close())
	}
	if a.embedded != nil {
		a.logger.Info("stopping embedded Tor daemon")
		errs = append(errs, a.embedded.Stop())
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Error("failed to release resources", "error", err)
	}
}
