package dialer

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/nao1215/exitswitch/internal/model"
	"github.com/nao1215/exitswitch/internal/session"
)

func TestAmbientConfigureOnce(t *testing.T) {
	t.Parallel()

	ambient := &Ambient{}
	if _, err := ambient.Tier(); !errors.Is(err, ErrAmbientNotConfigured) {
		t.Errorf("Tier() before Configure error = %v", err)
	}
	if err := ambient.Configure(NewFactory(), model.TierFree); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if err := ambient.Configure(NewFactory(), model.TierPaid); !errors.Is(err, ErrAmbientConfigured) {
		t.Errorf("second Configure() error = %v, want ErrAmbientConfigured", err)
	}
	tier, err := ambient.Tier()
	if err != nil || tier != model.TierFree {
		t.Errorf("Tier() = %v, %v; want free", tier, err)
	}
}

func TestAmbientRoundTripperFollowsRotation(t *testing.T) {
	t.Parallel()

	proxySrv := newFakeHTTPProxy(t)
	rotator := session.NewRotator(session.WithGenerator(sequence("first", "second")))
	factory := paidFactory(t, proxySrv.URL, rotator)

	ambient := &Ambient{}
	if err := ambient.Configure(factory, model.TierPaid); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	client := ambient.Client()

	if got := get(t, client, "http://egress.invalid/"); got != "acct-session-first|egress.invalid" {
		t.Errorf("before rotation proxy saw %q", got)
	}
	if _, _, err := rotator.Rotate(context.Background()); err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}
	// The same long-lived client must pick up the new token.
	if got := get(t, client, "http://egress.invalid/"); got != "acct-session-second|egress.invalid" {
		t.Errorf("after rotation proxy saw %q", got)
	}
}

func TestAmbientNotConfigured(t *testing.T) {
	t.Parallel()

	ambient := &Ambient{}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://example.invalid/", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ambient.RoundTripper().RoundTrip(req); !errors.Is(err, ErrAmbientNotConfigured) {
		t.Errorf("RoundTrip() error = %v, want ErrAmbientNotConfigured", err)
	}
	if err := ambient.InstallDefault(); !errors.Is(err, ErrAmbientNotConfigured) {
		t.Errorf("InstallDefault() error = %v, want ErrAmbientNotConfigured", err)
	}
}

// TestAmbientInstallDefault swaps the process-wide transport, so it does not
// run in parallel and restores the original afterwards.
func TestAmbientInstallDefault(t *testing.T) {
	original := http.DefaultTransport
	t.Cleanup(func() { http.DefaultTransport = original })

	proxySrv := newFakeHTTPProxy(t)
	rotator := session.NewRotator(session.WithGenerator(sequence("ambient")))
	ambient := &Ambient{}
	if err := ambient.Configure(paidFactory(t, proxySrv.URL, rotator), model.TierPaid); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if err := ambient.InstallDefault(); err != nil {
		t.Fatalf("InstallDefault() error = %v", err)
	}
	if err := ambient.InstallDefault(); !errors.Is(err, ErrDefaultInstalled) {
		t.Errorf("second InstallDefault() error = %v, want ErrDefaultInstalled", err)
	}

	// A bare http.Client uses http.DefaultTransport and must be proxied.
	if got := get(t, &http.Client{}, "http://egress.invalid/"); got != "acct-session-ambient|egress.invalid" {
		t.Errorf("default client proxy saw %q", got)
	}
}
