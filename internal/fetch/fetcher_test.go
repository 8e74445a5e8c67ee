package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/nao1215/exitswitch/internal/cooldown"
	"github.com/nao1215/exitswitch/internal/model"
	"github.com/nao1215/exitswitch/internal/rotation"
)

type directClients struct {
	built atomic.Int32
}

func (c *directClients) ClientFor(context.Context, model.Tier) (*http.Client, error) {
	c.built.Add(1)
	return &http.Client{}, nil
}

type fakeRotator struct {
	calls atomic.Int32
	err   error
	// onRotate runs after a successful rotation.
	onRotate func()
}

func (r *fakeRotator) Rotate(_ context.Context, tier model.Tier, _ ...rotation.RotateOption) (*rotation.Result, error) {
	r.calls.Add(1)
	if r.err != nil {
		return &rotation.Result{Tier: tier, State: rotation.StateCooldownBlocked}, r.err
	}
	if r.onRotate != nil {
		r.onRotate()
	}
	return &rotation.Result{Tier: tier, State: rotation.StateDone}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// blockingServer answers 403 until unblocked is set.
func blockingServer(t *testing.T, unblocked *atomic.Bool) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("request sent without User-Agent")
		}
		if !unblocked.Load() {
			http.Error(w, "access denied", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html>hello</html>")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	var unblocked atomic.Bool
	unblocked.Store(true)
	srv := blockingServer(t, &unblocked)

	f := NewFetcher(&directClients{}, WithLogger(quietLogger()))
	resp, err := f.Fetch(context.Background(), Request{URL: srv.URL + "/page", Tier: model.TierFree})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if resp.StatusCode != http.StatusOK || string(resp.Body) != "<html>hello</html>" {
		t.Errorf("response = %d %q", resp.StatusCode, resp.Body)
	}
	if resp.Attempts != 1 || resp.Rotation != nil {
		t.Errorf("Attempts = %d, Rotation = %v", resp.Attempts, resp.Rotation)
	}
	if resp.ContentType != "text/html" {
		t.Errorf("ContentType = %q", resp.ContentType)
	}
}

func TestFetchBlockedWithoutRotation(t *testing.T) {
	t.Parallel()

	var unblocked atomic.Bool
	srv := blockingServer(t, &unblocked)
	rotator := &fakeRotator{}

	f := NewFetcher(&directClients{}, WithRotator(rotator), WithLogger(quietLogger()))
	resp, err := f.Fetch(context.Background(), Request{URL: srv.URL, Tier: model.TierFree})
	if !errors.Is(err, ErrUpstreamBlocked) {
		t.Fatalf("Fetch() error = %v, want ErrUpstreamBlocked", err)
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("blocked response should be returned, got %+v", resp)
	}
	if rotator.calls.Load() != 0 {
		t.Error("rotation must only happen when requested")
	}
}

func TestFetchRotatesAndRetriesOnce(t *testing.T) {
	t.Parallel()

	var unblocked atomic.Bool
	srv := blockingServer(t, &unblocked)
	rotator := &fakeRotator{onRotate: func() { unblocked.Store(true) }}
	clients := &directClients{}

	f := NewFetcher(clients, WithRotator(rotator), WithLogger(quietLogger()))
	resp, err := f.Fetch(context.Background(), Request{URL: srv.URL, Tier: model.TierPaid, RotateOnBlock: true})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if resp.Attempts != 2 || resp.StatusCode != http.StatusOK {
		t.Errorf("Attempts = %d, StatusCode = %d", resp.Attempts, resp.StatusCode)
	}
	if resp.Rotation == nil || resp.Rotation.State != rotation.StateDone {
		t.Errorf("Rotation = %+v", resp.Rotation)
	}
	if rotator.calls.Load() != 1 {
		t.Errorf("rotations = %d, want 1", rotator.calls.Load())
	}
	// The retry must use a client built after the rotation.
	if clients.built.Load() != 2 {
		t.Errorf("clients built = %d, want 2", clients.built.Load())
	}
}

func TestFetchStillBlockedAfterRotation(t *testing.T) {
	t.Parallel()

	var unblocked atomic.Bool
	srv := blockingServer(t, &unblocked)
	rotator := &fakeRotator{}

	f := NewFetcher(&directClients{}, WithRotator(rotator), WithLogger(quietLogger()))
	resp, err := f.Fetch(context.Background(), Request{URL: srv.URL, Tier: model.TierPaid, RotateOnBlock: true})
	if !errors.Is(err, ErrUpstreamBlocked) {
		t.Fatalf("Fetch() error = %v, want ErrUpstreamBlocked", err)
	}
	if resp.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2 (no further retries)", resp.Attempts)
	}
	if rotator.calls.Load() != 1 {
		t.Errorf("rotations = %d, want 1", rotator.calls.Load())
	}
}

func TestFetchRotationBlockedByCooldown(t *testing.T) {
	t.Parallel()

	var unblocked atomic.Bool
	srv := blockingServer(t, &unblocked)
	rotator := &fakeRotator{err: &cooldown.ActiveError{Tier: model.TierFree, Remaining: 5}}

	f := NewFetcher(&directClients{}, WithRotator(rotator), WithLogger(quietLogger()))
	resp, err := f.Fetch(context.Background(), Request{URL: srv.URL, Tier: model.TierFree, RotateOnBlock: true})
	if !errors.Is(err, ErrUpstreamBlocked) {
		t.Errorf("Fetch() error = %v, want ErrUpstreamBlocked", err)
	}
	if !errors.Is(err, cooldown.ErrCooldownActive) {
		t.Errorf("Fetch() error = %v, want the cooldown cause kept", err)
	}
	if resp.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", resp.Attempts)
	}
}

func TestFetchTruncatesBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, strings.Repeat("a", 100))
	}))
	defer srv.Close()

	f := NewFetcher(&directClients{}, WithMaxBodySize(10), WithLogger(quietLogger()))
	resp, err := f.Fetch(context.Background(), Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(resp.Body) != 10 || !resp.Truncated {
		t.Errorf("len(Body) = %d, Truncated = %v", len(resp.Body), resp.Truncated)
	}
}

func TestFetchInvalidURL(t *testing.T) {
	t.Parallel()

	f := NewFetcher(&directClients{}, WithLogger(quietLogger()))
	for _, raw := range []string{"", "ftp://example.com", "/relative", "http://"} {
		if _, err := f.Fetch(context.Background(), Request{URL: raw}); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("Fetch(%q) error = %v, want ErrInvalidURL", raw, err)
		}
	}
}

func TestIsBlocked(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusOK, false},
		{http.StatusForbidden, true},
		{http.StatusTooManyRequests, true},
		{http.StatusNotFound, false},
		{http.StatusBadGateway, false},
	}
	for _, tt := range tests {
		if got := IsBlocked(tt.status); got != tt.want {
			t.Errorf("IsBlocked(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
