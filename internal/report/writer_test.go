package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/exitswitch/internal/cooldown"
	"github.com/nao1215/exitswitch/internal/model"
	"github.com/nao1215/exitswitch/internal/rotation"
)

func paidResult() *rotation.Result {
	return &rotation.Result{
		Tier:       model.TierPaid,
		State:      rotation.StateDone,
		Provider:   "brightdata",
		OldSession: "aaaaaaaaaaaaaaaa",
		NewSession: "bbbbbbbbbbbbbbbb",
		NewIP:      netip.MustParseAddr("203.0.113.7"),
		Verified:   true,
		Message:    "New session created.",
		Note:       "Old sessions stay valid.",
		Duration:   1500 * time.Millisecond,
	}
}

func freeTestResult() *rotation.TestResult {
	return &rotation.TestResult{
		Tier:         model.TierFree,
		Provider:     "tor",
		DirectIP:     netip.MustParseAddr("198.51.100.1"),
		ProxiedIP:    netip.MustParseAddr("185.220.101.4"),
		ProxyWorking: true,
	}
}

func TestNewRotationView(t *testing.T) {
	t.Parallel()

	t.Run("verified paid rotation is success", func(t *testing.T) {
		t.Parallel()

		v := NewRotationView(paidResult(), nil)
		if v.Status != StatusSuccess {
			t.Errorf("Status = %q, want %q", v.Status, StatusSuccess)
		}
		if v.NewSessionID == nil || *v.NewSessionID != "bbbbbbbbbbbbbbbb" {
			t.Errorf("NewSessionID = %v", v.NewSessionID)
		}
		if v.NewIP == nil || *v.NewIP != "203.0.113.7" {
			t.Errorf("NewIP = %v", v.NewIP)
		}
		if v.DurationMS != 1500 {
			t.Errorf("DurationMS = %d, want 1500", v.DurationMS)
		}
	})

	t.Run("unverified rotation is partial and hides the IP", func(t *testing.T) {
		t.Parallel()

		r := paidResult()
		r.Verified = false
		r.VerificationErr = fmt.Errorf("%w: timeout", rotation.ErrVerificationInconclusive)

		v := NewRotationView(r, nil)
		if v.Status != StatusPartial {
			t.Errorf("Status = %q, want %q", v.Status, StatusPartial)
		}
		if v.NewIP != nil {
			t.Errorf("NewIP = %q, want nil", *v.NewIP)
		}
		if !strings.Contains(v.VerificationError, "timeout") {
			t.Errorf("VerificationError = %q", v.VerificationError)
		}
	})

	t.Run("cooldown carries retry seconds and no error text", func(t *testing.T) {
		t.Parallel()

		r := &rotation.Result{
			Tier:      model.TierFree,
			State:     rotation.StateCooldownBlocked,
			Provider:  "tor",
			Remaining: 6200 * time.Millisecond,
		}
		err := &cooldown.ActiveError{Tier: model.TierFree, Remaining: r.Remaining}

		v := NewRotationView(r, err)
		if v.Status != StatusCooldown {
			t.Errorf("Status = %q, want %q", v.Status, StatusCooldown)
		}
		if v.RetryAfterSeconds != 7 {
			t.Errorf("RetryAfterSeconds = %d, want 7", v.RetryAfterSeconds)
		}
		if v.Error != "" {
			t.Errorf("Error = %q, want empty", v.Error)
		}
		if v.OldSessionID != nil || v.NewSessionID != nil {
			t.Error("free tier view should have null sessions")
		}
	})

	t.Run("failure carries the error", func(t *testing.T) {
		t.Parallel()

		r := &rotation.Result{Tier: model.TierFree, State: rotation.StateFailed, Provider: "tor"}
		v := NewRotationView(r, fmt.Errorf("%w: refused", rotation.ErrRotationIO))
		if v.Status != StatusError {
			t.Errorf("Status = %q, want %q", v.Status, StatusError)
		}
		if !strings.Contains(v.Error, "refused") {
			t.Errorf("Error = %q", v.Error)
		}
	})

	t.Run("nil result is an error view", func(t *testing.T) {
		t.Parallel()

		v := NewRotationView(nil, errors.New("boom"))
		if v.Status != StatusError {
			t.Errorf("Status = %q, want %q", v.Status, StatusError)
		}
	})
}

func TestNewTestView(t *testing.T) {
	t.Parallel()

	v := NewTestView(&rotation.TestResult{
		Tier:     model.TierPaid,
		Provider: "oxylabs",
		DirectIP: netip.MustParseAddr("198.51.100.1"),
		Err:      errors.New("proxied lookup: timeout"),
	})
	if v.ProxiedIP != nil {
		t.Errorf("ProxiedIP = %q, want nil", *v.ProxiedIP)
	}
	if v.SessionID != nil {
		t.Errorf("SessionID = %q, want nil", *v.SessionID)
	}
	if v.ProxyWorking {
		t.Error("ProxyWorking should be false")
	}
	if v.Error == "" {
		t.Error("Error should be set")
	}
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("rotation body keeps null fields", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		r := &rotation.Result{Tier: model.TierFree, State: rotation.StateDone, Provider: "tor"}
		if _, err := NewJSONWriter(&buf).WriteRotation(r, nil); err != nil {
			t.Fatalf("WriteRotation() error = %v", err)
		}

		var got map[string]any
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		for _, key := range []string{"old_session_id", "new_session_id", "new_ip"} {
			value, ok := got[key]
			if !ok {
				t.Errorf("missing key %q", key)
			}
			if value != nil {
				t.Errorf("%s = %v, want null", key, value)
			}
		}
		if got["status"] != StatusPartial {
			t.Errorf("status = %v, want %q", got["status"], StatusPartial)
		}
	})

	t.Run("test body", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).WriteTest(freeTestResult()); err != nil {
			t.Fatalf("WriteTest() error = %v", err)
		}

		var got TestView
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if !got.ProxyWorking {
			t.Error("proxy_working should be true")
		}
		if got.ProxiedIP == nil || *got.ProxiedIP != "185.220.101.4" {
			t.Errorf("proxied_ip = %v", got.ProxiedIP)
		}
	})

	t.Run("pretty print indents", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).WriteTest(freeTestResult()); err != nil {
			t.Fatalf("WriteTest() error = %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"provider\"") {
			t.Errorf("expected indented output, got %q", buf.String())
		}
	})

	t.Run("custom indent", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithIndent(">", "\t")).WriteTest(freeTestResult()); err != nil {
			t.Fatalf("WriteTest() error = %v", err)
		}
		if !strings.Contains(buf.String(), ">\t\"provider\"") {
			t.Errorf("expected custom indent, got %q", buf.String())
		}
	})
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("paid rotation", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).WriteRotation(paidResult(), nil); err != nil {
			t.Fatalf("WriteRotation() error = %v", err)
		}
		out := buf.String()
		for _, want := range []string{"IDENTITY ROTATION", "Bright Data", "[OK] success", "203.0.113.7", "bbbbbbbbbbbbbbbb", "Note: Old sessions stay valid."} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
		if strings.Contains(out, "Duration") {
			t.Error("duration should only be shown in verbose mode")
		}
	})

	t.Run("verbose adds duration", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).WriteRotation(paidResult(), nil); err != nil {
			t.Fatalf("WriteRotation() error = %v", err)
		}
		if !strings.Contains(buf.String(), "1500ms") {
			t.Errorf("expected duration in output:\n%s", buf.String())
		}
	})

	t.Run("cooldown", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		r := &rotation.Result{Tier: model.TierFree, State: rotation.StateCooldownBlocked, Provider: "tor", Remaining: 3 * time.Second}
		if _, err := NewSimpleWriter(&buf).WriteRotation(r, cooldown.ErrCooldownActive); err != nil {
			t.Fatalf("WriteRotation() error = %v", err)
		}
		if !strings.Contains(buf.String(), "Retry after:") || !strings.Contains(buf.String(), "3s") {
			t.Errorf("expected retry hint:\n%s", buf.String())
		}
	})

	t.Run("test masks the session unless verbose", func(t *testing.T) {
		t.Parallel()

		r := &rotation.TestResult{Tier: model.TierPaid, Provider: "smartproxy", SessionID: "abcdef0123456789"}

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).WriteTest(r); err != nil {
			t.Fatalf("WriteTest() error = %v", err)
		}
		if strings.Contains(buf.String(), "abcdef0123456789") {
			t.Error("session token should be masked")
		}
		if !strings.Contains(buf.String(), "Smartproxy") || !strings.Contains(buf.String(), "[!!] no") {
			t.Errorf("unexpected output:\n%s", buf.String())
		}

		buf.Reset()
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).WriteTest(r); err != nil {
			t.Fatalf("WriteTest() error = %v", err)
		}
		if !strings.Contains(buf.String(), "abcdef0123456789") {
			t.Error("verbose output should show the session token")
		}
	})
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		result *rotation.Result
		err    error
		want   []string
	}{
		{
			name:   "success",
			result: paidResult(),
			want:   []string{"# Identity Rotation", "Bright Data", "`203.0.113.7`", "[!TIP]"},
		},
		{
			name:   "cooldown",
			result: &rotation.Result{Tier: model.TierFree, State: rotation.StateCooldownBlocked, Provider: "tor", Remaining: 2 * time.Second},
			err:    cooldown.ErrCooldownActive,
			want:   []string{"[!WARNING]", "Retry in 2 seconds"},
		},
		{
			name:   "failure",
			result: &rotation.Result{Tier: model.TierFree, State: rotation.StateFailed, Provider: "tor"},
			err:    rotation.ErrAuthenticationFailed,
			want:   []string{"[!CAUTION]", "Rotation failed"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			if _, err := NewMarkdownWriter(&buf).WriteRotation(tc.result, tc.err); err != nil {
				t.Fatalf("WriteRotation() error = %v", err)
			}
			for _, want := range tc.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output missing %q:\n%s", want, buf.String())
				}
			}
		})
	}

	t.Run("test result", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteTest(freeTestResult()); err != nil {
			t.Fatalf("WriteTest() error = %v", err)
		}
		for _, want := range []string{"# Proxy Test", "Free (Tor)", "`185.220.101.4`"} {
			if !strings.Contains(buf.String(), want) {
				t.Errorf("output missing %q:\n%s", want, buf.String())
			}
		}
	})
}

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var text, js bytes.Buffer
	m := NewMultiWriter(NewSimpleWriter(&text), NewJSONWriter(&js))

	n, err := m.WriteTest(freeTestResult())
	if err != nil {
		t.Fatalf("WriteTest() error = %v", err)
	}
	if n != text.Len()+js.Len() {
		t.Errorf("n = %d, want %d", n, text.Len()+js.Len())
	}
	if text.Len() == 0 || js.Len() == 0 {
		t.Error("both writers should receive output")
	}

	if _, err := m.WriteRotation(paidResult(), nil); err != nil {
		t.Fatalf("WriteRotation() error = %v", err)
	}
}

func TestProviderDisplayName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"tor", "Tor"},
		{"brightdata", "Bright Data"},
		{"oxylabs", "Oxylabs"},
		{"smartproxy", "Smartproxy"},
		{"IPRoyal", "IPRoyal"},
		{"floppydata", "FloppyData"},
		{"", "-"},
	}
	for _, tc := range tests {
		if got := ProviderDisplayName(tc.in); got != tc.want {
			t.Errorf("ProviderDisplayName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMaskToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"abc", "***"},
		{"abcdefgh", "abcd****"},
	}
	for _, tc := range tests {
		if got := MaskToken(tc.in); got != tc.want {
			t.Errorf("MaskToken(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want int
	}{
		{0, 1},
		{0.2, 1},
		{1, 1},
		{6.01, 7},
	}
	for _, tc := range tests {
		if got := RetryAfterSeconds(tc.in); got != tc.want {
			t.Errorf("RetryAfterSeconds(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
