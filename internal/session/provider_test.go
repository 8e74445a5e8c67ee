package session

import (
	"errors"
	"testing"
)

// TestUsername tests the per-provider username templates.
func TestUsername(t *testing.T) {
	t.Parallel()

	creds := Credentials{Username: "acct", Password: "pw", Country: "us", Rotation: 0}

	testCases := []struct {
		name     string
		provider string
		creds    Credentials
		expected string
	}{
		{"brightdata", ProviderBrightData, creds, "acct-session-abc123"},
		{"smartproxy", ProviderSmartproxy, creds, "acct-session-abc123"},
		{"oxylabs", ProviderOxylabs, creds, "customer-acct-sessid-abc123"},
		{"iproyal", ProviderIPRoyal, creds, "acct_session-abc123_sessionTime-10"},
		{"floppydata without city", ProviderFloppyData, creds, "user-acct-type-residential-session-abc123-country-us-rotation-0"},
		{
			"floppydata with city",
			ProviderFloppyData,
			Credentials{Username: "acct", Password: "pw", Country: "de", City: "berlin", Rotation: -1},
			"user-acct-type-residential-session-abc123-country-de-city-berlin-rotation--1",
		},
		{"provider name is case insensitive", "BrightData", creds, "acct-session-abc123"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := Username(tc.provider, tc.creds, "abc123")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.expected {
				t.Errorf("Username() = %q, expected %q", got, tc.expected)
			}
		})
	}

	t.Run("unknown provider returns ErrUnknownProvider", func(t *testing.T) {
		t.Parallel()

		_, err := Username("luminati", creds, "abc123")
		if !errors.Is(err, ErrUnknownProvider) {
			t.Errorf("expected ErrUnknownProvider, got %v", err)
		}
	})
}

// TestCredentialsValidate tests credential presence checks.
func TestCredentialsValidate(t *testing.T) {
	t.Parallel()

	if err := (Credentials{Username: "u", Password: "p"}).Validate("oxylabs"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := (Credentials{Username: "u"}).Validate("oxylabs")
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
	if got := err.Error(); got != "proxy credentials not configured for oxylabs: set OXYLABS_USERNAME and OXYLABS_PASSWORD" {
		t.Errorf("unexpected message: %q", got)
	}
}

// TestIsKnownProvider tests provider name lookup.
func TestIsKnownProvider(t *testing.T) {
	t.Parallel()

	for _, p := range Providers {
		if !IsKnownProvider(p) {
			t.Errorf("expected %q to be known", p)
		}
	}
	if IsKnownProvider("tor") {
		t.Error("tor is not a paid provider")
	}
}
