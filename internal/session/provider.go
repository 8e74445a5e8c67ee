package session

import (
	"fmt"
	"strconv"
	"strings"
)

// Supported residential proxy providers.
const (
	ProviderBrightData = "brightdata"
	ProviderOxylabs    = "oxylabs"
	ProviderSmartproxy = "smartproxy"
	ProviderIPRoyal    = "iproyal"
	ProviderFloppyData = "floppydata"
)

// Providers lists every supported provider name.
var Providers = []string{
	ProviderBrightData,
	ProviderOxylabs,
	ProviderSmartproxy,
	ProviderIPRoyal,
	ProviderFloppyData,
}

// iproyalSessionMinutes is the sticky session lifetime requested from IPRoyal.
const iproyalSessionMinutes = 10

// Credentials are the account credentials of a paid provider.
type Credentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Country, City and Rotation are FloppyData targeting options. They are
	// passed through verbatim. Rotation 0 means sticky (controlled by the
	// session id), -1 per request, 1-60 minutes.
	Country  string `yaml:"country,omitempty"`
	City     string `yaml:"city,omitempty"`
	Rotation int    `yaml:"rotation,omitempty"`
}

// Validate checks that both username and password are set.
func (c Credentials) Validate(provider string) error {
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("%w for %s: set %s_USERNAME and %s_PASSWORD",
			ErrMissingCredentials, provider, strings.ToUpper(provider), strings.ToUpper(provider))
	}
	return nil
}

// IsKnownProvider reports whether provider has a username template.
func IsKnownProvider(provider string) bool {
	for _, p := range Providers {
		if p == strings.ToLower(provider) {
			return true
		}
	}
	return false
}

// Username builds the gateway username that pins token to an exit IP.
func Username(provider string, creds Credentials, token string) (string, error) {
	user := creds.Username
	switch strings.ToLower(provider) {
	case ProviderBrightData, ProviderSmartproxy:
		return user + "-session-" + token, nil
	case ProviderOxylabs:
		return "customer-" + user + "-sessid-" + token, nil
	case ProviderIPRoyal:
		return user + "_session-" + token + "_sessionTime-" + strconv.Itoa(iproyalSessionMinutes), nil
	case ProviderFloppyData:
		var b strings.Builder
		b.WriteString("user-" + user + "-type-residential-session-" + token + "-country-" + creds.Country)
		if creds.City != "" {
			b.WriteString("-city-" + creds.City)
		}
		b.WriteString("-rotation-" + strconv.Itoa(creds.Rotation))
		return b.String(), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
}
