package fetch

import "errors"

var (
	// ErrUpstreamBlocked is returned when the target answered with a status
	// that indicates the egress address is blocked or throttled.
	ErrUpstreamBlocked = errors.New("upstream blocked the current egress identity")

	// ErrInvalidURL is returned for URLs that are not absolute http(s) URLs.
	ErrInvalidURL = errors.New("invalid target URL: must be an absolute http or https URL")
)
