// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// # Security Features
//
// The SecureHandler sanitizes:
//   - HTTP headers (Authorization, Proxy-Authorization, Cookie)
//   - Tor control passwords, hashed passwords and hex auth cookies
//   - Paid provider passwords and usernames, which embed the session token
//   - Session tokens logged under any key containing "session"
//   - The userinfo part of proxy URLs, in values, error strings and messages
//
// Even in verbose mode, sensitive values are masked to prevent accidental
// exposure of secrets in logs that may be shared or stored.
//
// # Usage
//
//	logger := log.NewServerLogger(os.Stderr, verbose, jsonFormat)
//	logger.Info("identity rotated",
//	    "tier", "paid",
//	    "new_session", token,          // sanitized
//	    "proxy", "http://u:p@gate:80", // becomes http://***REDACTED***@gate:80
//	)
//
// The returned loggers can be passed to tornago, which accepts *slog.Logger.
package log
