// Package dialer builds HTTP clients that route through a tier's proxy.
//
// Factory creates a fresh client per call so a paid client always carries
// the session token current at construction time. Ambient wraps a Factory
// as a process-wide transport for code that only knows about
// http.DefaultClient.
package dialer
