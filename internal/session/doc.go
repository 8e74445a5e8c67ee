// Package session manages the paid tier's rotating session identity.
//
// Residential proxy gateways map a session identifier embedded in the proxy
// username onto a sticky exit IP. Issuing a new identifier is therefore all
// it takes to change the exit address: there is no signal to send. The
// Rotator holds the current identifier and swaps it atomically; requests
// already in flight keep using the identifier they started with.
package session
