// Package tor provides the free-tier plumbing for exitswitch.
//
// It contains three pieces:
//   - ControlClient speaks the line-based Tor control protocol and issues
//     SIGNAL NEWNYM to request a new exit identity. Every operation opens its
//     own connection and closes it before returning, including on
//     cancellation.
//   - CheckSOCKS performs a SOCKS5 handshake against the data-plane port so
//     health endpoints can tell "Tor is down" apart from "Tor is slow".
//   - EmbeddedTor launches a private Tor daemon through tornago for
//     deployments without an external tor-proxy container.
//
// The package does not build HTTP clients; that is the dialer package's job.
package tor
