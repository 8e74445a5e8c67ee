// Package fetch retrieves pages through a tier's proxy and reports when the
// target blocks the current egress identity. It is the reference consumer of
// the rotation API: on a block it can rotate once and retry.
package fetch
