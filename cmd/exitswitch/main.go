// Package main provides the entry point for the exitswitch CLI.
//
// exitswitch routes outbound HTTP through either a free Tor circuit or a paid
// rotating residential proxy, and rotates the exit identity on demand while
// respecting each tier's rate limit.
//
// Usage:
//
//	exitswitch serve
//	exitswitch rotate [--free]
//	exitswitch test [--free] [--json|--markdown]
//
// See --help for all available options.
package main

func main() {
	Execute()
}
