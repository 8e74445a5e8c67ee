// Package server exposes identity rotation over HTTP.
//
// Routes:
//
//	POST /proxy/new-identity?isFree=   rotate the tier's exit identity
//	GET  /proxy/test?isFree=           compare direct and proxied egress
//	GET  /proxy/status                 per-tier provider, cooldown and session
//	GET  /fetch?url=&isFree=           fetch a page through the tier
//	GET  /tor/test                     legacy free-tier test
//	POST /tor/new-identity             legacy free-tier rotation
//	GET  /health                       liveness
//
// Trailing slashes are ignored. When an API token is configured every route
// except /health requires it as a bearer token.
package server
