// Package backend defines the pluggable authentication strategy contract
// used by the coordinator and its concrete implementations.
//
// # Contract
//
// A backend answers one question: may this username authenticate with this
// public key material? The answer carries a TTL bounding how long the
// coordinator may serve the same answer from cache. Backends own their own
// deadlines; the coordinator never imposes one and never retries.
//
// # Strategies
//
// Selected via backend.type in the configuration:
//
//   - "deny": refuses everything (the default — an unconfigured keygate
//     must never silently accept connections)
//   - "static": fixed key list from a TOML manifest, loaded at startup
//   - "sqlite": persistent authorized-key table, manageable at runtime via
//     the keygate keys subcommand
//   - "http": remote identity provider speaking JSON over HTTP, requests
//     signed with a shared-secret bearer token
package backend
