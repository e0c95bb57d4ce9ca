// Package authcache provides a TTL-bounded in-memory cache of prior
// authentication decisions, keyed by the exact (username, key material) pair.
package authcache
