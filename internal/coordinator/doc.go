// Package coordinator implements the authentication coordinator: a single
// serialized loop that answers SSH public-key authentication attempts from a
// TTL-bounded decision cache, delegating cache misses to the configured
// backend exactly once per miss.
//
// # Serialization model
//
// All authenticate and reset requests flow through one mailbox channel read
// by one goroutine. That goroutine is the only code that ever touches the
// cache or invokes the backend, which gives the core guarantees for free:
// strict arrival-order processing, at most one backend call in flight, and
// natural deduplication of concurrent identical attempts (the second arrival
// becomes a cache hit). A slow backend therefore stalls all pending
// attempts; backends are expected to bound their own latency.
//
// # Failure policy
//
// Host key resolution failures abort construction. Per-request backend
// errors answer deny, are never cached, and never stop the loop. From the
// SSH client's perspective every internal fault is indistinguishable from
// access denied.
package coordinator
