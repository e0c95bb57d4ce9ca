// ABOUTME: Deny-all backend, the default strategy when none is configured
// ABOUTME: Refuses every attempt with a short TTL so denials are still cacheable

package backend

import (
	"context"
	"time"
)

// DenyAll refuses every authentication attempt. It is the default strategy:
// an unconfigured keygate must never silently accept connections.
type DenyAll struct {
	ttl time.Duration
}

// NewDenyAll creates a deny-all backend whose denials carry the given TTL.
func NewDenyAll(ttl time.Duration) *DenyAll {
	return &DenyAll{ttl: ttl}
}

// AuthRequest always denies.
func (d *DenyAll) AuthRequest(_ context.Context, _, _ []byte) (Decision, error) {
	return Decision{Granted: false, TTL: d.ttl}, nil
}

// Name identifies the strategy.
func (d *DenyAll) Name() string { return "deny" }
