// ABOUTME: TTL-bounded cache of authentication decisions keyed by (username, key material).
// ABOUTME: Lazy expiry at lookup time; owned exclusively by the coordinator's serialized loop.

package authcache

import (
	"strconv"
	"time"
)

// Request identifies an authentication attempt. Two requests address the
// same cache entry iff both fields are byte-for-byte equal. No normalization
// is performed; callers must present material in a stable encoding.
type Request struct {
	Username []byte
	Material []byte
}

// key builds the internal map key. The username is length-prefixed so that
// distinct (username, material) pairs can never produce the same key.
func (r Request) key() string {
	return strconv.Itoa(len(r.Username)) + ":" + string(r.Username) + string(r.Material)
}

// Response is a cached authentication decision. It is immutable once
// inserted; liveness is determined purely by InsertedAt+TTL at lookup time.
type Response struct {
	Username   []byte
	Material   []byte
	Granted    bool
	TTL        time.Duration
	InsertedAt time.Time
}

// expiredAt reports whether the response is stale at the given instant.
func (r Response) expiredAt(now time.Time) bool {
	return !now.Before(r.InsertedAt.Add(r.TTL))
}

// Cache maps authentication requests to prior decisions. It performs no
// locking: it is owned exclusively by the coordinator, which serializes all
// access. It must not be shared across goroutines.
type Cache struct {
	entries map[string]Response
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]Response)}
}

// Lookup returns the stored response for the exact (username, material) pair
// if one exists and is unexpired. An expired entry reads as absent and is
// deleted on the way out.
func (c *Cache) Lookup(req Request) (Response, bool) {
	k := req.key()
	resp, ok := c.entries[k]
	if !ok {
		return Response{}, false
	}
	if resp.expiredAt(time.Now()) {
		delete(c.entries, k)
		return Response{}, false
	}
	return resp, true
}

// Insert stores the response under its own (username, material) pair,
// overwriting any prior entry. Other entries are unaffected. The insertion
// timestamp is set here if the caller left it zero.
func (c *Cache) Insert(resp Response) {
	if resp.InsertedAt.IsZero() {
		resp.InsertedAt = time.Now()
	}
	k := Request{Username: resp.Username, Material: resp.Material}.key()
	c.entries[k] = resp
}

// Clear discards all entries regardless of TTL state.
func (c *Cache) Clear() {
	c.entries = make(map[string]Response)
}

// PurgeExpired removes entries whose TTL has elapsed and returns how many
// were dropped. Correctness never depends on it (Lookup already treats
// expired entries as absent); it only bounds memory held by stale entries
// that are never looked up again.
func (c *Cache) PurgeExpired() int {
	now := time.Now()
	purged := 0
	for k, resp := range c.entries {
		if resp.expiredAt(now) {
			delete(c.entries, k)
			purged++
		}
	}
	return purged
}

// Len returns the number of stored entries, live or stale.
func (c *Cache) Len() int {
	return len(c.entries)
}
