// ABOUTME: Static backend backed by a TOML manifest of authorized keys per user
// ABOUTME: Keys are authorized_keys-format strings compared by marshaled wire bytes

package backend

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/crypto/ssh"
)

// manifest is the on-disk TOML shape of the static key list.
type manifest struct {
	DefaultTTLRaw string         `toml:"default_ttl"`
	Users         []manifestUser `toml:"user"`
}

type manifestUser struct {
	Name   string   `toml:"name"`
	Keys   []string `toml:"keys"` // authorized_keys format, one key per entry
	TTLRaw string   `toml:"ttl"`  // optional per-user override
}

// staticUser is a parsed manifest entry.
type staticUser struct {
	keys [][]byte // marshaled wire encodings
	ttl  time.Duration
}

// Static authorizes against a fixed key list loaded once at construction.
// A key matches iff its SSH wire encoding equals the presented material
// byte-for-byte.
type Static struct {
	users map[string]staticUser
	ttl   time.Duration
}

// NewStatic loads the TOML manifest at path. A malformed manifest or an
// unparsable key is a startup error, not a per-request one.
func NewStatic(path string, defaultTTL time.Duration) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m manifest
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	ttl := defaultTTL
	if m.DefaultTTLRaw != "" {
		ttl, err = time.ParseDuration(m.DefaultTTLRaw)
		if err != nil {
			return nil, fmt.Errorf("parsing manifest default_ttl %q: %w", m.DefaultTTLRaw, err)
		}
	}

	s := &Static{
		users: make(map[string]staticUser, len(m.Users)),
		ttl:   ttl,
	}

	for _, u := range m.Users {
		if u.Name == "" {
			return nil, fmt.Errorf("manifest user entry with empty name")
		}

		userTTL := ttl
		if u.TTLRaw != "" {
			userTTL, err = time.ParseDuration(u.TTLRaw)
			if err != nil {
				return nil, fmt.Errorf("parsing ttl for user %q: %w", u.Name, err)
			}
		}

		entry := staticUser{ttl: userTTL}
		for _, keyStr := range u.Keys {
			pubkey, _, _, _, err := ssh.ParseAuthorizedKey([]byte(keyStr))
			if err != nil {
				return nil, fmt.Errorf("parsing key for user %q: %w", u.Name, err)
			}
			entry.keys = append(entry.keys, pubkey.Marshal())
		}
		s.users[u.Name] = entry
	}

	return s, nil
}

// AuthRequest grants iff the manifest lists the presented key for the user.
func (s *Static) AuthRequest(_ context.Context, username, material []byte) (Decision, error) {
	entry, ok := s.users[string(username)]
	if !ok {
		return Decision{Granted: false, TTL: s.ttl}, nil
	}

	for _, key := range entry.keys {
		if bytes.Equal(key, material) {
			return Decision{Granted: true, TTL: entry.ttl}, nil
		}
	}
	return Decision{Granted: false, TTL: entry.ttl}, nil
}

// Name identifies the strategy.
func (s *Static) Name() string { return "static" }
