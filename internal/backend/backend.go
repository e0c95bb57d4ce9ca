// ABOUTME: AuthBackend contract and strategy selection for keygate
// ABOUTME: Defines the single-operation decision interface and the config-driven factory

package backend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/keygate/internal/config"
)

// Decision is a backend's answer for a single (username, material) pair.
// TTL bounds how long the coordinator may answer repeated attempts for the
// same pair from cache without re-consulting the backend.
type Decision struct {
	Granted bool
	TTL     time.Duration
}

// Backend is the pluggable authentication strategy. Implementations may
// perform blocking I/O; any deadline must be enforced inside the backend
// (the coordinator imposes none). A returned error means the backend could
// not reach a decision; the coordinator treats that as deny and never
// caches it.
type Backend interface {
	// AuthRequest decides whether the given username may authenticate with
	// the given public key material (SSH wire encoding).
	AuthRequest(ctx context.Context, username, material []byte) (Decision, error)

	// Name identifies the strategy for logging.
	Name() string
}

// New selects and constructs the backend named by the configuration.
// An empty or "deny" type yields the deny-all default.
func New(cfg config.BackendConfig, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "backend")

	switch cfg.Type {
	case "", config.BackendDeny:
		return NewDenyAll(cfg.DefaultTTL), nil
	case config.BackendStatic:
		return NewStatic(cfg.Manifest, cfg.DefaultTTL)
	case config.BackendSQLite:
		return NewSQLite(cfg.Database, cfg.DefaultTTL, logger)
	case config.BackendHTTP:
		return NewHTTP(cfg.URL, cfg.Secret, cfg.Timeout, cfg.DefaultTTL, logger)
	default:
		return nil, fmt.Errorf("unknown backend type %q", cfg.Type)
	}
}

// Fingerprint computes the SHA256 fingerprint of public key material in SSH
// wire encoding. Returns lowercase hex without colons.
func Fingerprint(material []byte) string {
	hash := sha256.Sum256(material)
	return hex.EncodeToString(hash[:])
}
