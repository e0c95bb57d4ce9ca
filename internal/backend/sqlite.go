// ABOUTME: SQLite backend storing authorized keys per user using modernc.org/sqlite
// ABOUTME: Also exposes key management operations used by the keygate keys subcommand

package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrKeyNotFound is returned when a requested authorized key does not exist.
var ErrKeyNotFound = errors.New("authorized key not found")

// AuthorizedKey is one row of the sqlite backend's key table.
type AuthorizedKey struct {
	ID          string
	Username    string
	Fingerprint string
	PublicKey   string // authorized_keys format for display
	Comment     string
	CreatedAt   time.Time
}

// SQLite authorizes against a persistent table of (username, fingerprint)
// pairs. Lookups compare the SHA256 fingerprint of the presented material.
type SQLite struct {
	db     *sql.DB
	ttl    time.Duration
	logger *slog.Logger
}

// NewSQLite opens (or creates) the database at the given path. The schema is
// created automatically; parent directories are created if needed.
func NewSQLite(path string, ttl time.Duration, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLite{
		db:     db,
		ttl:    ttl,
		logger: logger.With("backend", "sqlite"),
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	s.logger.Info("sqlite backend initialized", "path", path)
	return s, nil
}

// createSchema creates the key table if it doesn't exist
func (s *SQLite) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS authorized_keys (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			public_key TEXT NOT NULL,
			comment TEXT,
			created_at DATETIME NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_keys_user_fingerprint
			ON authorized_keys(username, fingerprint);
	`

	_, err := s.db.Exec(schema)
	return err
}

// AuthRequest grants iff a row exists for (username, fingerprint of material).
func (s *SQLite) AuthRequest(ctx context.Context, username, material []byte) (Decision, error) {
	fp := Fingerprint(material)

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM authorized_keys WHERE username = ? AND fingerprint = ?",
		string(username), fp,
	).Scan(&count)
	if err != nil {
		return Decision{}, fmt.Errorf("querying authorized keys: %w", err)
	}

	return Decision{Granted: count > 0, TTL: s.ttl}, nil
}

// Name identifies the strategy.
func (s *SQLite) Name() string { return "sqlite" }

// AddKey authorizes a public key (SSH wire encoding) for a user. Adding the
// same (username, key) pair twice is a no-op.
func (s *SQLite) AddKey(ctx context.Context, username string, material []byte, publicKey, comment string) (*AuthorizedKey, error) {
	key := &AuthorizedKey{
		ID:          uuid.New().String(),
		Username:    username,
		Fingerprint: Fingerprint(material),
		PublicKey:   publicKey,
		Comment:     comment,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO authorized_keys (id, username, fingerprint, public_key, comment, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(username, fingerprint) DO NOTHING`,
		key.ID, key.Username, key.Fingerprint, key.PublicKey, key.Comment, key.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting authorized key: %w", err)
	}

	return key, nil
}

// RemoveKey revokes a key by username and fingerprint.
func (s *SQLite) RemoveKey(ctx context.Context, username, fingerprint string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM authorized_keys WHERE username = ? AND fingerprint = ?",
		username, fingerprint,
	)
	if err != nil {
		return fmt.Errorf("deleting authorized key: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// ListKeys returns all authorized keys, or only those for username if non-empty.
func (s *SQLite) ListKeys(ctx context.Context, username string) ([]*AuthorizedKey, error) {
	query := "SELECT id, username, fingerprint, public_key, COALESCE(comment, ''), created_at FROM authorized_keys"
	args := []any{}
	if username != "" {
		query += " WHERE username = ?"
		args = append(args, username)
	}
	query += " ORDER BY username, created_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing authorized keys: %w", err)
	}
	defer rows.Close()

	var keys []*AuthorizedKey
	for rows.Next() {
		var k AuthorizedKey
		if err := rows.Scan(&k.ID, &k.Username, &k.Fingerprint, &k.PublicKey, &k.Comment, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning authorized key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}
