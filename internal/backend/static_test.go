// ABOUTME: Tests for the static TOML-manifest backend
// ABOUTME: Covers grant/deny decisions, per-user TTLs, and manifest error handling

package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "authorized.toml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
	return path
}

func TestStatic_GrantAndDeny(t *testing.T) {
	aliceKey, aliceAuthorized := generateTestKey(t)
	strangerKey, _ := generateTestKey(t)

	path := writeManifest(t, fmt.Sprintf(`
default_ttl = "45s"

[[user]]
name = "alice"
keys = [%q]
`, aliceAuthorized))

	be, err := NewStatic(path, 30*time.Second)
	require.NoError(t, err)

	ctx := context.Background()

	// Listed key grants
	dec, err := be.AuthRequest(ctx, []byte("alice"), aliceKey)
	require.NoError(t, err)
	assert.True(t, dec.Granted)
	assert.Equal(t, 45*time.Second, dec.TTL, "manifest default_ttl overrides config default")

	// Right user, wrong key
	dec, err = be.AuthRequest(ctx, []byte("alice"), strangerKey)
	require.NoError(t, err)
	assert.False(t, dec.Granted)

	// Unknown user
	dec, err = be.AuthRequest(ctx, []byte("mallory"), aliceKey)
	require.NoError(t, err)
	assert.False(t, dec.Granted)
}

func TestStatic_PerUserTTL(t *testing.T) {
	key, authorized := generateTestKey(t)

	path := writeManifest(t, fmt.Sprintf(`
[[user]]
name = "ops"
ttl = "5m"
keys = [%q]
`, authorized))

	be, err := NewStatic(path, 30*time.Second)
	require.NoError(t, err)

	dec, err := be.AuthRequest(context.Background(), []byte("ops"), key)
	require.NoError(t, err)
	assert.True(t, dec.Granted)
	assert.Equal(t, 5*time.Minute, dec.TTL)
}

func TestStatic_MultipleKeysPerUser(t *testing.T) {
	key1, authorized1 := generateTestKey(t)
	key2, authorized2 := generateTestKey(t)

	path := writeManifest(t, fmt.Sprintf(`
[[user]]
name = "alice"
keys = [%q, %q]
`, authorized1, authorized2))

	be, err := NewStatic(path, 30*time.Second)
	require.NoError(t, err)

	ctx := context.Background()
	for _, material := range [][]byte{key1, key2} {
		dec, err := be.AuthRequest(ctx, []byte("alice"), material)
		require.NoError(t, err)
		assert.True(t, dec.Granted)
	}
}

func TestStatic_MalformedManifest(t *testing.T) {
	path := writeManifest(t, "this is not toml [[[")

	_, err := NewStatic(path, 30*time.Second)
	assert.Error(t, err)
}

func TestStatic_UnparsableKey(t *testing.T) {
	path := writeManifest(t, `
[[user]]
name = "alice"
keys = ["ssh-ed25519 notakey"]
`)

	_, err := NewStatic(path, 30*time.Second)
	assert.Error(t, err)
}

func TestStatic_MissingManifest(t *testing.T) {
	_, err := NewStatic(filepath.Join(t.TempDir(), "nope.toml"), 30*time.Second)
	assert.Error(t, err)
}
