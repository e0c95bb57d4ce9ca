// ABOUTME: Tests for the backend factory and the deny-all default strategy
// ABOUTME: Covers strategy selection by config type and fail-closed defaults

package backend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/keygate/internal/config"
)

func TestNew_DefaultsToDeny(t *testing.T) {
	be, err := New(config.BackendConfig{DefaultTTL: 30 * time.Second}, nil)
	require.NoError(t, err)
	assert.Equal(t, "deny", be.Name())
}

func TestNew_UnknownType(t *testing.T) {
	_, err := New(config.BackendConfig{Type: "carrier-pigeon"}, nil)
	assert.Error(t, err)
}

func TestDenyAll_RefusesEverything(t *testing.T) {
	be := NewDenyAll(15 * time.Second)

	material, _ := generateTestKey(t)
	dec, err := be.AuthRequest(context.Background(), []byte("anyone"), material)
	require.NoError(t, err)

	assert.False(t, dec.Granted)
	assert.Equal(t, 15*time.Second, dec.TTL)
}

func TestFingerprint_StableHex(t *testing.T) {
	material, _ := generateTestKey(t)

	fp := Fingerprint(material)
	assert.Len(t, fp, 64, "SHA256 hex fingerprint")
	assert.Equal(t, fp, Fingerprint(material), "same material, same fingerprint")

	other, _ := generateTestKey(t)
	assert.NotEqual(t, fp, Fingerprint(other))
}
