// ABOUTME: Tests for the SSH front door and admin HTTP endpoints
// ABOUTME: Covers end-to-end public key auth, deny mapping, health, and cache reset

package server

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/2389/keygate/internal/backend"
	"github.com/2389/keygate/internal/config"
	"github.com/2389/keygate/internal/coordinator"
)

// keyMatchBackend grants a single (username, material) pair.
type keyMatchBackend struct {
	username string
	material []byte
}

func (b *keyMatchBackend) AuthRequest(_ context.Context, username, material []byte) (backend.Decision, error) {
	granted := string(username) == b.username && bytes.Equal(material, b.material)
	return backend.Decision{Granted: granted, TTL: time.Minute}, nil
}

func (b *keyMatchBackend) Name() string { return "keymatch" }

func generateClientKey(t *testing.T) ssh.Signer {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)
	return signer
}

func newTestServer(t *testing.T, be backend.Backend) *Server {
	t.Helper()

	cfg := &config.Config{
		HostKeys: config.HostKeysConfig{
			Mode:       config.HostKeyModeDirectory,
			Directory:  t.TempDir(),
			Algorithms: []string{"ed25519"},
		},
	}

	coord, err := coordinator.New(cfg, be, nil)
	require.NoError(t, err)
	t.Cleanup(coord.Close)

	return New(cfg, coord, nil)
}

func dial(t *testing.T, addr, user string, signer ssh.Signer) (*ssh.Client, error) {
	t.Helper()

	return ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	})
}

func TestSSH_PublicKeyAuth(t *testing.T) {
	clientKey := generateClientKey(t)
	be := &keyMatchBackend{username: "alice", material: clientKey.PublicKey().Marshal()}

	s := newTestServer(t, be)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go s.serveSSH(ln)

	// Authorized user and key connects
	client, err := dial(t, ln.Addr().String(), "alice", clientKey)
	require.NoError(t, err)
	client.Close()

	// Same key, wrong username is refused
	_, err = dial(t, ln.Addr().String(), "mallory", clientKey)
	assert.Error(t, err)

	// Right username, different key is refused
	otherKey := generateClientKey(t)
	_, err = dial(t, ln.Addr().String(), "alice", otherKey)
	assert.Error(t, err)
}

func TestSSH_DenyAllByDefault(t *testing.T) {
	s := newTestServer(t, nil) // nil backend falls back to deny-all

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go s.serveSSH(ln)

	_, err = dial(t, ln.Addr().String(), "anyone", generateClientKey(t))
	assert.Error(t, err)
}

func TestAdmin_Health(t *testing.T) {
	s := newTestServer(t, nil)
	srv := httptest.NewServer(s.adminHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdmin_CacheReset(t *testing.T) {
	s := newTestServer(t, nil)
	srv := httptest.NewServer(s.adminHandler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/cache/reset", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Wrong method is rejected
	getResp, err := http.Get(srv.URL + "/cache/reset")
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, getResp.StatusCode)
}
