// ABOUTME: Shared test helpers for backend tests
// ABOUTME: Generates throwaway ed25519 key pairs in SSH encodings

package backend

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"golang.org/x/crypto/ssh"
)

// generateTestKey creates an ed25519 key pair and returns the wire-encoded
// public key material plus its authorized_keys representation.
func generateTestKey(t *testing.T) (material []byte, authorizedKey string) {
	t.Helper()

	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("failed to create SSH public key: %v", err)
	}

	return sshPub.Marshal(), string(ssh.MarshalAuthorizedKey(sshPub))
}
