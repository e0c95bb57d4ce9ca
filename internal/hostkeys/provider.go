// ABOUTME: Host key resolution for the SSH listener
// ABOUTME: Loads or generates PEM-encoded host keys per algorithm, idempotently

package hostkeys

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"

	"github.com/2389/keygate/internal/config"
)

// rsaKeyBits is the modulus size for generated RSA host keys.
const rsaKeyBits = 4096

// Resolve determines the host key directory from configuration, ensures it
// is accessible, and loads or generates one key per configured algorithm.
// Any failure here is fatal to startup: the server must not come up without
// its identity keys.
func Resolve(cfg config.HostKeysConfig, logger *slog.Logger) (string, []ssh.Signer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "hostkeys")

	var dir string
	switch cfg.Mode {
	case config.HostKeyModeEphemeral:
		tmp, err := os.MkdirTemp("", "keygate-hostkeys-")
		if err != nil {
			return "", nil, fmt.Errorf("creating ephemeral host key directory: %w", err)
		}
		dir = tmp
	case config.HostKeyModeDirectory:
		if err := os.MkdirAll(cfg.Directory, 0700); err != nil {
			return "", nil, fmt.Errorf("host key directory %s inaccessible: %w", cfg.Directory, err)
		}
		dir = cfg.Directory
	default:
		return "", nil, fmt.Errorf("unknown host key mode %q", cfg.Mode)
	}

	signers := make([]ssh.Signer, 0, len(cfg.Algorithms))
	for _, algo := range cfg.Algorithms {
		signer, err := Ensure(dir, algo)
		if err != nil {
			return "", nil, fmt.Errorf("ensuring %s host key: %w", algo, err)
		}
		logger.Info("host key ready",
			"algorithm", algo,
			"path", KeyPath(dir, algo),
			"type", signer.PublicKey().Type(),
		)
		signers = append(signers, signer)
	}

	return dir, signers, nil
}

// KeyPath returns the file location of the host key for an algorithm.
func KeyPath(dir, algorithm string) string {
	return filepath.Join(dir, "ssh_host_"+algorithm+"_key")
}

// Ensure loads the host key for the given algorithm from dir, generating a
// new key pair at that location if absent. It is idempotent: an existing key
// is never regenerated or touched.
func Ensure(dir, algorithm string) (ssh.Signer, error) {
	path := KeyPath(dir, algorithm)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("parsing host key %s: %w", path, err)
		}
		return signer, nil
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("reading host key %s: %w", path, err)
	}

	pemData, err := generateKey(algorithm)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(path, pemData, 0600); err != nil {
		return nil, fmt.Errorf("writing host key %s: %w", path, err)
	}

	signer, err := ssh.ParsePrivateKey(pemData)
	if err != nil {
		return nil, fmt.Errorf("parsing generated host key: %w", err)
	}
	return signer, nil
}

// generateKey produces a PEM-encoded private key for the given algorithm.
func generateKey(algorithm string) ([]byte, error) {
	switch algorithm {
	case "ed25519":
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generating ed25519 key: %w", err)
		}
		der, err := x509.MarshalPKCS8PrivateKey(priv)
		if err != nil {
			return nil, fmt.Errorf("marshaling ed25519 key: %w", err)
		}
		return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil

	case "rsa":
		priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
		if err != nil {
			return nil, fmt.Errorf("generating rsa key: %w", err)
		}
		der := x509.MarshalPKCS1PrivateKey(priv)
		return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der}), nil

	case "ecdsa":
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generating ecdsa key: %w", err)
		}
		der, err := x509.MarshalECPrivateKey(priv)
		if err != nil {
			return nil, fmt.Errorf("marshaling ecdsa key: %w", err)
		}
		return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), nil

	default:
		return nil, fmt.Errorf("unsupported host key algorithm %q", algorithm)
	}
}
