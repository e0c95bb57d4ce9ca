// Package hostkeys resolves the SSH server's own identity key material at
// startup: either a persistent directory of PEM host keys or an ephemeral
// per-process directory, generating missing keys idempotently.
package hostkeys
