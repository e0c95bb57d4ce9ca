// ABOUTME: SSH listener that fronts the authentication coordinator
// ABOUTME: Public key offers are answered by the coordinator; sessions are greeted and closed

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/2389/keygate/internal/backend"
	"github.com/2389/keygate/internal/coordinator"
)

// handshakeTimeout bounds the SSH version exchange and key exchange for a
// new connection.
const handshakeTimeout = 20 * time.Second

// errPermissionDenied is the only authentication error an SSH client ever
// sees. Internal detail never crosses the authentication boundary.
var errPermissionDenied = errors.New("permission denied")

// newSSHConfig builds the server configuration: every offered public key is
// forwarded to the coordinator as opaque bytes (username as sent by the
// client, key in SSH wire encoding, which is stable across repeated offers
// of the same key).
func newSSHConfig(coord *coordinator.Coordinator, logger *slog.Logger) *ssh.ServerConfig {
	cfg := &ssh.ServerConfig{
		ServerVersion: "SSH-2.0-keygate",
		PublicKeyCallback: func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			material := key.Marshal()

			if !coord.Authenticate(context.Background(), []byte(conn.User()), material) {
				return nil, errPermissionDenied
			}

			return &ssh.Permissions{
				Extensions: map[string]string{
					"pubkey-fp": backend.Fingerprint(material),
				},
			}, nil
		},
		AuthLogCallback: func(conn ssh.ConnMetadata, method string, err error) {
			logger.Debug("auth attempt",
				"user", conn.User(),
				"method", method,
				"remote", conn.RemoteAddr().String(),
				"ok", err == nil,
			)
		},
	}

	for _, signer := range coord.Signers() {
		cfg.AddHostKey(signer)
	}

	return cfg
}

// serveSSH accepts connections until the listener is closed.
func (s *Server) serveSSH(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accepting connection: %w", err)
		}

		go s.handleConn(conn)
	}
}

// handleConn performs the handshake (which drives the public key callback)
// and then greets and closes any session channel. keygate authorizes
// connections; it does not host shells.
func (s *Server) handleConn(conn net.Conn) {
	remote := conn.RemoteAddr().String()

	_ = conn.SetDeadline(time.Now().Add(handshakeTimeout))

	sshConn, chans, reqs, err := ssh.NewServerConn(conn, s.sshConfig)
	if err != nil {
		s.logger.Debug("handshake failed", "remote", remote, "error", err)
		conn.Close()
		return
	}
	defer sshConn.Close()
	_ = conn.SetDeadline(time.Time{})

	s.logger.Info("connection authenticated",
		"remote", remote,
		"user", sshConn.User(),
		"fingerprint", sshConn.Permissions.Extensions["pubkey-fp"],
	)

	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}

		channel, requests, err := newChannel.Accept()
		if err != nil {
			s.logger.Debug("channel accept failed", "remote", remote, "error", err)
			continue
		}

		go func() {
			for req := range requests {
				switch req.Type {
				case "shell", "exec":
					if req.WantReply {
						req.Reply(true, nil)
					}
					fmt.Fprintf(channel, "keygate: authenticated as %s\r\n", sshConn.User())
					channel.Close()
					return
				default:
					if req.WantReply {
						req.Reply(false, nil)
					}
				}
			}
		}()
	}
}
