// ABOUTME: Server orchestrator coordinating the SSH listener and admin HTTP endpoint
// ABOUTME: Manages startup, graceful shutdown, and lifecycle of both listeners

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/2389/keygate/internal/config"
	"github.com/2389/keygate/internal/coordinator"
)

// shutdownGrace bounds how long the admin HTTP server gets to finish
// in-flight requests on shutdown.
const shutdownGrace = 5 * time.Second

// Server runs the SSH front door and the admin HTTP endpoint around one
// coordinator instance.
type Server struct {
	cfg       *config.Config
	coord     *coordinator.Coordinator
	sshConfig *ssh.ServerConfig
	logger    *slog.Logger
}

// New wires a server around an initialized coordinator.
func New(cfg *config.Config, coord *coordinator.Coordinator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server")

	return &Server{
		cfg:       cfg,
		coord:     coord,
		sshConfig: newSSHConfig(coord, logger),
		logger:    logger,
	}
}

// Run starts both listeners and blocks until ctx is cancelled or a listener
// fails. On return the coordinator has been closed.
func (s *Server) Run(ctx context.Context) error {
	defer s.coord.Close()

	sshListener, err := net.Listen("tcp", s.cfg.Server.SSHAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Server.SSHAddr, err)
	}
	defer sshListener.Close()

	adminServer := &http.Server{
		Addr:    s.cfg.Server.AdminAddr,
		Handler: s.adminHandler(),
	}

	errCh := make(chan error, 2)

	go func() {
		s.logger.Info("ssh listener started", "addr", s.cfg.Server.SSHAddr)
		errCh <- s.serveSSH(sshListener)
	}()

	go func() {
		s.logger.Info("admin endpoint started", "addr", s.cfg.Server.AdminAddr)
		if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("admin endpoint: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	sshListener.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("admin endpoint shutdown", "error", err)
	}

	return nil
}
