// ABOUTME: Serialized authentication coordinator owning the decision cache and backend
// ABOUTME: Processes authenticate/reset requests one at a time via a mailbox channel

package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/ssh"

	"github.com/2389/keygate/internal/authcache"
	"github.com/2389/keygate/internal/backend"
	"github.com/2389/keygate/internal/config"
	"github.com/2389/keygate/internal/hostkeys"
)

// requestBufferSize is the mailbox channel buffer. Requests beyond it block
// the caller until the loop catches up, preserving arrival order either way.
const requestBufferSize = 64

type opKind int

const (
	opAuthenticate opKind = iota
	opReset
)

// request is one mailbox message. For opAuthenticate the loop sends the
// decision on reply; for opReset it closes ack.
type request struct {
	op       opKind
	username []byte
	material []byte
	reply    chan bool
	ack      chan struct{}
}

// Coordinator is the single serialization point for authentication. It owns
// the decision cache and the configured backend exclusively; all access to
// them happens on the loop goroutine, so no two requests are ever evaluated
// concurrently and at most one backend call is in flight at any instant.
type Coordinator struct {
	backend       backend.Backend
	cache         *authcache.Cache
	hostKeyDir    string
	signers       []ssh.Signer
	sweepInterval time.Duration
	logger        *slog.Logger

	requests  chan request
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// New initializes a coordinator: host keys are resolved (and generated if
// absent), the backend is fixed for the coordinator's lifetime, and the
// decision cache starts empty. Host key failures are fatal; the coordinator
// must not start without the server's identity material. A nil backend
// falls back to deny-all.
func New(cfg *config.Config, be backend.Backend, logger *slog.Logger) (*Coordinator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	hostKeyDir, signers, err := hostkeys.Resolve(cfg.HostKeys, logger)
	if err != nil {
		return nil, fmt.Errorf("resolving host keys: %w", err)
	}

	logger = logger.With("component", "coordinator")

	if be == nil {
		be = backend.NewDenyAll(cfg.Backend.DefaultTTL)
	}

	c := &Coordinator{
		backend:       be,
		cache:         authcache.New(),
		hostKeyDir:    hostKeyDir,
		signers:       signers,
		sweepInterval: cfg.Cache.SweepInterval,
		logger:        logger,
		requests:      make(chan request, requestBufferSize),
		done:          make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go c.loop()

	logger.Info("coordinator ready",
		"backend", be.Name(),
		"host_key_dir", hostKeyDir,
		"host_keys", len(signers),
	)

	return c, nil
}

// Authenticate decides whether the given username may authenticate with the
// given public key material. It blocks until the serialized loop reaches the
// request and, on a cache miss, until the backend answers. Any failure —
// backend error, coordinator shut down, caller context cancelled while
// waiting — yields false (fail closed). Cancellation only abandons waiting:
// a request the loop has accepted always runs to completion.
func (c *Coordinator) Authenticate(ctx context.Context, username, material []byte) bool {
	req := request{
		op:       opAuthenticate,
		username: username,
		material: material,
		reply:    make(chan bool, 1),
	}

	select {
	case c.requests <- req:
	case <-c.stopped:
		return false
	case <-ctx.Done():
		return false
	}

	select {
	case granted := <-req.reply:
		return granted
	case <-c.stopped:
		return false
	case <-ctx.Done():
		return false
	}
}

// Reset clears all cached decisions. It goes through the same mailbox as
// authentication, so it takes effect at a well-defined point in arrival
// order. Backend configuration and host key state are untouched. Calling
// Reset on a closed coordinator is a no-op.
func (c *Coordinator) Reset() {
	req := request{
		op:  opReset,
		ack: make(chan struct{}),
	}

	select {
	case c.requests <- req:
	case <-c.stopped:
		return
	}

	select {
	case <-req.ack:
	case <-c.stopped:
	}
}

// HostKeyDir returns the directory host key material was resolved from.
// Immutable after initialization; never triggers regeneration.
func (c *Coordinator) HostKeyDir() string {
	return c.hostKeyDir
}

// Signers returns the host key signers resolved at initialization.
func (c *Coordinator) Signers() []ssh.Signer {
	return c.signers
}

// Close stops the serialized loop. Authenticate calls after Close return
// false. Safe to call multiple times.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	<-c.stopped
}

// loop is the coordinator's single goroutine. It alone touches the cache
// and the backend, which is the whole concurrency story: strict arrival
// order, one decision at a time. The expiry sweep runs as a case in the
// same select, so no second actor ever sees the cache.
func (c *Coordinator) loop() {
	defer close(c.stopped)

	var sweep <-chan time.Time
	if c.sweepInterval > 0 {
		ticker := time.NewTicker(c.sweepInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	for {
		select {
		case req := <-c.requests:
			switch req.op {
			case opAuthenticate:
				req.reply <- c.handleAuthenticate(req.username, req.material)
			case opReset:
				c.cache.Clear()
				c.logger.Info("decision cache reset")
				close(req.ack)
			}
		case <-sweep:
			if purged := c.cache.PurgeExpired(); purged > 0 {
				c.logger.Debug("purged expired decisions", "count", purged)
			}
		case <-c.done:
			return
		}
	}
}

// handleAuthenticate runs on the loop goroutine: cache lookup, then at most
// one backend call. Backend errors answer deny and are never cached, so the
// next attempt for the same pair re-consults the backend. The backend call
// deliberately gets a background context: once accepted, a request runs to
// completion and cannot be aborted mid-flight.
func (c *Coordinator) handleAuthenticate(username, material []byte) bool {
	creq := authcache.Request{Username: username, Material: material}
	fp := backend.Fingerprint(material)

	if resp, ok := c.cache.Lookup(creq); ok {
		c.logger.Debug("authentication decision served from cache",
			"user", string(username),
			"fingerprint", fp,
			"granted", resp.Granted,
		)
		return resp.Granted
	}

	decisionID := uuid.New().String()

	decision, err := c.backend.AuthRequest(context.Background(), username, material)
	if err != nil {
		c.logger.Error("backend could not decide, denying",
			"decision_id", decisionID,
			"user", string(username),
			"fingerprint", fp,
			"backend", c.backend.Name(),
			"error", err,
		)
		return false
	}

	// A non-positive TTL reads as already expired, so the entry would never
	// be served; skip the insert entirely.
	if decision.TTL > 0 {
		c.cache.Insert(authcache.Response{
			Username:   username,
			Material:   material,
			Granted:    decision.Granted,
			TTL:        decision.TTL,
			InsertedAt: time.Now(),
		})
	}

	c.logger.Info("authentication decision",
		"decision_id", decisionID,
		"user", string(username),
		"fingerprint", fp,
		"backend", c.backend.Name(),
		"granted", decision.Granted,
		"ttl", decision.TTL,
	)

	return decision.Granted
}
