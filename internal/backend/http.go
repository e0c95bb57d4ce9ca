// ABOUTME: HTTP backend delegating decisions to a remote identity provider
// ABOUTME: Sends JSON requests signed with a short-lived HS256 bearer token

package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// defaultHTTPTimeout bounds a single identity provider call when no timeout
// is configured. The coordinator imposes no deadline of its own, so the
// client timeout is the only thing keeping a stuck provider from stalling
// the serialized loop indefinitely.
const defaultHTTPTimeout = 10 * time.Second

// tokenLifetime is the validity window of the per-request bearer token.
const tokenLifetime = time.Minute

// authRequestBody is the JSON payload sent to the identity provider.
type authRequestBody struct {
	Username    string `json:"username"`
	Material    string `json:"material"` // base64 of the SSH wire encoding
	Fingerprint string `json:"fingerprint"`
}

// authResponseBody is the JSON payload expected back.
type authResponseBody struct {
	Granted    bool  `json:"granted"`
	TTLSeconds int64 `json:"ttl_seconds"`
}

// HTTP asks a remote identity provider for each decision. Requests carry a
// short-lived HS256 JWT (subject = key fingerprint) signed with the shared
// secret so the provider can authenticate keygate.
type HTTP struct {
	url        string
	secret     []byte
	defaultTTL time.Duration
	client     *http.Client
	logger     *slog.Logger
}

// NewHTTP creates an HTTP backend for the given endpoint.
func NewHTTP(url, secret string, timeout, defaultTTL time.Duration, logger *slog.Logger) (*HTTP, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	return &HTTP{
		url:        url,
		secret:     []byte(secret),
		defaultTTL: defaultTTL,
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With("backend", "http"),
	}, nil
}

// AuthRequest posts the attempt to the identity provider and maps its answer
// to a Decision. Transport failures and non-2xx responses return an error;
// the coordinator fails closed and does not cache.
func (h *HTTP) AuthRequest(ctx context.Context, username, material []byte) (Decision, error) {
	fp := Fingerprint(material)

	body, err := json.Marshal(authRequestBody{
		Username:    string(username),
		Material:    base64.StdEncoding.EncodeToString(material),
		Fingerprint: fp,
	})
	if err != nil {
		return Decision{}, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return Decision{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := h.mintToken(fp)
	if err != nil {
		return Decision{}, fmt.Errorf("signing request token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := h.client.Do(req)
	if err != nil {
		return Decision{}, fmt.Errorf("identity provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little for connection reuse; the content is not trusted.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return Decision{}, fmt.Errorf("identity provider returned status %d", resp.StatusCode)
	}

	var parsed authResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Decision{}, fmt.Errorf("decoding response: %w", err)
	}

	ttl := h.defaultTTL
	if parsed.TTLSeconds > 0 {
		ttl = time.Duration(parsed.TTLSeconds) * time.Second
	}

	return Decision{Granted: parsed.Granted, TTL: ttl}, nil
}

// Name identifies the strategy.
func (h *HTTP) Name() string { return "http" }

// mintToken creates the per-request bearer token.
func (h *HTTP) mintToken(fingerprint string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": fingerprint,
		"iss": "keygate",
		"iat": now.Unix(),
		"exp": now.Add(tokenLifetime).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.secret)
}
