// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, duration parsing, and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
server:
  ssh_addr: ":2222"
  admin_addr: "localhost:8081"

host_keys:
  mode: "directory"
  directory: "/var/lib/keygate/hostkeys"
  algorithms: ["ed25519", "rsa"]

backend:
  type: "static"
  manifest: "/etc/keygate/authorized.toml"
  default_ttl: "90s"

cache:
  sweep_interval: "30s"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.SSHAddr != ":2222" {
		t.Errorf("SSHAddr = %q, want :2222", cfg.Server.SSHAddr)
	}
	if cfg.HostKeys.Mode != HostKeyModeDirectory {
		t.Errorf("HostKeys.Mode = %q, want directory", cfg.HostKeys.Mode)
	}
	if len(cfg.HostKeys.Algorithms) != 2 {
		t.Errorf("Algorithms = %v, want two entries", cfg.HostKeys.Algorithms)
	}
	if cfg.Backend.DefaultTTL != 90*time.Second {
		t.Errorf("Backend.DefaultTTL = %v, want 90s", cfg.Backend.DefaultTTL)
	}
	if cfg.Cache.SweepInterval != 30*time.Second {
		t.Errorf("Cache.SweepInterval = %v, want 30s", cfg.Cache.SweepInterval)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
}

func TestLoad_Defaults(t *testing.T) {
	// Minimal config: everything defaulted
	configPath := writeConfig(t, "logging:\n  level: \"info\"\n")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.HostKeys.Mode != HostKeyModeEphemeral {
		t.Errorf("HostKeys.Mode = %q, want ephemeral default", cfg.HostKeys.Mode)
	}
	if len(cfg.HostKeys.Algorithms) != 1 || cfg.HostKeys.Algorithms[0] != "ed25519" {
		t.Errorf("Algorithms = %v, want [ed25519]", cfg.HostKeys.Algorithms)
	}
	if cfg.Backend.Type != BackendDeny {
		t.Errorf("Backend.Type = %q, want deny default", cfg.Backend.Type)
	}
	if cfg.Backend.DefaultTTL != DefaultDecisionTTL {
		t.Errorf("Backend.DefaultTTL = %v, want %v", cfg.Backend.DefaultTTL, DefaultDecisionTTL)
	}
	if cfg.Cache.SweepInterval != time.Minute {
		t.Errorf("Cache.SweepInterval = %v, want 1m default", cfg.Cache.SweepInterval)
	}
	if cfg.Server.SSHAddr == "" || cfg.Server.AdminAddr == "" {
		t.Error("listener addresses should default to non-empty values")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("KEYGATE_TEST_SECRET", "super-secret")

	configPath := writeConfig(t, `
backend:
  type: "http"
  url: "https://idp.example.com/authorize"
  secret: "${KEYGATE_TEST_SECRET}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Backend.Secret != "super-secret" {
		t.Errorf("Backend.Secret = %q, want expanded env value", cfg.Backend.Secret)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, `
backend:
  type: "deny"
  default_ttl: "not-a-duration"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() should fail on invalid duration")
	}
	if !strings.Contains(err.Error(), "default_ttl") {
		t.Errorf("error %q should mention the offending field", err)
	}
}

func TestValidate_Failures(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "directory mode without directory",
			mutate:  func(c *Config) { c.HostKeys.Mode = HostKeyModeDirectory },
			wantSub: "host_keys.directory",
		},
		{
			name:    "unknown host key mode",
			mutate:  func(c *Config) { c.HostKeys.Mode = "floppy" },
			wantSub: "host_keys.mode",
		},
		{
			name:    "static without manifest",
			mutate:  func(c *Config) { c.Backend.Type = BackendStatic },
			wantSub: "backend.manifest",
		},
		{
			name:    "sqlite without database",
			mutate:  func(c *Config) { c.Backend.Type = BackendSQLite },
			wantSub: "backend.database",
		},
		{
			name:    "http without url",
			mutate:  func(c *Config) { c.Backend.Type = BackendHTTP },
			wantSub: "backend.url",
		},
		{
			name: "http without secret",
			mutate: func(c *Config) {
				c.Backend.Type = BackendHTTP
				c.Backend.URL = "https://idp.example.com"
			},
			wantSub: "backend.secret",
		},
		{
			name:    "unknown backend type",
			mutate:  func(c *Config) { c.Backend.Type = "carrier-pigeon" },
			wantSub: "backend.type",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.applyDefaults()
			tc.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Errorf("error %q should mention %q", err, tc.wantSub)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() should fail for a missing file")
	}
}
