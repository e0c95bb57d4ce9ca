// ABOUTME: Configuration loading and parsing for keygate
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Host key persistence modes.
const (
	HostKeyModeEphemeral = "ephemeral"
	HostKeyModeDirectory = "directory"
)

// Backend types.
const (
	BackendDeny   = "deny"
	BackendStatic = "static"
	BackendSQLite = "sqlite"
	BackendHTTP   = "http"
)

// DefaultDecisionTTL is used when a backend has no configured TTL.
const DefaultDecisionTTL = 30 * time.Second

// Config represents the complete keygate configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	HostKeys HostKeysConfig `yaml:"host_keys"`
	Backend  BackendConfig  `yaml:"backend"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds listener address configuration
type ServerConfig struct {
	SSHAddr   string `yaml:"ssh_addr"`
	AdminAddr string `yaml:"admin_addr"`
}

// HostKeysConfig controls where host key material lives and which
// algorithms are provisioned at startup.
type HostKeysConfig struct {
	Mode       string   `yaml:"mode"`       // "ephemeral" or "directory"
	Directory  string   `yaml:"directory"`  // required for mode "directory"
	Algorithms []string `yaml:"algorithms"` // defaults to ["ed25519"]
}

// BackendConfig selects and configures the authentication backend strategy
type BackendConfig struct {
	Type       string        `yaml:"type"` // deny | static | sqlite | http
	DefaultTTL time.Duration `yaml:"-"`
	Manifest   string        `yaml:"manifest"` // static: TOML manifest path
	Database   string        `yaml:"database"` // sqlite: database path
	URL        string        `yaml:"url"`      // http: identity provider endpoint
	Secret     string        `yaml:"secret"`   // http: bearer token signing secret
	Timeout    time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	DefaultTTLRaw string `yaml:"default_ttl"`
	TimeoutRaw    string `yaml:"timeout"`
}

// CacheConfig holds decision cache tuning
type CacheConfig struct {
	SweepInterval time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	SweepIntervalRaw string `yaml:"sweep_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in values that have sensible defaults when omitted.
func (c *Config) applyDefaults() {
	if c.Server.SSHAddr == "" {
		c.Server.SSHAddr = ":2222"
	}
	if c.Server.AdminAddr == "" {
		c.Server.AdminAddr = "localhost:8081"
	}
	if c.HostKeys.Mode == "" {
		c.HostKeys.Mode = HostKeyModeEphemeral
	}
	if len(c.HostKeys.Algorithms) == 0 {
		c.HostKeys.Algorithms = []string{"ed25519"}
	}
	if c.Backend.Type == "" {
		c.Backend.Type = BackendDeny
	}
	if c.Cache.SweepIntervalRaw == "" {
		c.Cache.SweepIntervalRaw = "1m"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	switch c.HostKeys.Mode {
	case HostKeyModeEphemeral:
		// A temporary directory is created at startup; nothing else required.
	case HostKeyModeDirectory:
		if c.HostKeys.Directory == "" {
			return fmt.Errorf("host_keys.directory is required when mode is %q", HostKeyModeDirectory)
		}
	default:
		return fmt.Errorf("host_keys.mode must be %q or %q, got %q",
			HostKeyModeEphemeral, HostKeyModeDirectory, c.HostKeys.Mode)
	}

	switch c.Backend.Type {
	case BackendDeny:
	case BackendStatic:
		if c.Backend.Manifest == "" {
			return fmt.Errorf("backend.manifest is required for the static backend")
		}
	case BackendSQLite:
		if c.Backend.Database == "" {
			return fmt.Errorf("backend.database is required for the sqlite backend")
		}
	case BackendHTTP:
		if c.Backend.URL == "" {
			return fmt.Errorf("backend.url is required for the http backend")
		}
		if c.Backend.Secret == "" {
			return fmt.Errorf("backend.secret is required for the http backend")
		}
	default:
		return fmt.Errorf("unknown backend.type %q", c.Backend.Type)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Backend.DefaultTTLRaw != "" {
		cfg.Backend.DefaultTTL, err = time.ParseDuration(cfg.Backend.DefaultTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing backend.default_ttl %q: %w", cfg.Backend.DefaultTTLRaw, err)
		}
	}
	if cfg.Backend.DefaultTTL <= 0 {
		cfg.Backend.DefaultTTL = DefaultDecisionTTL
	}

	if cfg.Backend.TimeoutRaw != "" {
		cfg.Backend.Timeout, err = time.ParseDuration(cfg.Backend.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing backend.timeout %q: %w", cfg.Backend.TimeoutRaw, err)
		}
	}

	if cfg.Cache.SweepIntervalRaw != "" {
		cfg.Cache.SweepInterval, err = time.ParseDuration(cfg.Cache.SweepIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing cache.sweep_interval %q: %w", cfg.Cache.SweepIntervalRaw, err)
		}
	}

	return nil
}
