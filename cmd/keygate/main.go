// ABOUTME: Entry point for the keygate SSH authentication gateway
// ABOUTME: Provides serve, init, health, reset, and authorized-key management commands

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/keygate/internal/backend"
	"github.com/2389/keygate/internal/config"
	"github.com/2389/keygate/internal/coordinator"
	"github.com/2389/keygate/internal/server"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _                          _
| | _____ _   _  __ _  __ _| |_ ___
| |/ / _ \ | | |/ _' |/ _' | __/ _ \
|   <  __/ |_| | (_| | (_| | ||  __/
|_|\_\___|\__, |\__, |\__,_|\__\___|
          |___/ |___/
`

// getConfigPath returns the path to the keygate config file.
// Priority: KEYGATE_CONFIG env var > XDG_CONFIG_HOME/keygate/keygate.yaml > ~/.config/keygate/keygate.yaml
func getConfigPath() string {
	if envPath := os.Getenv("KEYGATE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "keygate.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "keygate", "keygate.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: keygate <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                    Start the authentication gateway")
		fmt.Println("  init                     Create a new config file interactively")
		fmt.Println("  health                   Check gateway health")
		fmt.Println("  reset                    Clear cached authentication decisions")
		fmt.Println("  keys add USER KEYFILE    Authorize a public key (sqlite backend)")
		fmt.Println("  keys list [USER]         List authorized keys (sqlite backend)")
		fmt.Println("  keys rm USER FINGERPRINT Revoke a key (sqlite backend)")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "reset":
		err = runReset(ctx)
	case "keys":
		err = runKeys(ctx, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("SSH:      %s\n", cfg.Server.SSHAddr)
	green.Print("    ▶ ")
	fmt.Printf("Admin:    %s\n", cfg.Server.AdminAddr)
	green.Print("    ▶ ")
	fmt.Printf("Backend:  %s\n", cfg.Backend.Type)
	green.Print("    ▶ ")
	fmt.Printf("Host keys: %s", cfg.HostKeys.Mode)
	if cfg.HostKeys.Mode == config.HostKeyModeDirectory {
		gray.Printf(" (%s)", cfg.HostKeys.Directory)
	}
	fmt.Println()
	fmt.Println()

	logger.Info("starting keygate",
		"config", configPath,
		"ssh_addr", cfg.Server.SSHAddr,
		"admin_addr", cfg.Server.AdminAddr,
		"backend", cfg.Backend.Type,
	)

	be, err := backend.New(cfg.Backend, logger)
	if err != nil {
		return fmt.Errorf("creating backend: %w", err)
	}

	coord, err := coordinator.New(cfg, be, logger)
	if err != nil {
		return fmt.Errorf("creating coordinator: %w", err)
	}

	return server.New(cfg, coord, logger).Run(ctx)
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.AdminAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func runReset(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/cache/reset", cfg.Server.AdminAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("reset failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	fmt.Println("cache cleared")
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("keygate configuration setup")
	fmt.Println("===========================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Listeners ---")
	sshAddr := prompt(reader, "SSH address", ":2222")
	adminAddr := prompt(reader, "Admin HTTP address", "localhost:8081")

	fmt.Println("\n--- Host Keys ---")
	mode := prompt(reader, "Host key mode (ephemeral/directory)", "directory")
	var keyDir string
	if mode == config.HostKeyModeDirectory {
		keyDir = prompt(reader, "Host key directory", "/var/lib/keygate/hostkeys")
	}

	fmt.Println("\n--- Backend ---")
	backendType := prompt(reader, "Backend type (deny/static/sqlite/http)", "sqlite")

	var cfg strings.Builder
	cfg.WriteString("# keygate configuration\n")
	cfg.WriteString("# Generated by keygate init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  ssh_addr: \"%s\"\n", sshAddr))
	cfg.WriteString(fmt.Sprintf("  admin_addr: \"%s\"\n", adminAddr))
	cfg.WriteString("\n")

	cfg.WriteString("host_keys:\n")
	cfg.WriteString(fmt.Sprintf("  mode: \"%s\"\n", mode))
	if keyDir != "" {
		cfg.WriteString(fmt.Sprintf("  directory: \"%s\"\n", keyDir))
	}
	cfg.WriteString("  algorithms: [\"ed25519\", \"rsa\"]\n")
	cfg.WriteString("\n")

	cfg.WriteString("backend:\n")
	cfg.WriteString(fmt.Sprintf("  type: \"%s\"\n", backendType))
	cfg.WriteString("  default_ttl: \"60s\"\n")
	switch backendType {
	case config.BackendStatic:
		manifest := prompt(reader, "Manifest path", "/etc/keygate/authorized.toml")
		cfg.WriteString(fmt.Sprintf("  manifest: \"%s\"\n", manifest))
	case config.BackendSQLite:
		database := prompt(reader, "Database path", "/var/lib/keygate/keygate.db")
		cfg.WriteString(fmt.Sprintf("  database: \"%s\"\n", database))
	case config.BackendHTTP:
		url := prompt(reader, "Identity provider URL", "")
		cfg.WriteString(fmt.Sprintf("  url: \"%s\"\n", url))
		cfg.WriteString("  secret: \"${KEYGATE_BACKEND_SECRET}\"\n")
		cfg.WriteString("  timeout: \"5s\"\n")
	}
	cfg.WriteString("\n")

	cfg.WriteString("cache:\n")
	cfg.WriteString("  sweep_interval: \"1m\"\n")
	cfg.WriteString("\n")

	fmt.Println("\n--- Logging ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  keygate serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
