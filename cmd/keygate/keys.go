// ABOUTME: Authorized-key management subcommands for the sqlite backend
// ABOUTME: Adds, lists, and revokes keys directly against the backend database

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"golang.org/x/crypto/ssh"

	"github.com/2389/keygate/internal/backend"
	"github.com/2389/keygate/internal/config"
)

// runKeys dispatches the keys subcommands. They operate on the sqlite
// backend's database directly, so the server does not need to be running;
// a running server picks up changes as cached decisions expire (or after
// keygate reset).
func runKeys(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: keygate keys <add|list|rm> ...")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Backend.Type != config.BackendSQLite {
		return fmt.Errorf("keys management requires backend.type %q, configured type is %q",
			config.BackendSQLite, cfg.Backend.Type)
	}

	be, err := backend.NewSQLite(cfg.Backend.Database, cfg.Backend.DefaultTTL, nil)
	if err != nil {
		return fmt.Errorf("opening backend database: %w", err)
	}
	defer be.Close()

	switch args[0] {
	case "add":
		return runKeysAdd(ctx, be, args[1:])
	case "list":
		return runKeysList(ctx, be, args[1:])
	case "rm":
		return runKeysRemove(ctx, be, args[1:])
	default:
		return fmt.Errorf("unknown keys command: %s", args[0])
	}
}

func runKeysAdd(ctx context.Context, be *backend.SQLite, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: keygate keys add USER KEYFILE")
	}
	username, keyFile := args[0], args[1]

	data, err := os.ReadFile(keyFile)
	if err != nil {
		return fmt.Errorf("reading key file: %w", err)
	}

	pubkey, comment, _, _, err := ssh.ParseAuthorizedKey(data)
	if err != nil {
		return fmt.Errorf("parsing public key: %w", err)
	}

	key, err := be.AddKey(ctx, username, pubkey.Marshal(),
		string(ssh.MarshalAuthorizedKey(pubkey)), comment)
	if err != nil {
		return fmt.Errorf("authorizing key: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Authorized key for %s\n", username)
	fmt.Printf("  Fingerprint: %s\n", key.Fingerprint)
	return nil
}

func runKeysList(ctx context.Context, be *backend.SQLite, args []string) error {
	username := ""
	if len(args) > 0 {
		username = args[0]
	}

	keys, err := be.ListKeys(ctx, username)
	if err != nil {
		return fmt.Errorf("listing keys: %w", err)
	}

	if len(keys) == 0 {
		fmt.Println("no authorized keys")
		return nil
	}

	cyan := color.New(color.FgCyan)
	for _, k := range keys {
		cyan.Printf("%s", k.Username)
		fmt.Printf("  %s", k.Fingerprint)
		if k.Comment != "" {
			fmt.Printf("  (%s)", k.Comment)
		}
		fmt.Printf("  added %s\n", k.CreatedAt.Format("2006-01-02"))
	}
	return nil
}

func runKeysRemove(ctx context.Context, be *backend.SQLite, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: keygate keys rm USER FINGERPRINT")
	}

	if err := be.RemoveKey(ctx, args[0], args[1]); err != nil {
		return fmt.Errorf("revoking key: %w", err)
	}

	fmt.Println("key revoked")
	fmt.Println("note: cached decisions persist until their TTL expires; run 'keygate reset' to drop them now")
	return nil
}
