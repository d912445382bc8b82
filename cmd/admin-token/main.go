package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/arena-gamesync/internal/auth"
	"github.com/arena-gamesync/internal/config"
)

func main() {
	if err := run(os.Args[1:], os.Getenv, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

// run parses args, resolves the signing secret and writes one token to out
func run(args []string, getenv func(string) string, out io.Writer) error {
	fs := flag.NewFlagSet("admin-token", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file (optional)")
	envPath := fs.String("env", ".env", "Path to .env file")
	secret := fs.String("secret", "", "Signing secret (defaults to $ADMIN_SECRET or auth.admin_secret)")
	subject := fs.String("subject", "operator", "Token subject")
	ttl := fs.Duration("ttl", 0, "Token lifetime (defaults to auth.token_ttl)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := config.LoadDotEnv(*envPath); err != nil {
		return fmt.Errorf("loading %s: %w", *envPath, err)
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	key := *secret
	if key == "" {
		key = getenv("ADMIN_SECRET")
	}
	if key == "" {
		key = cfg.Auth.AdminSecret
	}

	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = cfg.Auth.TokenTTL
	}

	token, err := auth.NewVerifier(key).Mint(*subject, lifetime)
	if err != nil {
		return fmt.Errorf("minting token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
