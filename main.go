package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"guildbot/internal/config"
	"guildbot/internal/logging"
	"guildbot/internal/security"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	setSecret := flag.String("set-secret", "", "store a secret read from stdin under `name` and exit")
	deleteSecret := flag.String("delete-secret", "", "remove the secret stored under `name` and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	if *setSecret != "" {
		if err := storeSecret(*setSecret); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	if *deleteSecret != "" {
		if err := removeSecret(*deleteSecret); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	boot := logging.Global(config.Defaults().Logging)
	loader := config.NewLoader(*configPath, boot)
	cfg, err := loader.Load()
	if err != nil {
		boot.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.Global(cfg.Logging)
	logger.Info().Str("path", loader.FilePath()).Msg("config loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := NewApp(loader, cfg, logger).Run(ctx); err != nil {
		log.Error().Err(err).Msg("bot stopped with error")
		os.Exit(1)
	}
}

func openKeyStore() (*security.KeyStore, error) {
	cfg := config.Defaults()
	if v := os.Getenv("VAULT_PASSPHRASE"); v != "" {
		cfg.Vault.Passphrase = v
	}
	return security.NewKeyStore(cfg.Vault.Dir, cfg.Vault.Passphrase)
}

// storeSecret reads one line from stdin and saves it in the key store.
func storeSecret(name string) error {
	ks, err := openKeyStore()
	if err != nil {
		return err
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("read secret: %w", err)
	}
	value := strings.TrimSpace(line)
	if value == "" {
		return fmt.Errorf("empty secret")
	}
	if err := ks.Set(name, value); err != nil {
		return fmt.Errorf("store secret %s: %w", name, err)
	}
	fmt.Printf("stored %s (%s)\n", name, security.MaskKey(value))
	return nil
}

func removeSecret(name string) error {
	ks, err := openKeyStore()
	if err != nil {
		return err
	}
	if err := ks.Delete(name); err != nil {
		return fmt.Errorf("delete secret %s: %w", name, err)
	}
	fmt.Printf("deleted %s\n", name)
	return nil
}
