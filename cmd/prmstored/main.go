// ABOUTME: Entry point for the prmstored entity-store service
// ABOUTME: Wires config, logging, the SQLite pool and the entity store

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/openprm/datastore/internal/config"
	"github.com/openprm/datastore/internal/datastore"
)

// Version is set by goreleaser at build time.
var version = "dev"

// getConfigPath returns the path to the prmstored config file.
// Priority: PRMSTORE_CONFIG env var > XDG_CONFIG_HOME/prmstore/prmstored.yaml
// > ~/.config/prmstore/prmstored.yaml
func getConfigPath() string {
	if envPath := os.Getenv("PRMSTORE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "prmstored.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "prmstore", "prmstored.yaml")
}

// setupLogger builds the process logger from config and installs it as the
// slog default so component loggers inherit it.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: prmstored <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve      Start the entity store service")
		fmt.Println("  version    Print the version")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := serve(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

// serve loads config, opens the pool and holds the store open until the
// process is signalled. The host dispatch layer that routes named calls onto
// the store is a separate collaborator and attaches out of process.
func serve() error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	pool, err := datastore.NewSQLitePool(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening pool: %w", err)
	}
	defer pool.Close()

	_ = datastore.New(pool)
	logger.Info("entity store ready", "version", version, "database", cfg.Database.Path)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	logger.Info("shutting down", "signal", sig.String())
	return nil
}
