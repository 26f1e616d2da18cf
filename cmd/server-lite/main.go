// Package main provides the standalone entry point for the CLL Genie server.
// It needs no external services: data lives in SQLite under a single data
// directory and summaries are cached in memory.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cll-genie-server/internal/api"
	"github.com/cll-genie-server/internal/app"
	"github.com/cll-genie-server/internal/config"
	"github.com/cll-genie-server/internal/logging"
	"github.com/cll-genie-server/internal/mcp"
	"github.com/cll-genie-server/internal/setup"
)

func main() {
	cfg := config.LoadLiteConfig()

	// Check for setup subcommand
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		cli := setup.NewCLI(cfg, os.Stdout)
		if err := cli.Run(context.Background(), os.Args[2:]); err != nil {
			log.Fatalf("Setup failed: %v", err)
		}
		return
	}

	if err := run(cfg); err != nil {
		log.Fatalf("CLL Genie server (lite) failed: %v", err)
	}
}

func run(cfg *config.LiteConfig) error {
	if err := cfg.EnsureDataDir(); err != nil {
		return err
	}

	configManager := cfg.Manager()
	if err := configManager.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	fullConfig := configManager.GetConfig()

	logger, logCloser, err := logging.New(fullConfig.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logCloser.Close()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	application, err := app.New(ctx, fullConfig, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	logger.WithField("mode", cfg.Mode).WithField("data_dir", cfg.DataDir).Info("Starting CLL Genie server (lite)")

	switch cfg.Mode {
	case config.ModeMCP:
		server := mcp.NewServer(fullConfig.MCP, application.MCPServices(), logger)
		if err := server.Start(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("MCP server failed: %w", err)
		}
	case config.ModeHTTP:
		server := api.NewServer(configManager, application.APIServices(), logger)
		if err := server.Start(ctx); err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	default:
		return fmt.Errorf("unknown mode %q", cfg.Mode)
	}

	logger.Info("CLL Genie server (lite) stopped")
	return nil
}
