// Package cli holds the start-up steps shared by the station binaries.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"gmscanner/internal/catalog"
	"gmscanner/internal/config"
	applog "gmscanner/internal/log"
)

// SetupLogger installs a text logger at the given level as the process
// default. Unknown levels fall back to info with a warning.
func SetupLogger(level string) *applog.Logger {
	lvl, err := applog.ParseLevel(level)
	logger := applog.New(applog.Config{Level: lvl, Component: applog.ComponentApp, Output: os.Stdout})
	applog.SetDefault(logger)
	if err != nil {
		logger.Warn("Falling back to info logging", applog.FieldError, err)
	}
	return logger
}

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile(paths ...string) {
	_ = godotenv.Load(paths...)
}

// LoadAndValidateConfig loads configuration and exits the process if it is
// invalid.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// CatalogSource builds the token source selected in the config.
func CatalogSource(ctx context.Context, cfg *config.Config) (catalog.Source, error) {
	switch cfg.CatalogSource {
	case "sheets":
		return catalog.NewSheetsSource(ctx, catalog.SheetsConfig{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleTokensSheet,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
			CacheTTL:           cfg.CatalogCacheTTL,
		})
	case "file", "":
		return catalog.NewFileSource(cfg.TokensFile, catalog.DefaultPaths[1]), nil
	default:
		return nil, fmt.Errorf("unknown catalog source %q", cfg.CatalogSource)
	}
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
