package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"gmscanner/internal/backend"
	"gmscanner/internal/cache"
	"gmscanner/internal/catalog"
	"gmscanner/internal/cli"
	"gmscanner/internal/config"
	"gmscanner/internal/core"
	apphttp "gmscanner/internal/http"
	"gmscanner/internal/ledger"
	applog "gmscanner/internal/log"
	"gmscanner/internal/services"
	"gmscanner/internal/worker"
)

func main() {
	// Load .env for local development; missing is fine.
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(logger.Logger)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Station stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Station stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *applog.Logger) error {
	logger.Info("Starting GM scanner station",
		applog.FieldDeviceID, cfg.DeviceID,
		applog.FieldMode, cfg.OperatingMode,
		"scoring_mode", cfg.ScoringMode,
		"catalog_source", cfg.CatalogSource)

	src, err := cli.CatalogSource(ctx, cfg)
	if err != nil {
		return fmt.Errorf("catalog source: %w", err)
	}
	tokens, err := catalog.NewLive(ctx, src)
	if err != nil {
		return err
	}
	logger.Info("Token catalog loaded", "tokens", tokens.Len())

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg, tokens)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Warn("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	ledgerLog := logger.WithComponent(applog.ComponentLedger)
	unsubscribe := res.Strategy.Subscribe(func(evt ledger.Event) {
		switch e := evt.(type) {
		case ledger.TransactionAdded:
			for _, g := range e.NewGroups {
				ledgerLog.Info("Group completed",
					applog.FieldTeamID, e.Transaction.TeamID,
					"group", g.DisplayName,
					"multiplier", g.Multiplier,
					applog.FieldScore, core.FormatDollars(e.TeamScore.Score))
			}
		default:
			ledgerLog.Debug("Ledger event", "kind", evt.Kind())
		}
	})
	defer unsubscribe()

	scans := services.NewScanService(res.Strategy, tokens, cfg.DeviceID, core.Mode(cfg.ScoringMode))
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Scans:    scans,
		Strategy: res.Strategy,
		Scores:   services.NewScoreAggregator(res.Strategy),
		Logger:   logger.WithComponent(applog.ComponentHTTP),
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		logger.Info("Shutting down HTTP server", applog.FieldOperation, applog.OpShutdown)
		return srv.Shutdown(shutdownCtx)
	})

	if res.Networked != nil {
		w := worker.NewOrchestratorWorker(res.Networked)
		g.Go(func() error {
			return ignoreCanceled(w.Run(gctx, res.Events))
		})
	}

	if cfg.CatalogRefreshInterval > 0 {
		g.Go(func() error {
			return ignoreCanceled(tokens.Run(gctx, cfg.CatalogRefreshInterval))
		})
	}

	if cleaner, ok := src.(cache.Cleaner); ok {
		janitor := cache.NewJanitor(cfg.CatalogCacheTTL, cleaner)
		g.Go(func() error {
			return ignoreCanceled(janitor.Run(gctx))
		})
	}

	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
