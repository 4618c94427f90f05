// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mindstream/mindstream/internal/config"
	"github.com/mindstream/mindstream/internal/logging"
	"github.com/mindstream/mindstream/internal/metrics"
	"github.com/mindstream/mindstream/internal/orgs"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// App holds the shared, long-lived services for the application: the
// logger, the resolved pipeline configuration, and the org registry.
// It is initialized once at startup and passed to the commands that need it.
type App struct {
	logger   *zap.Logger
	cfg      config.Config
	registry *orgs.Registry
}

// GetLogger returns the shared zap logger instance.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetConfig returns the pipeline configuration resolved at startup.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// GetRegistry returns the org registry.
func (a *App) GetRegistry() *orgs.Registry {
	return a.registry
}

// NewApp creates and initializes a new App struct based on the application's
// configuration. Viper is read exactly once here; commands work off the
// typed config from then on. Designed to fail fast if configuration is
// invalid.
func NewApp(_ context.Context) (*App, error) {
	l := logging.L
	l.Info("Initializing application services...")

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	registry, err := orgs.NewRegistry(viper.GetString("orgs.base_dir"), l)
	if err != nil {
		return nil, fmt.Errorf("open org registry: %w", err)
	}

	metrics.Init()
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			l.Info("Starting metrics server", zap.String("addr", cfg.MetricsAddr))
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				l.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	l.Info("Application services initialized successfully.")
	return &App{
		logger:   l,
		cfg:      cfg,
		registry: registry,
	}, nil
}

// Close gracefully shuts down the App container. It is called by a Cobra
// hook after the command finishes execution.
func (a *App) Close() {
	a.GetLogger().Info("Shutting down application services...")

	// Flushing the logger buffer is important to ensure all logs are written before the application exits.
	if err := a.GetLogger().Sync(); err != nil {
		// Best-effort attempt; logging itself might be failing.
		a.GetLogger().Warn("Error syncing logger on shutdown", zap.Error(err))
	}
}
