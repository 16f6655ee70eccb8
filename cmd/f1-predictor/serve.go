package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/f1-predictor/internal/artifact"
	"github.com/yourusername/f1-predictor/internal/health"
	"github.com/yourusername/f1-predictor/internal/metrics"
	"github.com/yourusername/f1-predictor/internal/service"
	"github.com/yourusername/f1-predictor/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the prediction form, JSON API and websocket",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	appLog.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"version":     Version,
		"artifact":    cfg.Artifact.Path,
		"classifier":  cfg.Classifier.Backend,
	}).Info("F1 predictor starting")

	metrics.InitRegistry()

	loader := artifact.NewLoader(cfg.Artifact.Path)
	predictor, startupErr := service.Bootstrap(cfg, loader, appLog)

	var surface web.Predictor
	if startupErr == nil {
		surface = predictor
		defer func() {
			if err := predictor.Close(); err != nil {
				appLog.WithError(err).Error("Failed to close classifier")
			}
		}()
	} else {
		// Keep serving so operators see the blocking message.
		appLog.WithError(startupErr).Error("Predictor unavailable, serving blocking page")
	}

	var healthServer *health.Server
	if cfg.Health.Enabled {
		healthServer = health.NewServer(health.Config{
			ServiceName: cfg.App.Name,
			Version:     Version,
			Commit:      GitCommit,
			Port:        cfg.Health.Port,
			Logger:      appLog,
			Checks: map[string]health.ReadinessChecker{
				"artifact": health.CheckFunc(func(context.Context) error {
					_, err := loader.Get()
					return err
				}),
			},
		})
		if err := healthServer.Start(ctx); err != nil {
			return err
		}
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddress(),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			appLog.WithField("address", metricsServer.Addr).Info("Metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				appLog.WithError(err).Error("Metrics server error")
			}
		}()
	}

	webServer := web.NewServer(cfg.Server, surface, startupErr, appLog)
	if err := webServer.Start(ctx); err != nil {
		return err
	}

	if healthServer != nil {
		healthServer.SetReady(startupErr == nil)
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		appLog.WithField("signal", sig).Info("Shutdown signal received")
	case <-ctx.Done():
	}

	if healthServer != nil {
		healthServer.SetReady(false)
	}
	if err := webServer.Shutdown(); err != nil {
		appLog.WithError(err).Error("Failed to shut down prediction server")
	}
	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			appLog.WithError(err).Error("Failed to shut down metrics server")
		}
	}
	if healthServer != nil {
		_ = healthServer.Shutdown()
	}

	appLog.Info("F1 predictor stopped")
	return nil
}
