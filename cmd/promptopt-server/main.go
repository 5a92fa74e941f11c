// Command promptopt-server runs the optimization pipeline behind an HTTP
// API: /v1/optimize, /v1/chat, /v1/health, /v1/metrics.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"promptopt/internal/dashboardclient"
	"promptopt/internal/httpapi"
	"promptopt/internal/obs"
	"promptopt/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadSettings() {
	viper.SetEnvPrefix("PROMPTOPT")
	viper.AutomaticEnv()
	viper.SetDefault("port", "8080")
	viper.SetDefault("middleware_api_key", "")
	viper.SetDefault("dashboard_base_url", "")
	viper.SetDefault("dashboard_api_key", "")
	viper.SetDefault("cache_size", 10000)
	viper.SetDefault("cache_ttl_seconds", 600)
}

func run() error {
	loadSettings()

	logger := obs.NewComponentLogger("Main")
	logger.Info("Starting promptopt server...")

	metrics := obs.NewMetrics()
	pl := pipeline.New(pipelineOptions(logger, metrics)...)

	dash := dashboardclient.New(
		viper.GetString("dashboard_base_url"),
		viper.GetString("dashboard_api_key"),
		obs.NewComponentLogger("DashboardClient"),
	)

	verifier := httpapi.NewAPIKeyVerifier(
		viper.GetString("middleware_api_key"),
		viper.GetString("dashboard_base_url"),
	)

	server := httpapi.NewServer(pl, dash, verifier, metrics, obs.NewComponentLogger("HTTPAPI"))

	httpServer := &http.Server{
		Addr:         ":" + viper.GetString("port"),
		Handler:      server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return serveUntilSignal(httpServer, logger)
}

func pipelineOptions(logger obs.Logger, metrics *obs.Metrics) []pipeline.Option {
	return []pipeline.Option{
		pipeline.WithLogger(obs.NewComponentLogger("Pipeline")),
		pipeline.WithMetrics(metrics),
	}
}

func serveUntilSignal(server *http.Server, logger obs.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening on %s", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err == nil || err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-quit:
		logger.Info("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shutdownErr := server.Shutdown(ctx)

		serveErr := <-errCh
		if serveErr == http.ErrServerClosed {
			serveErr = nil
		}

		if shutdownErr != nil {
			return fmt.Errorf("shutdown: %w", shutdownErr)
		}
		if serveErr != nil {
			return fmt.Errorf("server error: %w", serveErr)
		}
		logger.Info("Server stopped")
		return nil
	}
}
