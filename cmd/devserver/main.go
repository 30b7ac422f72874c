// Command devserver serves the sample data sources through the dynamic OData
// routes, e.g. GET /odata/anotherdatasource/Students(101)/School.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	odata "github.com/nlstn/go-odata-routing"
)

func main() {
	cfg, err := LoadConfig(os.Args[1:], os.Getenv, os.Stderr)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	service, err := newService(cfg, logger)
	if err != nil {
		logger.Error("Failed to create service", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           service,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Starting dev server", "addr", cfg.Addr, "prefix", cfg.Prefix, "driver", cfg.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
}

func newService(cfg Config, logger *slog.Logger) (*odata.Service, error) {
	service, err := odata.NewService(odata.ServiceConfig{
		RoutePrefix: cfg.Prefix,
		Store:       odata.StoreConfig{Driver: cfg.Driver, DSN: cfg.DSN},
	})
	if err != nil {
		return nil, err
	}
	if err := service.SetLogger(logger); err != nil {
		return nil, err
	}
	if cfg.ServerTiming {
		if err := service.SetObservability(odata.ObservabilityConfig{
			ServiceName:        "odata-devserver",
			EnableServerTiming: true,
		}); err != nil {
			return nil, err
		}
	}
	if err := service.AddSampleDataSources(); err != nil {
		return nil, err
	}
	if err := service.MapDynamicRoute(); err != nil {
		return nil, err
	}
	return service, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
