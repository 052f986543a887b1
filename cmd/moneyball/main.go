package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/Moneyball/internal/api"
	"github.com/MikeSquared-Agency/Moneyball/internal/backend"
	"github.com/MikeSquared-Agency/Moneyball/internal/config"
	"github.com/MikeSquared-Agency/Moneyball/internal/dashboard"
	"github.com/MikeSquared-Agency/Moneyball/internal/events"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = config.NewLogger(cfg.Logging, os.Stdout)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Catalog backend
	db, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open catalog backend", "backend", cfg.Database.Backend, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Events (optional)
	var eventsClient events.Client
	if cfg.Events.URL != "" {
		nc, err := events.NewNATSClient(ctx, cfg.Events.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to NATS, running without events", "error", err)
		} else {
			eventsClient = nc
			defer nc.Close()
			logger.Info("connected to NATS")
		}
	}

	// Dashboard session
	session := dashboard.NewSession(db.Catalog, eventsClient, dashboard.Options{
		FallbackToBuiltin: cfg.Dashboard.FallbackToBuiltin,
		DefaultStrategy:   cfg.Dashboard.DefaultStrategy,
		SummaryTopN:       cfg.Dashboard.SummaryTopN,
	}, logger)
	if err := session.Load(ctx); err != nil {
		logger.Error("failed to load catalog", "error", err)
		os.Exit(1)
	}

	refresher := dashboard.NewRefresher(session, cfg.RefreshInterval(), logger)
	refresher.Start(ctx)
	defer refresher.Stop()
	if cfg.RefreshInterval() > 0 {
		logger.Info("catalog refresher started", "interval", cfg.RefreshInterval())
	}

	// API server
	router := api.NewRouter(session, db.Directory, cfg.Server, logger)
	apiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Metrics server
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: api.NewMetricsRouter(),
	}

	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("API server error", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}
