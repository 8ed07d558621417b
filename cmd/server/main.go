// Energy simulation dashboard server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashureev/energy-pipeline/internal/api"
	"github.com/ashureev/energy-pipeline/internal/config"
	"github.com/ashureev/energy-pipeline/internal/feed"
	"github.com/ashureev/energy-pipeline/internal/history"
	"github.com/ashureev/energy-pipeline/internal/metrics"
	"github.com/ashureev/energy-pipeline/internal/middleware"
	"github.com/ashureev/energy-pipeline/internal/scheduler"
	"github.com/ashureev/energy-pipeline/internal/status"
	"github.com/ashureev/energy-pipeline/internal/store"
	"github.com/ashureev/energy-pipeline/internal/trigger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting dashboard server", "port", cfg.Port, "api_url", cfg.Trigger.APIURL, "dev", cfg.IsDevelopment())

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	hist := history.New(repo)
	reporter := status.NewReporter(nil)
	hub := feed.NewHub()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// All schedulers built by this process share one timer slot so a rebuild
	// disarms whatever the previous one left running.
	slot := scheduler.NewSlot()
	build := func(c *config.Config) *scheduler.Scheduler {
		trig := trigger.NewClient(c.Trigger.APIURL, c.Trigger.Path, c.Trigger.Timeout)
		return scheduler.New(ctx, schedulerConfig(c), trig, hist, repo, reporter, scheduler.Options{
			Slot:    slot,
			Metrics: m,
			Logger:  logger,
		})
	}

	var current atomic.Pointer[scheduler.Scheduler]
	current.Store(build(cfg))

	go watchReload(ctx, &current, build)

	simHandler := api.NewSimulationHandler(&current, hist, reporter)
	healthHandler := api.NewHealthHandler(repo)
	wsHandler := feed.NewHandler(reporter, hub, cfg.FrontendURL, cfg.IsDevelopment())

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))

	healthHandler.RegisterHealth(r)
	simHandler.RegisterRoutes(r)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	r.Get("/ws/status", wsHandler.ServeHTTP)

	// Note: no WriteTimeout. Continuous starts wait for the first run and the
	// status feed is long-lived.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	current.Load().Close()
	hub.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

func schedulerConfig(c *config.Config) scheduler.Config {
	return scheduler.Config{
		Interval:  c.Scheduler.Interval,
		MaxRuns:   c.Scheduler.MaxRuns,
		MaxWindow: c.Scheduler.MaxWindow,
		Cooldown:  c.Scheduler.Cooldown,
	}
}

// watchReload rebuilds the scheduler from fresh configuration on SIGHUP.
// An active continuous sequence is cancelled by the rebuild; the cooldown
// mark and history persist.
func watchReload(ctx context.Context, current *atomic.Pointer[scheduler.Scheduler], build func(*config.Config) *scheduler.Scheduler) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := godotenv.Overload(); err != nil {
				slog.Debug("No .env file to reload", "error", err)
			}
			cfg, err := config.Load()
			if err != nil {
				slog.Error("Reload rejected, keeping current configuration", "error", err)
				continue
			}
			current.Store(build(cfg))
			slog.Info("Scheduler rebuilt from reloaded configuration",
				"interval", cfg.Scheduler.Interval,
				"max_runs", cfg.Scheduler.MaxRuns,
				"max_window", cfg.Scheduler.MaxWindow,
				"cooldown", cfg.Scheduler.Cooldown,
			)
		}
	}
}
