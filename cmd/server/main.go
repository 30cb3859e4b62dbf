package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/tube-comb/app/aggregator"
	"github.com/lysyi3m/tube-comb/app/api"
	"github.com/lysyi3m/tube-comb/app/cfg"
	"github.com/lysyi3m/tube-comb/app/database"
	"github.com/lysyi3m/tube-comb/app/fetch"
	"github.com/lysyi3m/tube-comb/app/mirror"
	"github.com/lysyi3m/tube-comb/app/proxy"
	"github.com/lysyi3m/tube-comb/app/stream"
	"github.com/lysyi3m/tube-comb/app/tasks"
)

func main() {
	// Load configuration from environment variables and command-line flags
	c, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if c == nil {
		// Help was shown
		return
	}

	level := slog.LevelInfo
	if c.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("Starting Tube Comb server", "version", c.Version, "timezone", c.Timezone)

	// Mirror registry
	registry, err := mirror.Load(c.MirrorsFile)
	if err != nil {
		slog.Error("Failed to load mirrors", "path", c.MirrorsFile, "error", err)
		os.Exit(1)
	}
	slog.Info("Mirrors loaded", "path", c.MirrorsFile, "bases", len(registry.Bases()))

	// Telemetry database
	db, err := database.Open(c.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", c.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", c.DBPath, "schema_version", version, "dirty", dirty)

	statsRepo := database.NewStatsRepository(db)

	// Background workers
	scheduler := tasks.NewScheduler(registry, statsRepo, &http.Client{Timeout: 10 * time.Second}, tasks.SchedulerOptions{
		WorkerCount:    c.WorkerCount,
		ProbeInterval:  c.ProbeInterval,
		StatsRetention: c.StatsRetention,
		APIPrefix:      c.APIPrefix,
		UserAgent:      c.UserAgent,
	})
	scheduler.Start()
	defer scheduler.Stop()

	// Race executor and services
	executor := fetch.NewExecutor(registry, fetch.Options{
		APIPrefix:      c.APIPrefix,
		UserAgent:      c.UserAgent,
		ConnectTimeout: c.ConnectTimeout,
		ReadTimeout:    c.ReadTimeout,
		Budget:         c.RaceBudget,
		Observer:       tasks.NewRaceRecorder(scheduler, statsRepo),
	})
	defer executor.CloseIdleConnections()

	service := aggregator.NewService(executor, aggregator.Options{
		Region:         c.Region,
		SearchLibrary:  c.SearchLibrary,
		LibraryTimeout: c.RaceBudget,
	})

	streams := stream.NewResolver(stream.Options{
		FormatsURL:  c.StreamFormatsURL,
		AdaptiveURL: c.StreamAdaptiveURL,
		UserAgent:   c.UserAgent,
		Timeout:     c.ReadTimeout,
	})

	bbs := proxy.NewBBS(proxy.BBSOptions{
		BaseURL:   c.BBSURL,
		UserAgent: c.UserAgent,
		PostRate:  c.BBSPostRate,
		PostBurst: c.BBSPostBurst,
	})

	thumbnails := proxy.NewThumbnails(proxy.ThumbnailOptions{
		Hosts:     registry.Hosts(),
		UserAgent: c.UserAgent,
	})

	// Initialize HTTP server
	handler := api.NewHandler(service, streams, bbs, thumbnails, statsRepo, registry, scheduler, c.AccessCode)
	server := api.NewServer(handler, c.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + c.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", c.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig)
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	// Scheduler, executor and database are released via defer
	slog.Info("Tube Comb server shutdown complete")
}
