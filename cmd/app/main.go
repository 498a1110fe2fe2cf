package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketwatch/internal/api"
	"marketwatch/internal/app"
	"marketwatch/internal/infra"

	"github.com/gin-gonic/gin"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(ctx, *configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	cfg := bootstrap.Config

	// 4. Market cache refresh loop
	bootstrap.Cache.Start(ctx)
	defer bootstrap.Cache.Stop()
	slog.InfoContext(ctx, "✅ Market cache started", slog.Duration("refresh", cfg.RefreshInterval()))

	// 5. Gold prices
	if err := bootstrap.Gold.Start(ctx); err != nil {
		slog.Error("Failed to start gold watcher", slog.Any("error", err))
	}
	defer bootstrap.Gold.Stop()

	// 6. Background icon sync
	if bootstrap.Downloader != nil {
		go bootstrap.SyncIcons(ctx, bootstrap.Cache.CacheableIDs())
	}

	// 7. HTTP API
	deps := api.Deps{
		Prices:     bootstrap.Cache,
		Catalog:    bootstrap.Storage,
		Calculator: bootstrap.Crafter,
		Gold:       bootstrap.Gold,
		Metrics:    infra.GlobalMetrics,
	}
	if bootstrap.Downloader != nil {
		deps.Icons = bootstrap.Downloader
	}
	deps.Regions, _ = cfg.RegionList()

	if infra.ParseLevel(cfg.Logging.Level) > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("✅ HTTP API listening", slog.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", slog.Any("error", err))
			stop()
		}
	}()

	slog.InfoContext(ctx, "✨ Marketwatch fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	slog.Info("👋 Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", slog.Any("error", err))
	}
}
