// entry point of the application
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"jusdown/internal/assembler"
	"jusdown/internal/billing"
	"jusdown/internal/config"
	"jusdown/internal/depmanager"
	"jusdown/internal/downloader"
	"jusdown/internal/identity"
	httprouter "jusdown/internal/infrastructure/delivery/http"
	"jusdown/internal/observability"
	"jusdown/internal/proxymgr"
	"jusdown/internal/service"
	"jusdown/internal/subscription"
	"jusdown/internal/validator"
	"jusdown/internal/workspace"
	httpserver "jusdown/pkg/http/server"
	"jusdown/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("jusdown stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New()
	if err != nil {
		return err
	}

	log, err := logger.New(&logger.Options{
		AddSource: true,
		Level:     cfg.App.LogLevel,
	})
	if err != nil {
		slog.WarnContext(ctx, "logger level invalid; defaulting to info", slog.Any("error", err))
	}

	metrics := observability.New(nil)

	depMgr := depmanager.New(log, cfg)

	log.InfoContext(ctx, "checking if yt-dlp, gallery-dl, ffmpeg are installed. it may take some time...")

	if err := depMgr.Start(ctx); err != nil {
		return err
	}

	// a nil *proxymgr.Manager must not end up inside the interface
	var proxies downloader.ProxyPicker
	if len(cfg.Proxy.Proxies) > 0 {
		proxyMgr := proxymgr.New(log, cfg, metrics)
		go proxyMgr.StartHealthChecker(ctx)

		proxies = proxyMgr

		log.InfoContext(ctx, "proxy manager initialized", slog.Int("proxy_count", len(cfg.Proxy.Proxies)))
	}

	workspaces, err := workspace.New(log, cfg.Dir.Temp, metrics)
	if err != nil {
		return err
	}

	go workspaces.StartSweeper(ctx, cfg.Dir.SweepInterval, cfg.Dir.StaleMaxAge)

	subs, err := subscription.New(ctx, cfg.Subscription)
	if err != nil {
		return err
	}
	defer subs.Close()

	dispatcher := downloader.New(log, cfg,
		downloader.NewYTdlp(log, cfg, depMgr),
		downloader.NewGalleryDL(log, depMgr),
		proxies,
		metrics,
	)

	pipeline := service.New(log,
		validator.New(log, cfg, subs),
		workspaces,
		dispatcher,
		assembler.New(log, cfg),
		metrics,
	)

	router := httprouter.New(log, cfg, pipeline,
		identity.NewResolver(cfg.Auth),
		subs,
		billing.NewWebhook(log, cfg.Billing, subs, metrics),
		metrics,
	)

	httpSrv := httpserver.New(router, httpserver.Options{
		Addr:              cfg.HTTP.Port,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ShutdownTimeout:   cfg.HTTP.ShutdownTimeout,
	})

	log.InfoContext(ctx, "jusdown started",
		slog.String("port", cfg.HTTP.Port),
		slog.String("subscription_provider", cfg.Subscription.Provider),
		slog.String("temp_root", workspaces.Root()))

	// Waiting for shutdown signal
	select {
	case <-ctx.Done():
	case err := <-httpSrv.Notify():
		log.ErrorContext(ctx, "http server stopped", slog.Any("error", err))
	}

	if err := httpSrv.Shutdown(); err != nil {
		log.Error("http server shutdown", slog.Any("error", err))
	}

	log.Info("jusdown shut down gracefully")

	return nil
}
