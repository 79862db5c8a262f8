package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ricardofaria/raffletrack-backend/api/routes"
	"github.com/ricardofaria/raffletrack-backend/internal/blocks"
	"github.com/ricardofaria/raffletrack-backend/internal/campaigns"
	"github.com/ricardofaria/raffletrack-backend/internal/importer"
	"github.com/ricardofaria/raffletrack-backend/internal/ledger"
	"github.com/ricardofaria/raffletrack-backend/internal/reconcile"
	"github.com/ricardofaria/raffletrack-backend/internal/scouts"
	"github.com/ricardofaria/raffletrack-backend/pkg/config"
	"github.com/ricardofaria/raffletrack-backend/pkg/db"
	"github.com/ricardofaria/raffletrack-backend/pkg/logger"
	"github.com/ricardofaria/raffletrack-backend/pkg/metrics"
	"github.com/ricardofaria/raffletrack-backend/pkg/migrate"
	"github.com/ricardofaria/raffletrack-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	ledgerMetrics := metrics.NewLedgerMetrics(registry)

	campaignRepo := campaigns.NewRepository(dbClient.DB())
	scoutRepo := scouts.NewRepository(dbClient.DB())
	blockRepo := blocks.NewRepository(dbClient.DB())
	ledgerRepo := ledger.NewRepository(dbClient.DB())
	importRepo := importer.NewRepository(dbClient.DB())

	campaignService, err := campaigns.NewService(campaignRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create campaign service", err)
		os.Exit(1)
	}
	scoutService, err := scouts.NewService(scoutRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create scout service", err)
		os.Exit(1)
	}
	blockService, err := blocks.NewService(blockRepo, campaignRepo, scoutRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create block service", err)
		os.Exit(1)
	}
	ledgerService, err := ledger.NewService(ledgerRepo, dbClient, ledgerMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}
	reconcileService, err := reconcile.NewService(blockRepo, ledgerService)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile service", err)
		os.Exit(1)
	}
	importService, err := importer.NewService(importRepo, ledgerService, dbClient, cfg.Import)
	if err != nil {
		logg.Error(context.Background(), "failed to create import service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			registry,
			campaignService,
			scoutService,
			blockService,
			ledgerService,
			reconcileService,
			importService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
