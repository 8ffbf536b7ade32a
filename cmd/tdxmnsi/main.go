// tdxmnsi batch-processes TDX Hydro streamnet/basin regions — rekeying ids
// into a global namespace, computing the Modified Nested Set Index,
// joining basins to their stream reaches, and planning dissolve groups —
// and serves the results over a delineation HTTP API.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"log/slog"

	"github.com/wikiwatershed/tdxmnsi/internal/api"
	"github.com/wikiwatershed/tdxmnsi/internal/auth"
	"github.com/wikiwatershed/tdxmnsi/internal/config"
	"github.com/wikiwatershed/tdxmnsi/internal/crosswalk"
	"github.com/wikiwatershed/tdxmnsi/internal/delineation"
	"github.com/wikiwatershed/tdxmnsi/internal/domain"
	"github.com/wikiwatershed/tdxmnsi/internal/leader"
	"github.com/wikiwatershed/tdxmnsi/internal/pipeline"
	"github.com/wikiwatershed/tdxmnsi/internal/postgres"
	"github.com/wikiwatershed/tdxmnsi/internal/retention"
	"github.com/wikiwatershed/tdxmnsi/internal/scheduler"
	"github.com/wikiwatershed/tdxmnsi/internal/storage"
)

// retentionInterval is how often the snapshot sweep checks each region.
const retentionInterval = 1 * time.Hour

func main() {
	baseHandler := slog.NewJSONHandler(os.Stdout, nil)
	logger := slog.New(api.NewContextHandler(baseHandler))
	slog.SetDefault(logger)

	cfgPath := config.ResolvePath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "path", cfgPath, "error", err)
		os.Exit(1)
	}
	if cfgPath != "" {
		slog.Info("config loaded", "path", cfgPath, "regions", len(cfg.Regions))
	}

	ctx := context.Background()

	sink, sinkHealth, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}

	srv := &api.Server{
		StorageHealth: sinkHealth,
	}

	switch {
	case os.Getenv("TDXMNSI_API_KEY") != "":
		srv.Auth = auth.APIKey(os.Getenv("TDXMNSI_API_KEY"))
		slog.Info("API key authentication enabled")
	default:
		srv.Auth = auth.Noop()
	}

	loader := delineation.NewStorageLoader(sink)
	delineationSvc := delineation.NewService(loader)
	srv.Delineation = delineationSvc

	var pool *postgres.RegionJobStore
	var stopLeader func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		dbPool, err := postgres.NewPool(ctx, dbURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := postgres.Migrate(ctx, dbPool); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}

		pool = postgres.NewRegionJobStore(dbPool)
		srv.DBHealth = postgres.NewHealthChecker(dbPool)

		batch := &pipeline.Batch{
			Config:  cfg,
			Reader:  pipeline.GeoJSONReader{},
			Sink:    sink,
			Headers: crosswalk.New(cfg.CrosswalkURL, http.DefaultClient),
			Ledger:  pool,
			Dir:     os.Getenv("TDXMNSI_INPUT_DIR"),
		}
		srv.Batch = batch

		regionCodes := make([]domain.RegionCode, 0, len(cfg.Regions))
		for _, rc := range cfg.Regions {
			regionCodes = append(regionCodes, domain.RegionCode(rc.Code))
		}

		startBackgroundWorkers := func(ctx context.Context) func() {
			sched := scheduler.New(batch, cfg.Schedule)
			if err := sched.Start(ctx); err != nil {
				slog.Error("scheduler: failed to start", "error", err)
			}

			sweeper := retention.New(sink, regionCodes, cfg.Storage.Retention, retentionInterval)
			sweeper.Start(ctx)

			return func() {
				sched.Stop()
				sweeper.Stop()
			}
		}

		tryLock := func(ctx context.Context) (bool, error) {
			var acquired bool
			err := dbPool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", leader.AdvisoryLockID).Scan(&acquired)
			return acquired, err
		}
		elector := leader.New(tryLock, leader.RetryInterval, startBackgroundWorkers)
		elector.Start(ctx)
		stopLeader = elector.Stop
		slog.Info("leader election started")
	} else {
		slog.Warn("DATABASE_URL not set; batch scheduling and the region job ledger are disabled, serving delineation queries only")
	}

	if corsEnv := os.Getenv("CORS_ORIGINS"); corsEnv != "" {
		srv.CORSOrigins = strings.Split(corsEnv, ",")
	}
	if rl := os.Getenv("RATE_LIMIT"); rl != "0" {
		rlCfg := api.DefaultRateLimitConfig()
		srv.RateLimit = &rlCfg
	}

	router := api.NewRouter(srv)

	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS13},
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()
	slog.Info("starting tdxmnsi", "addr", addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received signal, shutting down", "signal", sig)
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	if stopLeader != nil {
		stopLeader()
	}
	if srv.RateLimiterStop != nil {
		srv.RateLimiterStop()
	}

	slog.Info("tdxmnsi shutdown complete")
}
