package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/funnellens/funnellens/internal/api"
	"github.com/funnellens/funnellens/internal/config"
	"github.com/funnellens/funnellens/internal/metrics"
	"github.com/funnellens/funnellens/internal/pkg/distlock"
	"github.com/funnellens/funnellens/internal/pkg/logger"
	"github.com/funnellens/funnellens/internal/repository/postgres"
	"github.com/funnellens/funnellens/internal/service/attribution"
	"github.com/funnellens/funnellens/internal/service/ingest"
	"github.com/funnellens/funnellens/internal/storage"
)

func fatal(msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config.yaml")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fatal("Failed to load config", err)
	}
	if err := cfg.Validate(); err != nil {
		fatal("Invalid config", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.Redact())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		fatal("Failed to connect to database", err)
	}
	defer db.Close()
	logger.Info("Connected to database")

	// Redis only backs the readiness check here; locking lives in the worker.
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = distlock.Dial(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Warn("Redis unavailable, readiness will skip it", "error", err)
		} else {
			defer redisClient.Close()
		}
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	engine := attribution.NewService(postgres.NewAttributionRepo(db),
		attribution.WithRecorder(m),
		attribution.WithBaselineLookback(cfg.Attribution.BaselineLookbackDays),
	)

	ingestOpts := []ingest.Option{ingest.WithRecorder(m)}
	if cfg.Ingest.ArchiveEnabled {
		archive, err := storage.New(ctx, cfg.Storage)
		if err != nil {
			fatal("Failed to initialize import archive", err)
		}
		ingestOpts = append(ingestOpts, ingest.WithArchive(archive))
		logger.Info("Import archive enabled", "type", cfg.Storage.Type)
	}
	importer := ingest.NewService(postgres.NewIngestRepo(db), cfg.Ingest.FanIDSalt, ingestOpts...)

	handlers := api.NewHandlers(engine, importer, cfg.Server.MaxUploadMB)
	server := api.NewServer(handlers, api.RouteOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Health:         api.NewHealthChecker(db, redisClient),
		Metrics:        promhttp.Handler(),
	})

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := cfg.Server.Addr()
		logger.Info("Starting server", "addr", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			fatal("Server error", err)
		}
	}()

	<-done
	logger.Info("Shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
