package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/funnellens/funnellens/internal/config"
	"github.com/funnellens/funnellens/internal/digest"
	"github.com/funnellens/funnellens/internal/metrics"
	"github.com/funnellens/funnellens/internal/pkg/distlock"
	"github.com/funnellens/funnellens/internal/pkg/logger"
	"github.com/funnellens/funnellens/internal/repository/postgres"
	"github.com/funnellens/funnellens/internal/service/attribution"
	"github.com/funnellens/funnellens/internal/worker"
)

func fatal(msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config.yaml")
	once := flag.Bool("once", false, "run a single attribution pass and exit")
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
	logger.Info("Starting FunnelLens attribution worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		fatal("Failed to connect to database", err)
	}
	defer db.Close()
	logger.Info("Connected to database")

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = distlock.Dial(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Warn("Redis connection failed, falling back to PG advisory locks", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			logger.Info("Redis connected, distributed locking enabled")
		}
	} else {
		logger.Info("Redis not configured, using PG advisory locks")
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	engine := attribution.NewService(postgres.NewAttributionRepo(db),
		attribution.WithRecorder(m),
		attribution.WithBaselineLookback(cfg.Attribution.BaselineLookbackDays),
	)

	opts := []worker.Option{
		worker.WithInterval(cfg.Worker.Interval()),
		worker.WithWindowHours(cfg.Attribution.FanWindowHours),
		worker.WithDigestRecorder(m),
	}
	if cfg.Digest.Enabled {
		renderer, err := digest.NewRenderer()
		if err != nil {
			fatal("Failed to build digest templates", err)
		}
		sender, err := digest.NewSESSender(ctx, cfg.Digest)
		if err != nil {
			fatal("Failed to initialize SES", err)
		}
		opts = append(opts, worker.WithDigest(renderer, sender, cfg.Digest.Interval(), cfg.Digest.ReportDays))
		logger.Info("Digests enabled", "from", cfg.Digest.FromEmail, "interval", cfg.Digest.Interval().String())
	}

	locks := distlock.NewFactory(redisClient, db, cfg.Worker.LockTTL())
	w := worker.NewAttributionWorker(postgres.NewCreatorRepo(db), engine, locks, opts...)

	if *once {
		stats, err := w.RunOnce(ctx)
		if err != nil {
			fatal("Attribution pass failed", err)
		}
		logger.Info("Attribution pass complete", "creators", stats.Creators, "skipped", stats.Skipped, "failed", stats.Failed,
			"referral_link", stats.Fans.ReferralLink, "weighted_window", stats.Fans.WeightedWindow, "no_data", stats.Fans.NoData)
		return
	}

	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Worker.MetricsListenPort),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Metrics listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server error", "error", err)
		}
	}()

	if err := w.Start(); err != nil {
		fatal("Failed to start worker", err)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done

	logger.Info("Shutting down worker")
	w.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsServer.Shutdown(shutdownCtx)
	logger.Info("Worker stopped")
}
