package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-freight/internal/app"
	"github.com/noah-isme/backend-freight/internal/config"
	"github.com/noah-isme/backend-freight/internal/lock"
	"github.com/noah-isme/backend-freight/internal/obs"
	"github.com/noah-isme/backend-freight/internal/records"
	"github.com/noah-isme/backend-freight/internal/reports"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	if cfg.StoreDriver != config.StoreDriverPostgres {
		logger.Fatal().Str("store", cfg.StoreDriver).Msg("worker requires the postgres store; the api refreshes snapshots inline otherwise")
	}
	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "freight"), nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stores, err := app.OpenStore(startCtx, cfg, "freight-worker", logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open record store")
	}
	defer stores.Close()

	redisClient, err := app.OpenRedis(startCtx, cfg.RedisURL, false, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	recordService, err := records.NewService(records.ServiceConfig{
		Store:  stores.Store,
		Cache:  app.NewRecordCache(redisClient, cfg.RecordCacheTTL, logger),
		Logger: logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise record service")
	}
	reportService := &reports.Service{Source: recordService, R: redisClient, TTL: cfg.ReportSnapshotTTL}

	redisConn, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse asynq redis uri")
	}

	srv := asynq.NewServer(redisConn, asynq.Config{
		Concurrency:     cfg.WorkerConcurrency,
		Queues:          map[string]int{reports.QueueName: 1},
		Logger:          asynqLogger{log: logger},
		ShutdownTimeout: 20 * time.Second,
	})
	mux := asynq.NewServeMux()
	mux.Handle(reports.TypeSnapshot, reports.Processor{
		Service: reportService,
		Lock:    lock.Locker{R: redisClient, Prefix: "freight:lock:"},
		Log:     logger,
	})

	scheduler := asynq.NewScheduler(redisConn, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   asynqLogger{log: logger.With().Str("component", "scheduler").Logger()},
	})
	if err := reports.ScheduleSnapshots(scheduler, cfg.SnapshotSchedule); err != nil {
		logger.Fatal().Err(err).Msg("schedule snapshot refresh")
	}

	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("start scheduler")
	}
	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Str("schedule", cfg.SnapshotSchedule).Msg("worker starting")

	<-ctx.Done()
	scheduler.Shutdown()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
