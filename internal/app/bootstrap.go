package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-freight/internal/config"
	"github.com/noah-isme/backend-freight/internal/migrations"
	"github.com/noah-isme/backend-freight/internal/obs"
	"github.com/noah-isme/backend-freight/internal/records"
	"github.com/noah-isme/backend-freight/internal/repo"
	"github.com/noah-isme/backend-freight/internal/resilience"
)

// StoreHandle is an opened record store plus its release function.
type StoreHandle struct {
	Store repo.Store
	Audit repo.AuditStore
	Close func()
}

// OpenPostgres opens a traced pgx pool tagged with applicationName and pings it.
func OpenPostgres(ctx context.Context, databaseURL, applicationName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// OpenStore opens the record store selected by STORE_DRIVER, applying
// migrations first when MIGRATE_ON_START is set.
func OpenStore(ctx context.Context, cfg *config.Config, applicationName string, logger zerolog.Logger) (StoreHandle, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Warn().Msg("using in-memory record store; data is lost on restart")
		mem := repo.NewMemoryStore()
		return StoreHandle{Store: mem, Audit: mem, Close: func() {}}, nil
	case config.StoreDriverPostgres:
		if cfg.MigrateOnStart {
			if err := migrations.Up(cfg.DatabaseURL); err != nil {
				return StoreHandle{}, err
			}
			logger.Info().Msg("migrations applied")
		}
		pool, err := OpenPostgres(ctx, cfg.DatabaseURL, applicationName)
		if err != nil {
			return StoreHandle{}, err
		}
		pg := repo.NewPGStore(pool)
		return StoreHandle{Store: pg, Audit: pg, Close: pool.Close}, nil
	default:
		return StoreHandle{}, errors.New("unsupported store driver " + cfg.StoreDriver)
	}
}

// OpenRedis connects to REDIS_URL and instruments the client with
// OpenTelemetry tracing and, when enabled, metrics.
func OpenRedis(ctx context.Context, redisURL string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewRecordCache builds the Redis record cache behind a circuit breaker so a
// failing Redis degrades list reads to the store instead of timing out.
func NewRecordCache(rdb *redis.Client, ttl time.Duration, logger zerolog.Logger) *records.Cache {
	if err := resilience.RegisterMetrics(nil); err != nil {
		logger.Error().Err(err).Msg("register breaker metrics")
	}
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Target:       "record-cache",
		MinRequests:  5,
		FailureRatio: 0.5,
		OpenFor:      30 * time.Second,
		Logger:       logger,
	})
	return records.NewCache(rdb, ttl).WithBreaker(breaker)
}
