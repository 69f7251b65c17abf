package app

import (
	"net/http"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	limitermemory "github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/backend-freight/internal/audit"
	"github.com/noah-isme/backend-freight/internal/auth"
	"github.com/noah-isme/backend-freight/internal/config"
	"github.com/noah-isme/backend-freight/internal/health"
	"github.com/noah-isme/backend-freight/internal/obs"
	"github.com/noah-isme/backend-freight/internal/records"
	"github.com/noah-isme/backend-freight/internal/repo"
	"github.com/noah-isme/backend-freight/internal/reports"
)

// Dependencies enumerates the services the HTTP surface is assembled from.
type Dependencies struct {
	Config      *config.Config
	Logger      zerolog.Logger
	Redis       *redis.Client
	Auth        *auth.Service
	Records     *records.Service
	Reports     *reports.Service
	Audit       *audit.Service
	AuditStore  repo.AuditStore
	APILimiter  *limiter.Limiter
	HTTPMetrics *obs.HTTPMetrics
	Tracing     bool
	Probes      []health.Probe
	// Pprof is mounted under /debug/pprof when set.
	Pprof http.Handler
}

// NewAPILimiter builds the per-client limiter applied to /api/v1. Counters
// live in Redis so every API replica shares them; without a client they are
// kept in process memory.
func NewAPILimiter(rdb *redis.Client, formatted string) (*limiter.Limiter, error) {
	if formatted == "" {
		return nil, nil
	}
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, err
	}
	var store limiter.Store
	if rdb != nil {
		store, err = limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "freight:limiter"})
		if err != nil {
			return nil, err
		}
	} else {
		store = limitermemory.NewStore()
	}
	return limiter.New(store, rate), nil
}
