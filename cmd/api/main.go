package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-freight/internal/app"
	"github.com/noah-isme/backend-freight/internal/audit"
	"github.com/noah-isme/backend-freight/internal/auth"
	"github.com/noah-isme/backend-freight/internal/config"
	"github.com/noah-isme/backend-freight/internal/health"
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
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "freight")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "freight-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stores, err := app.OpenStore(startCtx, cfg, "freight-api", logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open record store")
	}
	defer stores.Close()

	redisClient, err := app.OpenRedis(startCtx, cfg.RedisURL, metricsEnabled, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	authService, err := auth.NewService(auth.Config{
		Secret:            cfg.JWTSecret,
		AccessTokenTTL:    cfg.AccessTokenTTL,
		Issuer:            cfg.JWTIssuer,
		Audience:          cfg.JWTAudience,
		AdminEmail:        cfg.AdminEmail,
		AdminPasswordHash: cfg.AdminPasswordHash,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	if cfg.AdminEmail == "" || cfg.AdminPasswordHash == "" {
		logger.Warn().Msg("ADMIN_EMAIL or ADMIN_PASSWORD_HASH not set; login is disabled")
	}

	recordService, err := records.NewService(records.ServiceConfig{
		Store:  stores.Store,
		Cache:  app.NewRecordCache(redisClient, cfg.RecordCacheTTL, logger),
		Logger: logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise record service")
	}
	reportService := &reports.Service{Source: recordService, R: redisClient, TTL: cfg.ReportSnapshotTTL}

	if cfg.StoreDriver == config.StoreDriverMemory {
		recordService.AddListener(reports.InlineRefresher{Service: reportService, Log: logger})
	} else {
		redisConn, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse asynq redis uri")
		}
		taskClient := asynq.NewClient(redisConn)
		defer func() {
			if err := taskClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close task client")
			}
		}()
		recordService.AddListener(reports.Enqueuer{Client: taskClient, Debounce: cfg.SnapshotDebounce, Log: logger})
	}

	apiLimiter, err := app.NewAPILimiter(redisClient, cfg.APIRateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise api rate limiter")
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets, err := obs.ParseBuckets(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		if err != nil {
			logger.Fatal().Err(err).Msg("parse OBS_METRICS_BUCKETS_MS")
		}
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	var pprofHandler http.Handler
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		pprofHandler = protectPprof(newPprofMux(), user, pass)
	}

	router := app.NewRouter(app.Dependencies{
		Config:      cfg,
		Logger:      logger,
		Redis:       redisClient,
		Auth:        authService,
		Records:     recordService,
		Reports:     reportService,
		Audit:       &audit.Service{Store: stores.Audit, Enabled: cfg.AuditEnabled},
		AuditStore:  stores.Audit,
		APILimiter:  apiLimiter,
		HTTPMetrics: httpMetrics,
		Tracing:     tracingEnabled,
		Pprof:       pprofHandler,
		Probes: []health.Probe{
			{Name: "store", Timeout: envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500), Ping: stores.Store.Ping},
			{Name: "redis", Timeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300), Ping: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}},
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), envDurationMillis("SHUTDOWN_TIMEOUT_MS", 15000))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Str("store", cfg.StoreDriver).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
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

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return time.Duration(parsed) * time.Millisecond
		}
	}
	return time.Duration(fallback) * time.Millisecond
}

// newPprofMux serves the runtime profiles on their full /debug/pprof paths.
// Index dispatches named profiles such as heap and goroutine.
func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
