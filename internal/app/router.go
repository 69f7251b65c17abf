package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/backend-freight/internal/audit"
	"github.com/noah-isme/backend-freight/internal/auth"
	"github.com/noah-isme/backend-freight/internal/common"
	"github.com/noah-isme/backend-freight/internal/health"
	"github.com/noah-isme/backend-freight/internal/obs"
	"github.com/noah-isme/backend-freight/internal/ratelimit"
	"github.com/noah-isme/backend-freight/internal/records"
	"github.com/noah-isme/backend-freight/internal/reports"
	"github.com/noah-isme/backend-freight/internal/security"
)

// NewRouter assembles the HTTP surface of the API.
func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logger := deps.Logger
	defaults := common.ListDefaults{PerPage: cfg.ListDefaultLimit, MaxPerPage: cfg.ListMaxLimit}

	authHandler := &auth.Handler{Service: deps.Auth}
	authMiddleware := auth.Middleware{Parser: deps.Auth}
	recordHandler := records.NewHandler(records.HandlerConfig{Service: deps.Records, Defaults: defaults})
	reportHandler := &reports.Handler{Svc: deps.Reports, Defaults: defaults}
	auditHandler := audit.Handler{Store: deps.AuditStore}
	healthHandler := health.Handler{Probes: deps.Probes}

	auditRecorder := audit.HTTPRecorder{
		Service: deps.Audit,
		OnError: func(err error) { logger.Error().Err(err).Msg("record audit log") },
	}
	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL}
	loginLimit := ratelimit.Handler{
		Limiter: ratelimit.SlidingWindow{Client: deps.Redis, Prefix: "freight:ratelimit:"},
		Config: ratelimit.Config{
			Key:    ratelimit.ByClientIP("login"),
			Window: cfg.LoginRateWindow,
			Max:    cfg.LoginRateLimit,
		},
		OnError: func(err error) { logger.Warn().Err(err).Msg("login rate limiter unavailable") },
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RequestInfoMiddleware)
	if deps.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if deps.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: deps.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders: []string{"X-Total-Count", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(security.Headers{Enable: true, EnableHSTS: true, NoStore: true}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	if deps.HTTPMetrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	if deps.Pprof != nil {
		r.Mount("/debug/pprof", deps.Pprof)
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		if deps.APILimiter != nil {
			v.Use(apiRateLimit(deps.APILimiter, logger))
		}

		v.With(loginLimit.Middleware, auditRecorder.Middleware(audit.HTTPConfig{Action: "login", ResourceType: "session"})).
			Post("/auth/login", authHandler.Login)

		v.Group(func(p chi.Router) {
			p.Use(authMiddleware.RequireAuth)
			p.Get("/auth/me", authHandler.Me)
			p.Get("/collections", recordHandler.Collections)
			p.Post("/pricing/quote", recordHandler.Quote)
			p.Get("/reports/{collection}", reportHandler.Report)
			p.Get("/reports/{collection}/snapshot", reportHandler.Snapshot)
			p.Get("/audit-logs", auditHandler.List)

			p.Get("/{collection}", recordHandler.List)
			p.Get("/{collection}/{id}", recordHandler.Get)
			p.Group(func(w chi.Router) {
				w.Use(auditRecorder.Middleware(audit.HTTPConfig{ResourceTypeParam: "collection", ResourceIDParam: "id"}))
				w.With(idem.Middleware).Post("/{collection}", recordHandler.Create)
				w.Put("/{collection}/{id}", recordHandler.Update)
				w.Delete("/{collection}/{id}", recordHandler.Delete)
			})
		})
	})

	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
