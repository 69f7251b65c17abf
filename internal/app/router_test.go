package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/backend-freight/internal/audit"
	"github.com/noah-isme/backend-freight/internal/auth"
	"github.com/noah-isme/backend-freight/internal/config"
	"github.com/noah-isme/backend-freight/internal/health"
	"github.com/noah-isme/backend-freight/internal/records"
	"github.com/noah-isme/backend-freight/internal/repo"
	"github.com/noah-isme/backend-freight/internal/reports"
)

type testEnv struct {
	router http.Handler
	store  *repo.MemoryStore
}

func newTestEnv(t *testing.T, apiRate string) testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hash, err := argon2id.CreateHash("correct-horse", &argon2id.Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)

	cfg := &config.Config{
		ListDefaultLimit: 10,
		ListMaxLimit:     100,
		IdempotencyTTL:   time.Minute,
		LoginRateLimit:   3,
		LoginRateWindow:  time.Minute,
		BodyLimitBytes:   1 << 20,
	}

	authSvc, err := auth.NewService(auth.Config{
		Secret:            "router-secret",
		AccessTokenTTL:    time.Hour,
		AdminEmail:        "ops@example.com",
		AdminPasswordHash: hash,
	})
	require.NoError(t, err)

	store := repo.NewMemoryStore()
	recordSvc, err := records.NewService(records.ServiceConfig{
		Store:  store,
		Cache:  records.NewCache(rdb, time.Minute),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)

	apiLimiter := mustLimiter(t, apiRate)

	router := NewRouter(Dependencies{
		Config:     cfg,
		Logger:     zerolog.Nop(),
		Redis:      rdb,
		Auth:       authSvc,
		Records:    recordSvc,
		Reports:    &reports.Service{Source: recordSvc, R: rdb, TTL: time.Hour},
		Audit:      &audit.Service{Store: store, Enabled: true},
		AuditStore: store,
		APILimiter: apiLimiter,
		Probes: []health.Probe{
			{Name: "store", Ping: store.Ping},
			{Name: "redis", Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		},
	})
	return testEnv{router: router, store: store}
}

func mustLimiter(t *testing.T, rate string) *limiter.Limiter {
	t.Helper()
	lim, err := NewAPILimiter(nil, rate)
	require.NoError(t, err)
	return lim
}

func (e testEnv) do(t *testing.T, method, path, token, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e testEnv) login(t *testing.T) string {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/v1/auth/login", "", `{"email":"ops@example.com","password":"correct-horse"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.AccessToken)
	return resp.Data.AccessToken
}

func TestRouterRequiresToken(t *testing.T) {
	env := newTestEnv(t, "")
	rr := env.do(t, http.MethodGet, "/api/v1/bookings", "", "", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestRouterRecordFlowIsAudited(t *testing.T) {
	env := newTestEnv(t, "")
	token := env.login(t)

	rr := env.do(t, http.MethodPost, "/api/v1/bookings", token,
		`{"customer_id":"c-1","origin":"Jakarta","destination":"Surabaya"}`,
		map[string]string{"Idempotency-Key": "booking-1"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodGet, "/api/v1/bookings?q=surabaya", token, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "1", rr.Header().Get("X-Total-Count"))

	rr = env.do(t, http.MethodGet, "/api/v1/reports/bookings", token, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"summary"`)

	logs, err := env.store.ListAuditLogs(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Equal(t, "create", logs[0].Action)
	require.Equal(t, "bookings", logs[0].ResourceType)
	require.Equal(t, "login", logs[1].Action)

	rr = env.do(t, http.MethodGet, "/api/v1/audit-logs?limit=1", token, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"action":"create"`)
}

func TestRouterLoginRateLimited(t *testing.T) {
	env := newTestEnv(t, "")
	body := `{"email":"ops@example.com","password":"wrong"}`
	for i := 0; i < 3; i++ {
		rr := env.do(t, http.MethodPost, "/api/v1/auth/login", "", body, nil)
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	}
	rr := env.do(t, http.MethodPost, "/api/v1/auth/login", "", body, nil)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestRouterAPIRateLimit(t *testing.T) {
	env := newTestEnv(t, "2-M")
	token := env.login(t)

	rr := env.do(t, http.MethodGet, "/api/v1/collections", token, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "2", rr.Header().Get("X-RateLimit-Limit"))

	rr = env.do(t, http.MethodGet, "/api/v1/collections", token, "", nil)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestRouterHealth(t *testing.T) {
	env := newTestEnv(t, "")
	rr := env.do(t, http.MethodGet, "/health/ready", "", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"store":"ok"`)
}

func TestNewAPILimiterDisabled(t *testing.T) {
	lim, err := NewAPILimiter(nil, "")
	require.NoError(t, err)
	require.Nil(t, lim)

	_, err = NewAPILimiter(nil, "ten-per-minute")
	require.Error(t, err)
}
