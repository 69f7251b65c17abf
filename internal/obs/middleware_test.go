package obs_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-freight/internal/obs"
)

func TestHTTPMetricsUseRouteTemplate(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("freight", []float64{1, 10}, registry)

	r := chi.NewRouter()
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Get("/api/v1/{collection}/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/bills/42", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)

	require.Equal(t, float64(1), testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/api/v1/{collection}/{id}", "204")))
	require.Equal(t, 1, testutil.CollectAndCount(metrics.ReqDur))
	require.Equal(t, float64(0), testutil.ToFloat64(metrics.InFlight))
}

func TestRoutePatternPinnedWins(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	require.Equal(t, "", obs.RoutePattern(req))
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/health/ready"))
	require.Equal(t, "/health/ready", obs.RoutePattern(req))
}

func TestRequestLoggerReportsListOutcome(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	r := chi.NewRouter()
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Get("/api/v1/{collection}", func(w http.ResponseWriter, r *http.Request) {
		obs.NoteSubject(r.Context(), "ops@example.com")
		obs.ObserveList(r.Context(), chi.URLParam(r, "collection"), 7)
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/bookings?q=jakarta", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "/api/v1/{collection}", line["route"])
	require.Equal(t, "bookings", line["collection"])
	require.Equal(t, float64(7), line["matched"])
	require.Equal(t, "ops@example.com", line["subject"])
	require.Equal(t, "info", line["level"])
}

func TestRequestLoggerWriteCarriesRecordID(t *testing.T) {
	var buf bytes.Buffer
	handler := obs.RequestLogger{Logger: zerolog.New(&buf)}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		obs.NoteRecord(r.Context(), "bills", "b-1")
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/bills", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "bills", line["collection"])
	require.Equal(t, "b-1", line["record_id"])
	require.Equal(t, "error", line["level"])
	require.NotContains(t, line, "matched")
	require.Equal(t, "/api/v1/bills", line["route"])
}

func TestParseBuckets(t *testing.T) {
	buckets, err := obs.ParseBuckets(" 50, 5,,10,5 ")
	require.NoError(t, err)
	require.Equal(t, []float64{5, 10, 50}, buckets)

	buckets, err = obs.ParseBuckets("")
	require.NoError(t, err)
	require.Nil(t, buckets)

	_, err = obs.ParseBuckets("5,ten")
	require.Error(t, err)
	_, err = obs.ParseBuckets("0")
	require.Error(t, err)
}
