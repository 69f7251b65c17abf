package common

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newIdem(t *testing.T) (Idem, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return Idem{R: client, TTL: time.Minute}, mr
}

func idemRequest(path, key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Idempotency-Key", key)
	return req.WithContext(WithSubject(req.Context(), "ops@example.com"))
}

func TestIdempotencyReplaysCreatedRecord(t *testing.T) {
	idem, _ := newIdem(t)
	calls := 0
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"_id": "bill-1"}})
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, idemRequest("/api/v1/bills", "k1", `{"amount":10}`))
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.Code)
	}

	retry := httptest.NewRecorder()
	handler.ServeHTTP(retry, idemRequest("/api/v1/bills", "k1", `{"amount":10}`))
	if retry.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", retry.Code)
	}
	if retry.Header().Get(ReplayHeader) != "true" {
		t.Fatalf("expected replay header")
	}
	if retry.Body.String() != first.Body.String() {
		t.Fatalf("expected identical body, got %q vs %q", retry.Body.String(), first.Body.String())
	}

	other := httptest.NewRecorder()
	handler.ServeHTTP(other, idemRequest("/api/v1/customers", "k1", `{"amount":10}`))
	if other.Code != http.StatusCreated || other.Header().Get(ReplayHeader) != "" {
		t.Fatalf("expected key to be scoped per path, got %d", other.Code)
	}
	if calls != 2 {
		t.Fatalf("expected handler to run twice, ran %d times", calls)
	}
}

func TestIdempotencyRejectsDifferentPayload(t *testing.T) {
	idem, _ := newIdem(t)
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), idemRequest("/api/v1/bills", "k1", `{"amount":10}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, idemRequest("/api/v1/bills", "k1", `{"amount":99}`))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestIdempotencyInFlightConflict(t *testing.T) {
	idem, _ := newIdem(t)
	var nested *httptest.ResponseRecorder
	var handler http.Handler
	handler = idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if nested == nil {
			nested = httptest.NewRecorder()
			handler.ServeHTTP(nested, idemRequest("/api/v1/bills", "k1", `{}`))
		}
		w.WriteHeader(http.StatusCreated)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), idemRequest("/api/v1/bills", "k1", `{}`))
	if nested.Code != http.StatusConflict {
		t.Fatalf("expected 409 while the first request runs, got %d", nested.Code)
	}
}

func TestIdempotencyFailureReleasesKey(t *testing.T) {
	idem, mr := newIdem(t)
	status := http.StatusUnprocessableEntity
	calls := 0
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), idemRequest("/api/v1/bills", "k1", `{}`))
	if len(mr.Keys()) != 0 {
		t.Fatalf("expected failed attempt to release its key, have %v", mr.Keys())
	}
	status = http.StatusCreated
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, idemRequest("/api/v1/bills", "k1", `{}`))
	if rr.Code != http.StatusCreated || calls != 2 {
		t.Fatalf("expected retry to run, got %d after %d calls", rr.Code, calls)
	}
}

func TestIdempotencyWithoutHeaderPassesThrough(t *testing.T) {
	calls := 0
	handler := Idem{}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	if calls != 1 {
		t.Fatalf("expected pass-through, got %d calls", calls)
	}
}
