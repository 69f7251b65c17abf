package common

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// ReplayHeader marks a response served from the idempotency store.
const ReplayHeader = "Idempotent-Replayed"

// Idem makes record creates safe to retry. The first request carrying an
// Idempotency-Key runs; a 2xx answer is kept for TTL and replayed to retries
// with the same body. A retry with a different body, or one that arrives while
// the first is still running, is rejected. Failed attempts release the key.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

const (
	idemPending = "pending"
	idemDone    = "done"
)

type idemEntry struct {
	State       string `json:"state"`
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// idemKey scopes the client key to the operator, method and path.
func idemKey(subject, method, path, key string) string {
	return "idem:" + sha256Hex([]byte(subject+"|"+method+"|"+path+"|"+key))
}

// Middleware enforces idempotency for write endpoints.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Idempotency-Key")
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		ctx := r.Context()
		subject, _ := Subject(ctx)
		key := idemKey(subject, r.Method, r.URL.Path, header)
		fingerprint := sha256Hex(body)

		pending, _ := json.Marshal(idemEntry{State: idemPending, Fingerprint: fingerprint})
		acquired, err := i.R.SetNX(ctx, key, pending, i.TTL).Result()
		if err != nil {
			JSONError(w, http.StatusServiceUnavailable, "IDEMPOTENCY_UNAVAILABLE", "idempotency store unavailable", nil)
			return
		}
		if !acquired {
			i.answerRetry(w, r, key, fingerprint)
			return
		}

		rec := &captureWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		store := context.WithoutCancel(ctx)
		if rec.status < 200 || rec.status >= 300 {
			_ = i.R.Del(store, key).Err()
			return
		}
		done, err := json.Marshal(idemEntry{State: idemDone, Fingerprint: fingerprint, Status: rec.status, Body: rec.body.Bytes()})
		if err == nil {
			_ = i.R.Set(store, key, done, i.TTL).Err()
		}
	})
}

func (i Idem) answerRetry(w http.ResponseWriter, r *http.Request, key, fingerprint string) {
	raw, err := i.R.Get(r.Context(), key).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		JSONError(w, http.StatusServiceUnavailable, "IDEMPOTENCY_UNAVAILABLE", "idempotency store unavailable", nil)
		return
	}
	var entry idemEntry
	if err != nil || json.Unmarshal(raw, &entry) != nil {
		JSONError(w, http.StatusConflict, "IDEMPOTENT_IN_PROGRESS", "a request with this idempotency key is in progress", nil)
		return
	}
	switch {
	case entry.Fingerprint != fingerprint:
		JSONError(w, http.StatusUnprocessableEntity, "IDEMPOTENCY_KEY_REUSED", "idempotency key was used with a different payload", nil)
	case entry.State != idemDone:
		JSONError(w, http.StatusConflict, "IDEMPOTENT_IN_PROGRESS", "a request with this idempotency key is in progress", nil)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set(ReplayHeader, "true")
		w.WriteHeader(entry.Status)
		_, _ = w.Write(entry.Body)
	}
}

type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(p []byte) (int, error) {
	c.body.Write(p)
	return c.ResponseWriter.Write(p)
}
