package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/noah-isme/backend-freight/internal/common"
)

// Probe checks a single dependency.
type Probe struct {
	Name    string
	Timeout time.Duration
	Ping    func(ctx context.Context) error
}

var draining atomic.Bool

// SetReady toggles readiness. The API flips it off when shutdown starts so
// load balancers stop routing new requests before connections close.
func SetReady(ready bool) {
	draining.Store(!ready)
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Probes []Probe
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if draining.Load() {
		common.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting down"})
		return
	}
	if len(h.Probes) == 0 {
		common.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "dependencies unavailable"})
		return
	}

	status := make(map[string]string, len(h.Probes))
	code := http.StatusOK
	for _, probe := range h.Probes {
		if err := h.run(r.Context(), probe); err != nil {
			status[probe.Name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		status[probe.Name] = "ok"
	}
	common.JSON(w, code, status)
}

func (h Handler) run(ctx context.Context, probe Probe) error {
	if probe.Ping == nil {
		return nil
	}
	timeout := probe.Timeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return probe.Ping(ctx)
}
