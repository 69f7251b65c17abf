package obs

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultLatencyBucketsMS fits list and report requests over small record sets.
var DefaultLatencyBucketsMS = []float64{2, 5, 10, 25, 50, 100, 250, 500, 1000}

// HTTPMetrics holds the request collectors of the API.
type HTTPMetrics struct {
	ReqTotal *prometheus.CounterVec
	ReqDur   *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

// NewHTTPMetrics registers the request collectors under namespace ("freight"
// when empty) and returns them. Collectors already registered are reused.
func NewHTTPMetrics(namespace string, bucketsMS []float64, reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "freight"
	}
	if len(bucketsMS) == 0 {
		bucketsMS = DefaultLatencyBucketsMS
	}
	m := &HTTPMetrics{
		ReqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route template and status.",
		}, []string{"method", "route", "status"}),
		ReqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds by route template.",
			Buckets:   bucketsMS,
		}, []string{"method", "route"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "HTTP requests being served.",
		}),
	}
	registerOrReuse(reg, &m.ReqTotal)
	registerOrReuse(reg, &m.ReqDur)
	registerOrReuse(reg, &m.InFlight)
	return m
}

// ParseBuckets parses a comma separated list of latency bounds in
// milliseconds. The result is sorted and deduplicated; an empty list yields
// nil so the defaults apply.
func ParseBuckets(csv string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("latency bucket %q: %w", part, err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("latency bucket %q: must be positive", part)
		}
		out = append(out, v)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// DurationMillis converts d to fractional milliseconds.
func DurationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
