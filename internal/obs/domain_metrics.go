package obs

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// ListRequestsTotal counts processed collection listings.
	ListRequestsTotal *prometheus.CounterVec
	// ListResultSize records how many records survived filtering before pagination.
	ListResultSize *prometheus.HistogramVec
	// RecordWritesTotal counts record mutations by collection and operation.
	RecordWritesTotal *prometheus.CounterVec
	// ReportSnapshotsTotal counts report snapshot builds by outcome.
	ReportSnapshotsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		ListRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "list_requests_total",
			Help:      "Count of collection listing requests.",
		}, []string{"collection"})
		ListResultSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "list_result_size",
			Help:      "Number of records matching a listing query.",
			Buckets:   []float64{0, 1, 10, 50, 100, 500, 1000, 5000},
		}, []string{"collection"})
		RecordWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_writes_total",
			Help:      "Count of record writes by collection and operation.",
		}, []string{"collection", "op"})
		ReportSnapshotsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_snapshots_total",
			Help:      "Count of report snapshot builds by outcome.",
		}, []string{"result"})

		registerOrReuse(reg, &ListRequestsTotal)
		registerOrReuse(reg, &ListResultSize)
		registerOrReuse(reg, &RecordWritesTotal)
		registerOrReuse(reg, &ReportSnapshotsTotal)
	})
}

// ObserveList records a list or report outcome on the domain metrics, when
// registered, and on the request's RequestInfo.
func ObserveList(ctx context.Context, collection string, matched int) {
	noteList(ctx, collection, matched)
	if ListRequestsTotal != nil {
		ListRequestsTotal.WithLabelValues(collection).Inc()
	}
	if ListResultSize != nil {
		ListResultSize.WithLabelValues(collection).Observe(float64(matched))
	}
}

// ObserveWrite records a record mutation when domain metrics are registered.
func ObserveWrite(collection, op string) {
	if RecordWritesTotal != nil {
		RecordWritesTotal.WithLabelValues(collection, op).Inc()
	}
}

// ObserveSnapshot records a report snapshot outcome when domain metrics are registered.
func ObserveSnapshot(result string) {
	if ReportSnapshotsTotal != nil {
		ReportSnapshotsTotal.WithLabelValues(result).Inc()
	}
}

// registerOrReuse registers the collector, swapping in the existing one if an
// identical collector was registered before.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, collector *T) {
	if err := reg.Register(*collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				*collector = existing
			}
			return
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
}
