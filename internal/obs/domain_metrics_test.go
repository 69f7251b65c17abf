package obs_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-freight/internal/obs"
)

func TestDomainMetricsObserve(t *testing.T) {
	registry := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics("freight", registry)

	ctx, info := obs.EnsureRequestInfo(context.Background())
	obs.ObserveList(ctx, "bills", 3)
	obs.ObserveWrite("bills", "create")
	obs.ObserveSnapshot("success")

	require.Equal(t, float64(1), testutil.ToFloat64(obs.ListRequestsTotal.WithLabelValues("bills")))
	require.Equal(t, float64(1), testutil.ToFloat64(obs.RecordWritesTotal.WithLabelValues("bills", "create")))
	require.Equal(t, float64(1), testutil.ToFloat64(obs.ReportSnapshotsTotal.WithLabelValues("success")))
	require.Equal(t, 1, testutil.CollectAndCount(obs.ListResultSize))
	require.Equal(t, "bills", info.Collection)
	require.True(t, info.Listed)
	require.Equal(t, 3, info.Matched)
}
