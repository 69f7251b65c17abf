package reports

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-freight/internal/common"
	"github.com/noah-isme/backend-freight/internal/listing"
	"github.com/noah-isme/backend-freight/internal/obs"
	"github.com/noah-isme/backend-freight/internal/records"
)

type staticSource map[string][]listing.Record

func (s staticSource) Records(_ context.Context, collection string) ([]listing.Record, error) {
	return s[collection], nil
}

func billsSource() staticSource {
	return staticSource{records.Bills: {
		{"_id": "1", "customer_id": "acme", "amount": float64(100), "total": float64(120), "status": "paid"},
		{"_id": "2", "customer_id": "globex", "amount": float64(40), "total": float64(40), "status": "unpaid"},
		{"_id": "3", "customer_id": "acme", "amount": float64(60), "total": float64(60), "status": "unpaid"},
	}}
}

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return &Service{Source: billsSource(), R: client, TTL: time.Hour, Now: func() time.Time { return fixed }}, mr
}

func TestReportSummarisesWholeFilteredSet(t *testing.T) {
	svc, _ := newTestService(t)
	report, err := svc.Report(context.Background(), records.Bills, listing.Query{
		Text:         "acme",
		Sort:         listing.NewSortSpec("amount", listing.Desc),
		CurrentPage:  1,
		ItemsPerPage: 1,
	})
	require.NoError(t, err)
	require.Len(t, report.Page.Items, 1)
	require.Equal(t, "1", report.Page.Items[0]["_id"])
	require.Equal(t, 2, report.Page.Pagination.Total)
	require.Equal(t, 2, report.Summary.Count)
	require.Equal(t, float64(160), report.Summary.Sums["amount"])
	require.Equal(t, map[string]int{"paid": 1, "unpaid": 1}, report.Summary.Groups)
}

func TestReportUnknownCollection(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Report(context.Background(), "invoices", listing.Query{})
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
}

func TestSnapshotRoundTrip(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	_, err := svc.Snapshot(ctx, records.Bills)
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)

	built, err := svc.BuildSnapshot(ctx, records.Bills)
	require.NoError(t, err)
	require.Equal(t, 3, built.Summary.Count)
	require.True(t, mr.Exists(snapshotKey(records.Bills)))
	require.Equal(t, time.Hour, mr.TTL(snapshotKey(records.Bills)))

	got, err := svc.Snapshot(ctx, records.Bills)
	require.NoError(t, err)
	require.True(t, built.GeneratedAt.Equal(got.GeneratedAt))
	require.Equal(t, float64(200), got.Summary.Sums["amount"])
	require.Equal(t, float64(220), got.Summary.Sums["total"])
}

func TestReportNotesListOutcome(t *testing.T) {
	svc, _ := newTestService(t)
	ctx, info := obs.EnsureRequestInfo(context.Background())
	_, err := svc.Report(ctx, records.Bills, listing.Query{Text: "unpaid", CurrentPage: 1, ItemsPerPage: 10})
	require.NoError(t, err)
	require.True(t, info.Listed)
	require.Equal(t, records.Bills, info.Collection)
	require.Equal(t, 2, info.Matched)
}
