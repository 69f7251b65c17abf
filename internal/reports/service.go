package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-freight/internal/common"
	"github.com/noah-isme/backend-freight/internal/listing"
	"github.com/noah-isme/backend-freight/internal/obs"
)

// RecordSource returns every record of a collection.
type RecordSource interface {
	Records(ctx context.Context, collection string) ([]listing.Record, error)
}

// Report is a processed list page plus the summary of every matching record.
type Report struct {
	Page    listing.Page
	Sort    listing.SortSpec
	Summary Summary
}

// Snapshot is a summary persisted by the worker.
type Snapshot struct {
	Collection  string    `json:"collection"`
	GeneratedAt time.Time `json:"generated_at"`
	Summary     Summary   `json:"summary"`
}

// Service builds live reports and snapshot summaries.
type Service struct {
	Source RecordSource
	R      *redis.Client
	TTL    time.Duration
	Now    func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func snapshotKey(collection string) string {
	return "reports:v1:snapshot:" + collection
}

// Report processes q over the collection and summarises the post-filter set.
func (s *Service) Report(ctx context.Context, collection string, q listing.Query) (Report, error) {
	def, recs, err := s.load(ctx, collection)
	if err != nil {
		return Report{}, err
	}
	matched := listing.Filter(recs, q.Text)
	page := listing.Arrange(matched, q)
	obs.ObserveList(ctx, collection, page.Pagination.Total)
	return Report{Page: page, Sort: q.Sort, Summary: Summarize(matched, def)}, nil
}

// BuildSnapshot summarises the whole collection and stores the result in Redis.
func (s *Service) BuildSnapshot(ctx context.Context, collection string) (Snapshot, error) {
	def, recs, err := s.load(ctx, collection)
	if err != nil {
		obs.ObserveSnapshot("error")
		return Snapshot{}, err
	}
	snap := Snapshot{Collection: collection, GeneratedAt: s.now().UTC(), Summary: Summarize(recs, def)}
	if s.R != nil {
		data, err := json.Marshal(snap)
		if err != nil {
			obs.ObserveSnapshot("error")
			return Snapshot{}, err
		}
		if err := s.R.Set(ctx, snapshotKey(collection), data, s.TTL).Err(); err != nil {
			obs.ObserveSnapshot("error")
			return Snapshot{}, fmt.Errorf("store snapshot %s: %w", collection, err)
		}
	}
	obs.ObserveSnapshot("success")
	return snap, nil
}

// Snapshot returns the last stored snapshot of the collection.
func (s *Service) Snapshot(ctx context.Context, collection string) (Snapshot, error) {
	if _, ok := DefinitionFor(collection); !ok {
		return Snapshot{}, common.NotFound(fmt.Sprintf("collection %q not found", collection), nil)
	}
	if s == nil || s.R == nil {
		return Snapshot{}, common.NewAppError("UNAVAILABLE", "snapshots not configured", http.StatusServiceUnavailable, nil)
	}
	data, err := s.R.Get(ctx, snapshotKey(collection)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snapshot{}, common.NotFound("snapshot not available yet", nil)
		}
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", collection, err)
	}
	return snap, nil
}

func (s *Service) load(ctx context.Context, collection string) (Definition, []listing.Record, error) {
	if s == nil || s.Source == nil {
		return Definition{}, nil, errors.New("reports service not configured")
	}
	def, ok := DefinitionFor(collection)
	if !ok {
		return Definition{}, nil, common.NotFound(fmt.Sprintf("collection %q not found", collection), nil)
	}
	recs, err := s.Source.Records(ctx, collection)
	if err != nil {
		return Definition{}, nil, err
	}
	return def, recs, nil
}
