package main

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/backend-freight/internal/records"
	"github.com/noah-isme/backend-freight/internal/repo"
)

// seedOrder inserts partners before the documents whose totals depend on them.
var seedOrder = []string{
	records.Customers,
	records.PickupPartners,
	records.DeliveryPartners,
	records.Bookings,
	records.Containers,
	records.PackingLists,
	records.PriceListings,
	records.Bills,
}

type fixture struct {
	Collections map[string][]map[string]any `yaml:"collections"`
}

type row struct {
	Collection string
	ID         string
	Data       []byte
}

func parseFixture(data []byte) (fixture, error) {
	var fx fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return fixture{}, fmt.Errorf("parse fixture: %w", err)
	}
	for name := range fx.Collections {
		if !slices.Contains(seedOrder, name) {
			return fixture{}, fmt.Errorf("fixture: unknown collection %q", name)
		}
	}
	return fx, nil
}

// plan validates every fixture document through the record service, staging
// them in memory so partner charges resolve, and returns the rows to upsert.
func plan(ctx context.Context, fx fixture) ([]row, error) {
	staging := repo.NewMemoryStore()
	svc, err := records.NewService(records.ServiceConfig{Store: staging, Logger: zerolog.Nop()})
	if err != nil {
		return nil, err
	}

	var rows []row
	for _, collection := range seedOrder {
		for i, doc := range fx.Collections[collection] {
			id, _ := doc["_id"].(string)
			if _, err := uuid.Parse(id); err != nil {
				return nil, fmt.Errorf("%s[%d]: _id must be a uuid", collection, i)
			}
			body := make(map[string]any, len(doc))
			for k, v := range doc {
				if k != "_id" {
					body[k] = v
				}
			}
			raw, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", collection, i, err)
			}
			prepared, err := svc.Prepare(ctx, collection, raw)
			if err != nil {
				return nil, fmt.Errorf("%s[%d] %s: %w", collection, i, id, err)
			}
			if _, err := staging.Insert(ctx, collection, id, prepared); err != nil {
				return nil, fmt.Errorf("%s[%d] %s: %w", collection, i, id, err)
			}
			data, err := json.Marshal(prepared)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row{Collection: collection, ID: id, Data: data})
		}
	}
	return rows, nil
}
