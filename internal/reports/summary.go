// Package reports aggregates collection records into summaries, both live
// over a list query and as snapshots built by the background worker.
package reports

import (
	"fmt"
	"sort"

	"github.com/noah-isme/backend-freight/internal/listing"
	"github.com/noah-isme/backend-freight/internal/pricing"
	"github.com/noah-isme/backend-freight/internal/records"
)

// NoGroup labels records whose group field is missing.
const NoGroup = "(none)"

// Definition names the numeric fields to total and the field to group by.
type Definition struct {
	SumFields []string
	GroupBy   string
}

// Summary is the aggregate of a record set.
type Summary struct {
	Count  int                `json:"count"`
	Sums   map[string]float64 `json:"sums"`
	Groups map[string]int     `json:"groups,omitempty"`
}

var definitions = map[string]Definition{
	records.Customers:        {},
	records.Bookings:         {GroupBy: "status"},
	records.Containers:       {GroupBy: "size"},
	records.Bills:            {SumFields: []string{"amount", "total"}, GroupBy: "status"},
	records.PackingLists:     {},
	records.DeliveryPartners: {SumFields: []string{"price"}},
	records.PickupPartners:   {SumFields: []string{"price"}},
	records.PriceListings:    {SumFields: []string{"base_price", "total"}},
}

// DefinitionFor returns the report definition of a collection.
func DefinitionFor(collection string) (Definition, bool) {
	def, ok := definitions[collection]
	return def, ok
}

// Collections lists the collections that have a report definition.
func Collections() []string {
	out := make([]string, 0, len(definitions))
	for name := range definitions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Summarize counts recs, totals the numeric fields of def and counts records
// per group. Non-numeric sum fields contribute 0.
func Summarize(recs []listing.Record, def Definition) Summary {
	out := Summary{Count: len(recs), Sums: make(map[string]float64, len(def.SumFields))}
	for _, field := range def.SumFields {
		out.Sums[field] = 0
	}
	if def.GroupBy != "" {
		out.Groups = map[string]int{}
	}
	for _, rec := range recs {
		for _, field := range def.SumFields {
			v, _ := listing.Resolve(rec, field)
			out.Sums[field] += pricing.AmountOf(v)
		}
		if def.GroupBy != "" {
			out.Groups[groupLabel(rec, def.GroupBy)]++
		}
	}
	return out
}

func groupLabel(rec listing.Record, path string) string {
	v, ok := listing.Resolve(rec, path)
	if !ok {
		return NoGroup
	}
	if s, isString := v.(string); isString {
		if s == "" {
			return NoGroup
		}
		return s
	}
	return fmt.Sprint(v)
}
