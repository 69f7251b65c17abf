package pricing

import "strconv"

// PartnersFromRecords extracts partners from stored partner records. Records
// without an "_id" are skipped; a missing or non-numeric "price" counts as 0.
func PartnersFromRecords(records []map[string]any) []Partner {
	out := make([]Partner, 0, len(records))
	for _, rec := range records {
		id, _ := rec["_id"].(string)
		if id == "" {
			continue
		}
		out = append(out, Partner{ID: id, Price: AmountOf(rec["price"])})
	}
	return out
}

// AmountOf reads a monetary field decoded from JSON or set in Go code.
func AmountOf(v any) Money {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return Money(n)
	case int:
		return Money(n)
	case int64:
		return Money(n)
	case int32:
		return Money(n)
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
