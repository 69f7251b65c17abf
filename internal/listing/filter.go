package listing

import "strings"

// Filter returns the records where at least one field matches query. String
// fields match on case-insensitive substring. Object fields match when any of
// their own string sub-fields match; deeper nesting is not searched. An empty
// or blank query returns records as-is.
func Filter(records []Record, query string) []Record {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return records
	}
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if matches(rec, needle) {
			out = append(out, rec)
		}
	}
	return out
}

func matches(rec Record, needle string) bool {
	for _, v := range rec {
		if s, ok := v.(string); ok {
			if strings.Contains(strings.ToLower(s), needle) {
				return true
			}
			continue
		}
		obj, ok := asObject(v)
		if !ok {
			continue
		}
		for _, sub := range obj {
			if s, ok := sub.(string); ok && strings.Contains(strings.ToLower(s), needle) {
				return true
			}
		}
	}
	return false
}
