package listing

import (
	"cmp"
	"encoding/json"
	"slices"
	"strings"
	"time"
)

// Direction is a sort direction. The zero value means unsorted.
type Direction string

const (
	Unsorted Direction = ""
	Asc      Direction = "asc"
	Desc     Direction = "desc"
)

// SortSpec is the active sort column and direction. Field is empty exactly
// when Direction is Unsorted.
type SortSpec struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// MarshalJSON renders the unsorted state as {"field":null,"direction":null}.
func (s SortSpec) MarshalJSON() ([]byte, error) {
	var out struct {
		Field     *string `json:"field"`
		Direction *string `json:"direction"`
	}
	if s.Active() {
		field, dir := s.Field, string(s.Direction)
		out.Field, out.Direction = &field, &dir
	}
	return json.Marshal(out)
}

// Active reports whether s sorts by a field.
func (s SortSpec) Active() bool {
	return s.Field != "" && (s.Direction == Asc || s.Direction == Desc)
}

// ParseDirection maps "asc"/"desc" (any case) to a Direction. An empty string
// is the unsorted state; anything else is rejected.
func ParseDirection(raw string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return Unsorted, true
	case "asc":
		return Asc, true
	case "desc":
		return Desc, true
	default:
		return Unsorted, false
	}
}

// NewSortSpec builds a consistent spec; an invalid field path or an unknown
// direction yields the unsorted state.
func NewSortSpec(field string, dir Direction) SortSpec {
	field = strings.TrimSpace(field)
	if !ValidField(field) || (dir != Asc && dir != Desc) {
		return SortSpec{}
	}
	return SortSpec{Field: field, Direction: dir}
}

// ValidField reports whether path is a non-empty dotted path without empty
// segments.
func ValidField(path string) bool {
	if path == "" {
		return false
	}
	for _, segment := range strings.Split(path, ".") {
		if strings.TrimSpace(segment) == "" {
			return false
		}
	}
	return true
}

// CycleSort applies a header click: a new column starts ascending, then the
// same column goes descending, then back to unsorted. A click on an invalid
// field path yields the unsorted state.
func CycleSort(current SortSpec, clicked string) SortSpec {
	if !ValidField(clicked) {
		return SortSpec{}
	}
	if current.Field != clicked {
		return SortSpec{Field: clicked, Direction: Asc}
	}
	switch current.Direction {
	case Asc:
		return SortSpec{Field: clicked, Direction: Desc}
	default:
		return SortSpec{}
	}
}

// ToggleSort is the two-state variant used by some screens: asc and desc
// alternate and the column never returns to unsorted.
func ToggleSort(current SortSpec, clicked string) SortSpec {
	if !ValidField(clicked) {
		return SortSpec{}
	}
	if current.Field == clicked && current.Direction == Asc {
		return SortSpec{Field: clicked, Direction: Desc}
	}
	return SortSpec{Field: clicked, Direction: Asc}
}

// Sort returns a stably sorted copy of records. Missing values sort before
// every defined value in ascending order and after them in descending order.
func Sort(records []Record, spec SortSpec) []Record {
	if !spec.Active() {
		return records
	}
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b Record) int {
		av, aok := Resolve(a, spec.Field)
		bv, bok := Resolve(b, spec.Field)
		c := compareValues(av, aok, bv, bok)
		if c == 0 {
			return 0
		}
		if spec.Direction == Desc {
			return -c
		}
		return c
	})
	return out
}

// type ranks for values of different kinds under the same key
const (
	rankMissing = iota
	rankBool
	rankNumber
	rankTime
	rankString
	rankOther
)

func compareValues(a any, aok bool, b any, bok bool) int {
	ra, na := normalize(a, aok)
	rb, nb := normalize(b, bok)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case rankBool:
		return cmp.Compare(boolInt(na.(bool)), boolInt(nb.(bool)))
	case rankNumber:
		return cmp.Compare(na.(float64), nb.(float64))
	case rankTime:
		return na.(time.Time).Compare(nb.(time.Time))
	case rankString:
		return strings.Compare(na.(string), nb.(string))
	default:
		return 0
	}
}

func normalize(v any, ok bool) (int, any) {
	if !ok || v == nil {
		return rankMissing, nil
	}
	switch t := v.(type) {
	case string:
		return rankString, strings.ToLower(t)
	case bool:
		return rankBool, t
	case float64:
		return rankNumber, t
	case float32:
		return rankNumber, float64(t)
	case int:
		return rankNumber, float64(t)
	case int32:
		return rankNumber, float64(t)
	case int64:
		return rankNumber, float64(t)
	case uint:
		return rankNumber, float64(t)
	case uint32:
		return rankNumber, float64(t)
	case uint64:
		return rankNumber, float64(t)
	case time.Time:
		return rankTime, t
	default:
		return rankOther, nil
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
