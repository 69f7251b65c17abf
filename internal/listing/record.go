// Package listing implements the list pipeline shared by every list and report
// screen: free-text filtering, multi-column sorting with dotted field paths,
// and pagination window computation.
package listing

import "strings"

// Record is a schema-less row as decoded from JSON. Nested objects are
// map[string]any. Records are never mutated by this package.
type Record = map[string]any

// Resolve returns the value stored at path. Dotted paths ("sender.name") walk
// nested objects. The second return value is false when any segment is
// missing or an intermediate value is not an object.
func Resolve(rec Record, path string) (any, bool) {
	if rec == nil || path == "" {
		return nil, false
	}
	if !strings.Contains(path, ".") {
		v, ok := rec[path]
		if !ok || v == nil {
			return nil, false
		}
		return v, true
	}
	var current any = rec
	for _, segment := range strings.Split(path, ".") {
		obj, ok := asObject(current)
		if !ok {
			return nil, false
		}
		current, ok = obj[segment]
		if !ok || current == nil {
			return nil, false
		}
	}
	return current, true
}

func asObject(v any) (map[string]any, bool) {
	switch obj := v.(type) {
	case map[string]any:
		return obj, obj != nil
	case map[string]string:
		out := make(map[string]any, len(obj))
		for k, s := range obj {
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}
