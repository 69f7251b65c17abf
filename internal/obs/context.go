package obs

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type routePatternKey struct{}

type requestInfoKey struct{}

// RequestInfo carries facts learned while a request is handled back out to
// the middleware that wraps it. One request goroutine owns it.
type RequestInfo struct {
	Subject    string
	Collection string
	RecordID   string
	// Matched is the post-filter total of a list or report; valid when Listed.
	Matched int
	Listed  bool
}

// WithRoutePattern pins the route pattern reported for the request.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePattern returns the route template that served r. A pinned pattern
// wins; otherwise chi's pattern is used, which is complete once routing is done.
func RoutePattern(r *http.Request) string {
	if r == nil {
		return ""
	}
	ctx := r.Context()
	if v, ok := ctx.Value(routePatternKey{}).(string); ok && v != "" {
		return v
	}
	if rc := chi.RouteContext(ctx); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}

// EnsureRequestInfo returns the RequestInfo attached to ctx, attaching a new
// one when there is none.
func EnsureRequestInfo(ctx context.Context) (context.Context, *RequestInfo) {
	if ctx == nil {
		ctx = context.Background()
	}
	if info := RequestInfoFrom(ctx); info != nil {
		return ctx, info
	}
	info := &RequestInfo{}
	return context.WithValue(ctx, requestInfoKey{}, info), info
}

// RequestInfoFrom returns the RequestInfo attached to ctx or nil.
func RequestInfoFrom(ctx context.Context) *RequestInfo {
	if ctx == nil {
		return nil
	}
	info, _ := ctx.Value(requestInfoKey{}).(*RequestInfo)
	return info
}

// RequestInfoMiddleware attaches a RequestInfo to every request.
func RequestInfoMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, _ := EnsureRequestInfo(r.Context())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// NoteSubject records the authenticated operator.
func NoteSubject(ctx context.Context, subject string) {
	if info := RequestInfoFrom(ctx); info != nil {
		info.Subject = subject
	}
}

// NoteRecord records the collection and record a request touched.
func NoteRecord(ctx context.Context, collection, id string) {
	if info := RequestInfoFrom(ctx); info != nil {
		info.Collection = collection
		if id != "" {
			info.RecordID = id
		}
	}
}

func noteList(ctx context.Context, collection string, matched int) {
	if info := RequestInfoFrom(ctx); info != nil {
		info.Collection = collection
		info.Matched = matched
		info.Listed = true
	}
}
