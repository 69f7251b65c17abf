package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-freight/internal/common"
	"github.com/noah-isme/backend-freight/internal/obs"
)

// HTTPRecorder writes an audit entry for each request that passes through its
// middleware, once the handler has answered.
type HTTPRecorder struct {
	Service *Service
	OnError func(error)
}

// HTTPConfig describes the resource a route acts on. Empty fields are derived
// from the method and route template.
type HTTPConfig struct {
	Action       string
	ResourceType string
	// ResourceTypeParam names a URL parameter holding the resource type,
	// e.g. the collection of a record route.
	ResourceTypeParam string
	ResourceIDParam   string
}

// Middleware records the request after next has served it. Routes without an
// id parameter, such as creates, fall back to the record id the handler noted.
func (r HTTPRecorder) Middleware(cfg HTTPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if r.Service == nil || !r.Service.Enabled {
				next.ServeHTTP(w, req)
				return
			}
			ctx, info := obs.EnsureRequestInfo(req.Context())
			req = req.WithContext(ctx)
			recorder := obs.NewStatusRecorder(w)
			next.ServeHTTP(recorder, req)

			resourceType := cfg.ResourceType
			if resourceType == "" && cfg.ResourceTypeParam != "" {
				resourceType = chi.URLParam(req, cfg.ResourceTypeParam)
			}
			resourceID := ""
			if cfg.ResourceIDParam != "" {
				resourceID = chi.URLParam(req, cfg.ResourceIDParam)
			}
			if resourceID == "" && recorder.Status() < http.StatusMultipleChoices {
				resourceID = info.RecordID
			}

			err := r.Service.Record(ctx, actorOf(req, info), cfg.Action, resourceType, resourceID, req, recorder.Status(), nil)
			if err != nil && r.OnError != nil {
				r.OnError(err)
			}
		})
	}
}

// actorOf prefers the authenticated subject and falls back to one the handler
// established itself, as a successful login does.
func actorOf(req *http.Request, info *obs.RequestInfo) Actor {
	subject, _ := common.Subject(req.Context())
	if subject == "" && info != nil {
		subject = info.Subject
	}
	if subject == "" {
		return Actor{Kind: ActorKindAnonymous}
	}
	return Actor{Kind: ActorKindOperator, Subject: &subject}
}
