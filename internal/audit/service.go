package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/noah-isme/backend-freight/internal/common"
	"github.com/noah-isme/backend-freight/internal/obs"
	"github.com/noah-isme/backend-freight/internal/repo"
)

// ActorKind represents the source of an audited action.
type ActorKind string

const (
	// ActorKindOperator is a console user holding a valid access token.
	ActorKindOperator ActorKind = "operator"
	// ActorKindSystem represents internal automated actions.
	ActorKindSystem ActorKind = "system"
	// ActorKindAnonymous represents unauthenticated actors.
	ActorKindAnonymous ActorKind = "anonymous"
)

// Actor describes the entity performing the action.
type Actor struct {
	Kind    ActorKind
	Subject *string
}

// Service persists audit logs for record mutations.
type Service struct {
	Store   repo.AuditStore
	Enabled bool
}

// Record persists an audit log entry when auditing is enabled.
func (s Service) Record(ctx context.Context, actor Actor, action, resourceType, resourceID string, req *http.Request, status int, metadata []byte) error {
	if !s.Enabled {
		return nil
	}
	if req == nil {
		return errors.New("audit: request is required")
	}
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}

	route := obs.RoutePattern(req)
	if route == "" {
		route = strings.TrimSpace(req.URL.Path)
	}
	requestID := middleware.GetReqID(req.Context())
	if requestID == "" {
		requestID = req.Header.Get("X-Request-ID")
	}

	finalStatus := status
	if finalStatus == 0 {
		finalStatus = http.StatusOK
	}

	return s.Store.InsertAuditLog(ctx, repo.AuditEntry{
		ActorKind:    string(normalizeActorKind(actor.Kind)),
		ActorID:      sanitizeString(actor.Subject),
		Action:       buildAction(action, req.Method, route),
		ResourceType: buildResource(resourceType, route),
		ResourceID:   pointerOf(resourceID),
		Method:       req.Method,
		Path:         req.URL.Path,
		Route:        pointerOf(route),
		Status:       finalStatus,
		IP:           pointerOf(common.ClientIP(req)),
		UserAgent:    pointerOf(req.UserAgent()),
		RequestID:    pointerOf(requestID),
		Metadata:     toJSONB(metadata, req.URL.RawQuery),
	})
}

func buildAction(action, method, route string) string {
	if trimmed := strings.TrimSpace(action); trimmed != "" {
		return trimmed
	}
	switch strings.ToUpper(method) {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	}
	if route == "" {
		route = "/"
	}
	return strings.ToUpper(strings.TrimSpace(method)) + " " + route
}

func buildResource(resourceType, route string) string {
	if trimmed := strings.TrimSpace(resourceType); trimmed != "" {
		return trimmed
	}
	route = strings.Trim(strings.TrimSpace(route), "/")
	if route == "" {
		return "unknown"
	}
	segments := strings.Split(route, "/")
	if len(segments) >= 3 && segments[0] == "api" && segments[1] == "v1" {
		segments = segments[2:]
	}
	return strings.Join(segments, ".")
}

func normalizeActorKind(kind ActorKind) ActorKind {
	switch kind {
	case ActorKindOperator, ActorKindSystem:
		return kind
	default:
		return ActorKindAnonymous
	}
}

func sanitizeString(value *string) *string {
	if value == nil {
		return nil
	}
	return pointerOf(*value)
}

func pointerOf(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func toJSONB(metadata []byte, query string) []byte {
	if len(metadata) > 0 {
		return metadata
	}
	if strings.TrimSpace(query) == "" {
		return nil
	}
	data, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil
	}
	return data
}
