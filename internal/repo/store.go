// Package repo persists back-office records and audit entries.
package repo

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the record does not exist in the collection.
	ErrNotFound = errors.New("repo: record not found")
	// ErrStoreUnavailable indicates the backing store is not configured.
	ErrStoreUnavailable = errors.New("repo: store unavailable")
)

// Record is a stored document. The "_id", "created_at" and "updated_at" keys
// are owned by the store.
type Record = map[string]any

// Store provides collection-scoped access to JSON records.
type Store interface {
	List(ctx context.Context, collection string) ([]Record, error)
	ListByIDs(ctx context.Context, collection string, ids []string) ([]Record, error)
	Get(ctx context.Context, collection, id string) (Record, error)
	Insert(ctx context.Context, collection, id string, doc Record) (Record, error)
	Update(ctx context.Context, collection, id string, doc Record) (Record, error)
	Delete(ctx context.Context, collection, id string) error
	Ping(ctx context.Context) error
}

// AuditEntry is one persisted audit log row.
type AuditEntry struct {
	ID           int64     `json:"id"`
	ActorKind    string    `json:"actor_kind"`
	ActorID      *string   `json:"actor_id,omitempty"`
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   *string   `json:"resource_id,omitempty"`
	Method       string    `json:"method"`
	Path         string    `json:"path"`
	Route        *string   `json:"route,omitempty"`
	Status       int       `json:"status"`
	IP           *string   `json:"ip,omitempty"`
	UserAgent    *string   `json:"user_agent,omitempty"`
	RequestID    *string   `json:"request_id,omitempty"`
	Metadata     []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// AuditStore persists and lists audit log rows.
type AuditStore interface {
	InsertAuditLog(ctx context.Context, entry AuditEntry) error
	// ListAuditLogs returns entries newest first.
	ListAuditLogs(ctx context.Context, limit, offset int) ([]AuditEntry, error)
}

func stamp(doc Record, id string, created, updated time.Time) Record {
	out := make(Record, len(doc)+3)
	for k, v := range doc {
		out[k] = v
	}
	out["_id"] = id
	out["created_at"] = created.UTC().Format(time.RFC3339)
	out["updated_at"] = updated.UTC().Format(time.RFC3339)
	return out
}
