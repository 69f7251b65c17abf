package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPGStore constructs a Store backed by a pgx connection pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// PGStore keeps records as JSONB documents in the records table.
type PGStore struct {
	pool *pgxpool.Pool
}

// List returns every record of the collection in creation order.
func (s *PGStore) List(ctx context.Context, collection string) ([]Record, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT id, data, created_at, updated_at FROM records
WHERE collection = $1 ORDER BY created_at, id`, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return collectRecords(rows)
}

// ListByIDs returns the records of the collection whose ids are listed.
// Ids that are not valid UUIDs are ignored.
func (s *PGStore) ListByIDs(ctx context.Context, collection string, ids []string) ([]Record, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	parsed := make([]string, 0, len(ids))
	for _, id := range ids {
		if u, err := uuid.Parse(id); err == nil {
			parsed = append(parsed, u.String())
		}
	}
	if len(parsed) == 0 {
		return []Record{}, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT id, data, created_at, updated_at FROM records
WHERE collection = $1 AND id = ANY($2::uuid[]) ORDER BY created_at, id`, collection, parsed)
	if err != nil {
		return nil, fmt.Errorf("list %s by ids: %w", collection, err)
	}
	return collectRecords(rows)
}

// Get fetches a single record.
func (s *PGStore) Get(ctx context.Context, collection, id string) (Record, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT id, data, created_at, updated_at FROM records
WHERE collection = $1 AND id = $2`, collection, uid)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// Insert stores a new record under the provided id.
func (s *PGStore) Insert(ctx context.Context, collection, id string, doc Record) (Record, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("insert %s: invalid id: %w", collection, err)
	}
	payload, err := json.Marshal(strip(doc))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", collection, err)
	}
	row := s.pool.QueryRow(ctx, `INSERT INTO records (collection, id, data)
VALUES ($1, $2, $3) RETURNING id, data, created_at, updated_at`, collection, uid, payload)
	return scanRecord(row)
}

// Update replaces the document body of an existing record.
func (s *PGStore) Update(ctx context.Context, collection, id string, doc Record) (Record, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}
	payload, err := json.Marshal(strip(doc))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", collection, err)
	}
	row := s.pool.QueryRow(ctx, `UPDATE records SET data = $3, updated_at = now()
WHERE collection = $1 AND id = $2 RETURNING id, data, created_at, updated_at`, collection, uid, payload)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// Delete removes a record.
func (s *PGStore) Delete(ctx context.Context, collection, id string) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM records WHERE collection = $1 AND id = $2`, collection, uid)
	if err != nil {
		return fmt.Errorf("delete %s: %w", collection, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks database connectivity.
func (s *PGStore) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	return s.pool.Ping(ctx)
}

// InsertAuditLog persists an audit entry.
func (s *PGStore) InsertAuditLog(ctx context.Context, e AuditEntry) error {
	if s == nil || s.pool == nil {
		return ErrStoreUnavailable
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO audit_logs
(actor_kind, actor_id, action, resource_type, resource_id, method, path, route, status, ip, user_agent, request_id, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		e.ActorKind, e.ActorID, e.Action, e.ResourceType, e.ResourceID, e.Method, e.Path, e.Route,
		e.Status, e.IP, e.UserAgent, e.RequestID, e.Metadata)
	return err
}

// ListAuditLogs returns audit entries newest first.
func (s *PGStore) ListAuditLogs(ctx context.Context, limit, offset int) ([]AuditEntry, error) {
	if s == nil || s.pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.pool.Query(ctx, `SELECT id, actor_kind, actor_id, action, resource_type, resource_id, method, path,
route, status, ip, user_agent, request_id, metadata, created_at
FROM audit_logs ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()
	out := []AuditEntry{}
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.ActorKind, &e.ActorID, &e.Action, &e.ResourceType, &e.ResourceID, &e.Method,
			&e.Path, &e.Route, &e.Status, &e.IP, &e.UserAgent, &e.RequestID, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func collectRecords(rows pgx.Rows) ([]Record, error) {
	defer rows.Close()
	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		id      uuid.UUID
		data    []byte
		created time.Time
		updated time.Time
	)
	if err := row.Scan(&id, &data, &created, &updated); err != nil {
		return nil, err
	}
	doc := Record{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", id, err)
		}
	}
	return stamp(doc, id.String(), created, updated), nil
}

func strip(doc Record) Record {
	out := make(Record, len(doc))
	for k, v := range doc {
		switch k {
		case "_id", "created_at", "updated_at":
			continue
		}
		out[k] = v
	}
	return out
}
