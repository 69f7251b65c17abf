package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. It backs local development
// (STORE_DRIVER=memory) and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]memoryRow
	audit       []AuditEntry
	now         func() time.Time
}

type memoryRow struct {
	id      string
	doc     Record
	created time.Time
	updated time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: map[string][]memoryRow{}, now: time.Now}
}

// WithNow overrides the clock used for timestamps.
func (s *MemoryStore) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns copies of every record in insertion order.
func (s *MemoryStore) List(_ context.Context, collection string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.collections[collection]
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.record())
	}
	return out, nil
}

// ListByIDs returns copies of the records whose ids are listed.
func (s *MemoryStore) ListByIDs(_ context.Context, collection string, ids []string) ([]Record, error) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Record{}
	for _, row := range s.collections[collection] {
		if _, ok := want[row.id]; ok {
			out = append(out, row.record())
		}
	}
	return out, nil
}

// Get returns a copy of a single record.
func (s *MemoryStore) Get(_ context.Context, collection, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.collections[collection] {
		if row.id == id {
			return row.record(), nil
		}
	}
	return nil, ErrNotFound
}

// Insert appends a record.
func (s *MemoryStore) Insert(_ context.Context, collection, id string, doc Record) (Record, error) {
	body, err := cloneDoc(doc)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", collection, err)
	}
	now := s.now()
	row := memoryRow{id: id, doc: body, created: now, updated: now}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.collections[collection] {
		if existing.id == id {
			return nil, fmt.Errorf("insert %s: duplicate id %s", collection, id)
		}
	}
	s.collections[collection] = append(s.collections[collection], row)
	return row.record(), nil
}

// Update replaces the body of an existing record.
func (s *MemoryStore) Update(_ context.Context, collection, id string, doc Record) (Record, error) {
	body, err := cloneDoc(doc)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", collection, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.collections[collection]
	for i := range rows {
		if rows[i].id == id {
			rows[i].doc = body
			rows[i].updated = s.now()
			return rows[i].record(), nil
		}
	}
	return nil, ErrNotFound
}

// Delete removes a record.
func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.collections[collection]
	for i := range rows {
		if rows[i].id == id {
			s.collections[collection] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// InsertAuditLog records an audit entry in memory.
func (s *MemoryStore) InsertAuditLog(_ context.Context, entry AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	entry.ID = int64(len(s.audit) + 1)
	s.audit = append(s.audit, entry)
	return nil
}

// ListAuditLogs returns audit entries newest first.
func (s *MemoryStore) ListAuditLogs(_ context.Context, limit, offset int) ([]AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []AuditEntry{}
	for i := len(s.audit) - 1 - max(offset, 0); i >= 0 && len(out) < limit; i-- {
		out = append(out, s.audit[i])
	}
	return out, nil
}

func (r memoryRow) record() Record {
	body, _ := cloneDoc(r.doc)
	return stamp(body, r.id, r.created, r.updated)
}

// cloneDoc deep-copies through JSON so stored rows look exactly like rows
// read back from Postgres.
func cloneDoc(doc Record) (Record, error) {
	data, err := json.Marshal(strip(doc))
	if err != nil {
		return nil, err
	}
	out := Record{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
