package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/noah-isme/backend-freight/internal/repo"
)

type listStore struct {
	receivedLimit  int
	receivedOffset int
}

func (l *listStore) InsertAuditLog(context.Context, repo.AuditEntry) error { return nil }

func (l *listStore) ListAuditLogs(_ context.Context, limit, offset int) ([]repo.AuditEntry, error) {
	l.receivedLimit = limit
	l.receivedOffset = offset
	return []repo.AuditEntry{{ID: 7, Action: "create", Method: "POST"}}, nil
}

func TestHandlerList(t *testing.T) {
	store := &listStore{}
	h := Handler{Store: store}
	req := httptest.NewRequest(http.MethodGet, "/audit-logs?limit=25&offset=10", nil)
	rr := httptest.NewRecorder()
	h.List(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if store.receivedLimit != 25 || store.receivedOffset != 10 {
		t.Fatalf("unexpected pagination params: %d/%d", store.receivedLimit, store.receivedOffset)
	}
	var payload struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Data) != 1 || payload.Data[0]["action"] != "create" {
		t.Fatalf("unexpected payload: %+v", payload.Data)
	}
}

func TestHandlerListClampsLimit(t *testing.T) {
	store := &listStore{}
	h := Handler{Store: store}
	req := httptest.NewRequest(http.MethodGet, "/audit-logs?limit=5000&offset=-3", nil)
	rr := httptest.NewRecorder()
	h.List(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if store.receivedLimit != defaultListLimit || store.receivedOffset != 0 {
		t.Fatalf("unexpected pagination params: %d/%d", store.receivedLimit, store.receivedOffset)
	}
}

func TestHandlerListWithoutStore(t *testing.T) {
	rr := httptest.NewRecorder()
	Handler{}.List(rr, httptest.NewRequest(http.MethodGet, "/audit-logs", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}
