package records

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-freight/internal/common"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	svc, _, _ := newTestService(t)
	h := NewHandler(HandlerConfig{Service: svc, Defaults: common.ListDefaults{PerPage: 10, MaxPerPage: 100}})
	r := chi.NewRouter()
	r.Get("/collections", h.Collections)
	r.Post("/pricing/quote", h.Quote)
	r.Get("/{collection}", h.List)
	r.Post("/{collection}", h.Create)
	r.Get("/{collection}/{id}", h.Get)
	r.Put("/{collection}/{id}", h.Update)
	r.Delete("/{collection}/{id}", h.Delete)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, reader))
	return rr
}

func TestHandlerCRUDFlow(t *testing.T) {
	router := newTestRouter(t)

	rr := do(t, router, http.MethodPost, "/containers", `{"number":"MSCU1","size":"40hc"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	var created struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	id := created.Data["_id"].(string)

	rr = do(t, router, http.MethodGet, "/containers/"+id, "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, router, http.MethodPut, "/containers/"+id, `{"number":"MSCU1","size":"20ft"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"size":"20ft"`)

	rr = do(t, router, http.MethodPut, "/containers/"+id, `{"number":""}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Contains(t, rr.Body.String(), "VALIDATION_ERROR")

	rr = do(t, router, http.MethodDelete, "/containers/"+id, "")
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, router, http.MethodGet, "/containers/"+id, "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlerListShape(t *testing.T) {
	router := newTestRouter(t)
	for _, body := range []string{
		`{"customer_id":"c1","origin":"Medan","destination":"Jakarta","sender":{"name":"Budi"}}`,
		`{"customer_id":"c2","origin":"Bandung","destination":"Jakarta"}`,
		`{"customer_id":"c3","origin":"Ambon","destination":"Makassar","sender":{"name":"Ani"}}`,
	} {
		require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/bookings", body).Code)
	}

	rr := do(t, router, http.MethodGet, "/bookings?q=jakarta&sort=sender.name&toggle=sender.name&limit=1&page=9", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "2", rr.Header().Get("X-Total-Count"))

	var resp struct {
		Data       []map[string]any `json:"data"`
		Pagination map[string]int   `json:"pagination"`
		Sort       map[string]any   `json:"sort"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, map[string]int{"currentPage": 2, "itemsPerPage": 1, "total": 2, "totalPages": 2}, resp.Pagination)
	require.Equal(t, map[string]any{"field": "sender.name", "direction": "asc"}, resp.Sort)
	require.Len(t, resp.Data, 1)
	require.Equal(t, "Medan", resp.Data[0]["origin"])
}

func TestHandlerListErrors(t *testing.T) {
	router := newTestRouter(t)
	require.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/invoices", "").Code)
	require.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/customers?dir=up", "").Code)
	require.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/customers?page=abc", "").Code)
}

func TestHandlerCollectionsAndQuote(t *testing.T) {
	router := newTestRouter(t)

	rr := do(t, router, http.MethodGet, "/collections", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"price_listings"`)

	rr = do(t, router, http.MethodPost, "/pricing/quote", `{"base_amount":50}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"data":{"base_amount":50,"partner_charge":null,"total":50}}`, rr.Body.String())

	rr = do(t, router, http.MethodPost, "/pricing/quote", `not json`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
