package records

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-freight/internal/common"
)

// Handler exposes the collection endpoints.
type Handler struct {
	service  *Service
	defaults common.ListDefaults
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service  *Service
	Defaults common.ListDefaults
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service, defaults: cfg.Defaults}
}

// Collections handles GET /api/v1/collections.
func (h *Handler) Collections(w http.ResponseWriter, r *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{"data": Names()})
}

// List handles GET /api/v1/{collection}.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "records service not configured", nil)
		return
	}
	params, err := common.ParseListParams(r.URL.Query(), h.defaults)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	page, err := h.service.List(r.Context(), chi.URLParam(r, "collection"), params.Query)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.WriteList(w, page, params.Query.Sort, nil)
}

// Get handles GET /api/v1/{collection}/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "records service not configured", nil)
		return
	}
	rec, err := h.service.Get(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rec})
}

// Create handles POST /api/v1/{collection}.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "records service not configured", nil)
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	rec, err := h.service.Create(r.Context(), chi.URLParam(r, "collection"), body)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": rec})
}

// Update handles PUT /api/v1/{collection}/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "records service not configured", nil)
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	rec, err := h.service.Update(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"), body)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rec})
}

// Delete handles DELETE /api/v1/{collection}/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "records service not configured", nil)
		return
	}
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id")); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Quote handles POST /api/v1/pricing/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "records service not configured", nil)
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	req, err := decodeQuote(body)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	quote, err := h.service.Quote(r.Context(), req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": quote})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return nil, false
	}
	return body, true
}
