package reports

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-freight/internal/common"
)

// Handler exposes report read endpoints.
type Handler struct {
	Svc      *Service
	Defaults common.ListDefaults
}

// Report handles GET /api/v1/reports/{collection}.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "REPORTS_NOT_CONFIGURED", "reports service not configured", nil)
		return
	}
	params, err := common.ParseListParams(r.URL.Query(), h.Defaults)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	report, err := h.Svc.Report(r.Context(), chi.URLParam(r, "collection"), params.Query)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.WriteList(w, report.Page, report.Sort, report.Summary)
}

// Snapshot handles GET /api/v1/reports/{collection}/snapshot.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "REPORTS_NOT_CONFIGURED", "reports service not configured", nil)
		return
	}
	snap, err := h.Svc.Snapshot(r.Context(), chi.URLParam(r, "collection"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": snap})
}
