package common

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/noah-isme/backend-freight/internal/listing"
)

// ErrorBody is the payload under "error" in every failed response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ListBody is the envelope of list and report responses. Pagination always
// describes the post-filter set, so it matches X-Total-Count.
type ListBody struct {
	Data       []listing.Record        `json:"data"`
	Pagination listing.PaginationState `json:"pagination"`
	Sort       listing.SortSpec        `json:"sort"`
	Summary    any                     `json:"summary,omitempty"`
}

// JSON writes v with the given status. The body is encoded before the header
// goes out so an unencodable value still yields a well-formed 500.
func JSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data = []byte(`{"error":{"code":"INTERNAL","message":"response encoding failed"}}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

// JSONError renders an error response.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, map[string]any{
		"error": ErrorBody{Code: code, Message: message, Details: details},
	})
}

// WriteList renders a processed page with its X-Total-Count header.
func WriteList(w http.ResponseWriter, page listing.Page, sort listing.SortSpec, summary any) {
	items := page.Items
	if items == nil {
		items = []listing.Record{}
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(page.Pagination.Total))
	JSON(w, http.StatusOK, ListBody{
		Data:       items,
		Pagination: page.Pagination,
		Sort:       sort,
		Summary:    summary,
	})
}
