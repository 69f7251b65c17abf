package common

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/noah-isme/backend-freight/internal/listing"
)

// ListDefaults bounds page sizes accepted from clients.
type ListDefaults struct {
	PerPage    int
	MaxPerPage int
}

// ListParams is the normalised list request state.
type ListParams struct {
	Query    listing.Query
	Toggle   string
	TwoState bool
}

// ParseListParams reads q, sort, dir, toggle, cycle, page and limit. A header
// click in toggle is applied to the incoming sort before it is returned.
func ParseListParams(values url.Values, defaults ListDefaults) (ListParams, error) {
	perPage := defaults.PerPage
	if perPage < 1 {
		perPage = listing.DefaultItemsPerPage
	}
	maxPerPage := defaults.MaxPerPage
	if maxPerPage < 1 {
		maxPerPage = 100
	}

	params := ListParams{Query: listing.Query{CurrentPage: 1, ItemsPerPage: perPage}}
	params.Query.Text = strings.TrimSpace(values.Get("q"))

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil {
			return params, BadRequest("page", "page must be an integer", err)
		}
		params.Query.CurrentPage = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return params, BadRequest("limit", "limit must be a positive integer", err)
		}
		params.Query.ItemsPerPage = min(limit, maxPerPage)
	}

	dir, ok := listing.ParseDirection(values.Get("dir"))
	if !ok {
		return params, BadRequest("dir", "dir must be asc or desc", nil)
	}
	params.Query.Sort = listing.NewSortSpec(values.Get("sort"), dir)

	params.TwoState = strings.TrimSpace(values.Get("cycle")) == "2"
	params.Toggle = strings.TrimSpace(values.Get("toggle"))
	if listing.ValidField(params.Toggle) {
		if params.TwoState {
			params.Query.Sort = listing.ToggleSort(params.Query.Sort, params.Toggle)
		} else {
			params.Query.Sort = listing.CycleSort(params.Query.Sort, params.Toggle)
		}
	}
	return params, nil
}
