package listing

// DefaultItemsPerPage is used when a caller passes a page size below one.
const DefaultItemsPerPage = 10

// PaginationState describes the page window beneath a table.
type PaginationState struct {
	CurrentPage  int `json:"currentPage"`
	ItemsPerPage int `json:"itemsPerPage"`
	Total        int `json:"total"`
	TotalPages   int `json:"totalPages"`
}

// Page is one window of processed records.
type Page struct {
	Items      []Record        `json:"data"`
	Pagination PaginationState `json:"pagination"`
}

// Paginate slices records into the requested page. The page number is clamped
// into [1, totalPages] and totalPages is at least 1, so an empty input yields
// page 1 of 1 with no items.
func Paginate(records []Record, currentPage, itemsPerPage int) Page {
	if itemsPerPage < 1 {
		itemsPerPage = DefaultItemsPerPage
	}
	total := len(records)
	totalPages := (total + itemsPerPage - 1) / itemsPerPage
	if totalPages < 1 {
		totalPages = 1
	}
	page := min(max(currentPage, 1), totalPages)

	start := (page - 1) * itemsPerPage
	end := min(start+itemsPerPage, total)
	items := make([]Record, 0, end-start)
	if start < end {
		items = append(items, records[start:end]...)
	}
	return Page{
		Items: items,
		Pagination: PaginationState{
			CurrentPage:  page,
			ItemsPerPage: itemsPerPage,
			Total:        total,
			TotalPages:   totalPages,
		},
	}
}
