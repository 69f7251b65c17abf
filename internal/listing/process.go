package listing

// Query bundles the UI state a list request carries.
type Query struct {
	Text         string
	Sort         SortSpec
	CurrentPage  int
	ItemsPerPage int
}

// Process filters, sorts, then paginates records. Pagination always sees the
// full filtered and sorted set, so totals reflect the post-filter size.
func Process(records []Record, q Query) Page {
	return Arrange(Filter(records, q.Text), q)
}

// Arrange sorts and paginates a set that has already been filtered by
// q.Text. Callers that need the filtered set themselves, such as report
// summaries, filter once and hand it here.
func Arrange(filtered []Record, q Query) Page {
	return Paginate(Sort(filtered, q.Sort), q.CurrentPage, q.ItemsPerPage)
}
