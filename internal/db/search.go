package db

// HighlightSpec asks the engine to wrap matched terms in the named fields
// with the given tag pair. Highlighted values replace the plain values in
// the returned fields.
type HighlightSpec struct {
	Fields   []string
	OpenTag  string
	CloseTag string
}

// SearchQuery is the input for a paginated FT.SEARCH.
type SearchQuery struct {
	Index        string
	Query        string
	Offset       int
	Limit        int
	ReturnFields []string
	SortBy       string // empty sorts by relevance
	SortDesc     bool
	WithScores   bool
	Highlight    *HighlightSpec
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
