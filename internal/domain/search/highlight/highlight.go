// Package highlight maps search types to the fields that get match
// highlighting and the tag each surface wraps matches in.
package highlight

import "github.com/caselens/lexalert/internal/domain/search/searchtype"

// Tags wrapped around matched fragments. Live search renders <mark> spans,
// alert emails use <strong> so the markup survives plain HTML mail clients.
const (
	SearchTag = "mark"
	AlertTag  = "strong"
)

var searchFields = map[searchtype.Type][]string{
	searchtype.Opinion:      {"caseName", "docketNumber", "text"},
	searchtype.OralArgument: {"caseName", "docketNumber", "text"},
	searchtype.Recap:        {"caseName", "docketNumber", "description"},
	searchtype.Dockets:      {"caseName", "docketNumber"},
	searchtype.People:       {"name", "text"},
}

var alertFields = map[searchtype.Type][]string{
	searchtype.Opinion:      {"caseName", "docketNumber", "text"},
	searchtype.OralArgument: {"caseName", "docketNumber", "judge", "text"},
	searchtype.Recap:        {"caseName", "docketNumber", "description"},
	searchtype.Dockets:      {"caseName", "docketNumber"},
	searchtype.People:       {"name", "text"},
}

// FieldsFor returns the highlighted fields for a search type. Alert
// rendering highlights a slightly wider field set than live search.
func FieldsFor(t searchtype.Type, alerts bool) []string {
	if alerts {
		return alertFields[t]
	}
	return searchFields[t]
}

// TagFor returns the wrapping tag for the given surface.
func TagFor(alerts bool) string {
	if alerts {
		return AlertTag
	}
	return SearchTag
}
