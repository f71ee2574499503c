package query

import (
	"regexp"

	"github.com/caselens/lexalert/internal/domain/search/criteria"
	"github.com/caselens/lexalert/internal/domain/search/searchtype"
)

// Default top-hits window per parent bucket, and the widened window used
// when the query pins a single parent by its grouping key. The pinned value
// is also the engine cap.
const (
	GroupTopHitsDefault = 5
	GroupTopHitsPinned  = 100
)

// GroupWindows overrides the per-bucket top-hits windows: Default for
// ordinary queries, Pinned when the query pins one parent. Zero fields fall
// back to the package defaults, and both windows are capped at
// GroupTopHitsPinned.
type GroupWindows struct {
	Default int
	Pinned  int
}

func (w GroupWindows) normalize() GroupWindows {
	if w.Default <= 0 {
		w.Default = GroupTopHitsDefault
	}
	if w.Pinned <= 0 || w.Pinned > GroupTopHitsPinned {
		w.Pinned = GroupTopHitsPinned
	}
	if w.Default > w.Pinned {
		w.Default = w.Pinned
	}
	return w
}

// fulltextFields carries the weighted free-text targets per search type.
var fulltextFields = map[searchtype.Type][]BoostedField{
	searchtype.Opinion: {
		{Name: "caseName", Boost: 4},
		{Name: "docketNumber", Boost: 2},
		{Name: "text", Boost: 1},
	},
	searchtype.OralArgument: {
		{Name: "caseName", Boost: 4},
		{Name: "docketNumber", Boost: 2},
		{Name: "text", Boost: 1},
	},
	searchtype.Recap: {
		{Name: "caseName", Boost: 4},
		{Name: "docketNumber", Boost: 3},
		{Name: "description", Boost: 2},
		{Name: "text", Boost: 1},
	},
	searchtype.Dockets: {
		{Name: "caseName", Boost: 4},
		{Name: "docketNumber", Boost: 3},
		{Name: "text", Boost: 1},
	},
	searchtype.People: {
		{Name: "name", Boost: 4},
		{Name: "text", Boost: 1},
	},
}

// dateField is the range-filter target per search type.
func dateField(t searchtype.Type) string {
	if t == searchtype.OralArgument {
		return "dateArgued"
	}
	return "dateFiled"
}

// Compile translates validated criteria into a boolean query with the
// default grouping windows. Empty criteria fields contribute nothing, so a
// blank record compiles to a match-all query.
func Compile(cd criteria.CleanData) (CompiledQuery, error) {
	return CompileWindows(cd, GroupWindows{})
}

// CompileWindows is Compile with caller-supplied grouping windows.
func CompileWindows(cd criteria.CleanData, w GroupWindows) (CompiledQuery, error) {
	t := cd.SearchType()
	w = w.normalize()

	var q CompiledQuery
	q.Filters = append(q.Filters, BuildTermsFilter("court_id", cd.Courts())...)
	q.Filters = append(q.Filters, BuildTermFilter("judge", cd.Judge())...)
	q.Filters = append(q.Filters, BuildMatchFilter("caseName", cd.CaseName())...)
	q.Filters = append(q.Filters, BuildMatchFilter("docketNumber", cd.DocketNumber())...)

	before, after := cd.FiledBefore(), cd.FiledAfter()
	if t == searchtype.OralArgument {
		before, after = cd.ArguedBefore(), cd.ArguedAfter()
	}
	rangeFilters, err := BuildDateRangeFilter(dateField(t), before, after, RelationIntersects)
	if err != nil {
		return CompiledQuery{}, err
	}
	q.Filters = append(q.Filters, rangeFilters...)

	text, err := BuildFulltextClause(fulltextFields[t], cd.Query())
	if err != nil {
		return CompiledQuery{}, err
	}
	q.Text = text

	q.Sort = BuildSortSpec(cd.OrderBy())

	if t.HasChildDocs() {
		parent := t.ParentIDField()
		size := w.Default
		if pinsParent(cd.Query(), parent) {
			size = w.Pinned
		}
		q.Group = &GroupSpec{Field: parent, TopHits: size, Order: q.Sort}
	}
	return q, nil
}

// pinsParent reports whether the free text filters on a single parent id,
// e.g. "docket_id:123". Such queries get the widened top-hits window since
// only one bucket can match.
func pinsParent(q, field string) bool {
	if q == "" {
		return false
	}
	re := regexp.MustCompile(regexp.QuoteMeta(field) + `:\d+`)
	return re.MatchString(q)
}
