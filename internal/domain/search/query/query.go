// Package query compiles validated search criteria into an engine-agnostic
// boolean query: exact-match filters combined with AND, at most one scoring
// full-text clause, a sort directive, and an optional parent-grouping spec.
package query

import (
	"fmt"
	"time"
)

// Relation describes how a range query matches range-typed fields.
type Relation string

// Allowed range relations.
const (
	RelationIntersects Relation = "INTERSECTS"
	RelationContains   Relation = "CONTAINS"
	RelationWithin     Relation = "WITHIN"
)

// Filter is a single exact-match clause. Filters never contribute to
// relevance scoring.
type Filter interface {
	isFilter()
}

// TermFilter matches documents whose field equals the value exactly.
type TermFilter struct {
	Field string
	Value string
}

func (TermFilter) isFilter() {}

// TermsFilter matches documents whose field equals any of the values.
type TermsFilter struct {
	Field  string
	Values []string
}

func (TermsFilter) isFilter() {}

// MatchFilter matches documents whose full-text field contains the value.
// Unlike the scoring text clause it does not affect relevance.
type MatchFilter struct {
	Field string
	Value string
}

func (MatchFilter) isFilter() {}

// DateRangeFilter matches documents whose field falls inside the inclusive
// [GTE, LTE] window. Bounds are serialized RFC 3339 instants; an empty bound
// is open.
type DateRangeFilter struct {
	Field    string
	GTE      string
	LTE      string
	Relation Relation
}

func (DateRangeFilter) isFilter() {}

// BoostedField is a full-text target field with its relevance weight.
type BoostedField struct {
	Name  string
	Boost float64
}

// FulltextClause is the single scoring clause of a compiled query.
type FulltextClause struct {
	Fields []BoostedField
	Query  string
}

// ScoreField is the pseudo-field for relevance ordering.
const ScoreField = "score"

// SortSpec orders results by a field or by relevance (ScoreField).
type SortSpec struct {
	Field string
	Desc  bool
}

// GroupSpec rolls child hits up under a parent grouping key, keeping a
// bounded top-hits window per bucket. Buckets themselves are ordered by the
// maximum of the Order field across their members.
type GroupSpec struct {
	Field   string
	TopHits int
	Order   SortSpec
}

// CompiledQuery is the full translation of one CleanData record.
type CompiledQuery struct {
	Filters []Filter
	Text    *FulltextClause
	Sort    SortSpec
	Group   *GroupSpec
}

// IsMatchAll reports whether the query has no filters and no text clause,
// in which case it matches every document.
func (q CompiledQuery) IsMatchAll() bool {
	return len(q.Filters) == 0 && q.Text == nil
}

// BuildTermFilter returns an exact-match clause, or nothing for an empty value.
func BuildTermFilter(field, value string) []Filter {
	if value == "" {
		return nil
	}
	return []Filter{TermFilter{Field: field, Value: value}}
}

// BuildMatchFilter returns a non-scoring text-match clause, or nothing for
// an empty value.
func BuildMatchFilter(field, value string) []Filter {
	if value == "" {
		return nil
	}
	return []Filter{MatchFilter{Field: field, Value: value}}
}

// BuildTermsFilter returns an exact-match-any clause over the non-empty
// values, or nothing when no values remain.
func BuildTermsFilter(field string, values []string) []Filter {
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return []Filter{TermsFilter{Field: field, Values: kept}}
}

// BuildDateRangeFilter returns an inclusive range clause. The after bound
// starts at midnight of its day, the before bound ends at 23:59:59. Returns
// nothing when neither bound is supplied. A non-empty relation must be one
// of INTERSECTS, CONTAINS or WITHIN.
func BuildDateRangeFilter(field string, before, after time.Time, relation Relation) ([]Filter, error) {
	switch relation {
	case "", RelationIntersects, RelationContains, RelationWithin:
	default:
		return nil, fmt.Errorf("%q is not an allowed relation", string(relation))
	}

	if before.IsZero() && after.IsZero() {
		return nil, nil
	}

	f := DateRangeFilter{Field: field, Relation: relation}
	if !after.IsZero() {
		f.GTE = after.Format("2006-01-02") + "T00:00:00Z"
	}
	if !before.IsZero() {
		f.LTE = before.Format("2006-01-02") + "T23:59:59Z"
	}
	return []Filter{f}, nil
}

// BuildFulltextClause returns a free-text clause over the weighted fields,
// or nil for an empty query. The raw text is syntax-checked first; colons
// embedded in fielded values are escaped so the field:value grammar stays
// unambiguous.
func BuildFulltextClause(fields []BoostedField, value string) (*FulltextClause, error) {
	if value == "" {
		return nil, nil
	}
	if err := Validate(value); err != nil {
		return nil, err
	}
	return &FulltextClause{Fields: fields, Query: escapeFieldedColons(value)}, nil
}

// sortTokens is the closed set of order-by tokens a criteria string may carry.
var sortTokens = map[string]SortSpec{
	"score desc":        {Field: ScoreField, Desc: true},
	"dateFiled desc":    {Field: "dateFiled", Desc: true},
	"dateFiled asc":     {Field: "dateFiled"},
	"dateArgued desc":   {Field: "dateArgued", Desc: true},
	"dateArgued asc":    {Field: "dateArgued"},
	"name_reverse asc":  {Field: "name_reverse"},
	"dateReargued desc": {Field: "dateReargued", Desc: true},
}

// BuildSortSpec maps an order-by token to a sort directive. Missing or
// unrecognized tokens fall back to relevance descending.
func BuildSortSpec(orderBy string) SortSpec {
	if spec, ok := sortTokens[orderBy]; ok {
		return spec
	}
	return SortSpec{Field: ScoreField, Desc: true}
}
