// Package percolator persists the reverse-search registry: one entry per
// active alert carrying its pre-rendered query string, so a fresh document
// can be matched against every stored query without recompiling criteria.
package percolator

import (
	"context"
	"fmt"
	"strings"

	"github.com/caselens/lexalert/internal/db"
	"github.com/caselens/lexalert/internal/db/ftquery"
	"github.com/caselens/lexalert/internal/domain"
	domalert "github.com/caselens/lexalert/internal/domain/alert"
	"github.com/caselens/lexalert/internal/domain/search/query"
	"github.com/caselens/lexalert/internal/domain/search/searchtype"
)

// Entry is one stored query ready to run against a document.
type Entry struct {
	AlertID   string
	UserID    string
	AlertName string
	Rate      domalert.Rate
	Type      searchtype.Type
	Query     string
}

// store is the consumer interface for percolator persistence.
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Repo implements the percolator registry of the usecase layer.
type Repo struct {
	store store
}

// New creates a percolator repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Upsert compiles an alert's criteria and stores the rendered query.
// Ordering is stripped first: sort directives have no meaning inside a
// stored query and would leak scoring syntax into it.
func (r *Repo) Upsert(ctx context.Context, a domalert.Alert) error {
	compiled, err := query.Compile(a.Criteria().WithoutOrdering())
	if err != nil {
		return fmt.Errorf("compile criteria for alert %s: %w", a.ID(), err)
	}
	rendered, err := ftquery.Render(compiled)
	if err != nil {
		return fmt.Errorf("render query for alert %s: %w", a.ID(), err)
	}

	fields := map[string]string{
		"alert_id": a.ID(),
		"user_id":  a.UserID(),
		"name":     a.Name(),
		"rate":     string(a.Rate()),
		"type":     string(a.Type()),
		"query":    rendered,
	}
	if err := r.store.HSet(ctx, entryKey(a.ID()), fields); err != nil {
		return fmt.Errorf("store percolator entry %s: %w", a.ID(), err)
	}
	return nil
}

// Delete removes an alert's stored query. Missing entries are not an error:
// alerts at rate off never had one.
func (r *Repo) Delete(ctx context.Context, alertID string) error {
	if err := r.store.Del(ctx, entryKey(alertID)); err != nil {
		return fmt.Errorf("delete percolator entry %s: %w", alertID, err)
	}
	return nil
}

// Exists reports whether an alert has a stored query.
func (r *Repo) Exists(ctx context.Context, alertID string) (bool, error) {
	ok, err := r.store.Exists(ctx, entryKey(alertID))
	if err != nil {
		return false, fmt.Errorf("probe percolator entry %s: %w", alertID, err)
	}
	return ok, nil
}

// Page returns one page of stored queries for a search type, ordered by
// insertion. The total lets callers drive offset paging to the end.
func (r *Repo) Page(ctx context.Context, t searchtype.Type, offset, limit int) ([]Entry, int, error) {
	q := &db.SearchQuery{
		Index:  indexName,
		Query:  fmt.Sprintf("@type:{%s}", ftquery.EscapeTag(string(t))),
		Offset: offset,
		Limit:  limit,
	}
	res, err := r.store.Search(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("page percolator entries: %w", err)
	}

	entries := make([]Entry, 0, len(res.Entries))
	for _, e := range res.Entries {
		entries = append(entries, Entry{
			AlertID:   fallback(e.Fields["alert_id"], entryID(e.Key)),
			UserID:    e.Fields["user_id"],
			AlertName: e.Fields["name"],
			Rate:      domalert.Rate(e.Fields["rate"]),
			Type:      searchtype.Type(e.Fields["type"]),
			Query:     e.Fields["query"],
		})
	}
	return entries, res.Total, nil
}

// Count returns the number of stored queries.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, indexName, "*")
	if err != nil {
		return 0, fmt.Errorf("count percolator entries: %w", err)
	}
	return n, nil
}

const (
	keyPrefix = domain.KeyPrefix + "perc:"
	indexName = domain.KeyPrefix + "perc:idx"
)

func entryKey(alertID string) string {
	return keyPrefix + alertID
}

func entryID(key string) string {
	return strings.TrimPrefix(key, keyPrefix)
}

func fallback(v, alt string) string {
	if v != "" {
		return v
	}
	return alt
}

// Index returns the FT index definition for percolator entries.
func Index() *db.IndexDefinition {
	return &db.IndexDefinition{
		Name:     indexName,
		Prefixes: []string{keyPrefix},
		Fields: []db.IndexField{
			{Name: "type", Type: db.IndexFieldTag},
			{Name: "rate", Type: db.IndexFieldTag},
			{Name: "user_id", Type: db.IndexFieldTag},
		},
	}
}
