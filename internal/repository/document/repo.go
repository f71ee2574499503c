// Package document persists indexable documents, one FT index per search
// type, and runs single-document match probes for percolation.
package document

import (
	"context"
	"fmt"
	"strings"

	"github.com/caselens/lexalert/internal/db"
	"github.com/caselens/lexalert/internal/db/ftquery"
	"github.com/caselens/lexalert/internal/domain"
	domdoc "github.com/caselens/lexalert/internal/domain/document"
	"github.com/caselens/lexalert/internal/domain/hit"
	"github.com/caselens/lexalert/internal/domain/search/searchtype"
)

// store is the consumer interface for document persistence.
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Repo implements the document repositories of the usecase layer.
type Repo struct {
	store store
}

// New creates a document repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Upsert writes a document into its type's index. Date fields are stored as
// epoch seconds so range filters work against NUMERIC index fields.
func (r *Repo) Upsert(ctx context.Context, d domdoc.Document) error {
	key := docKey(d.Type(), d.ID())
	if err := r.store.HSet(ctx, key, buildHashFields(d)); err != nil {
		return fmt.Errorf("upsert document %s: %w", key, err)
	}
	return nil
}

// Get returns a stored document.
func (r *Repo) Get(ctx context.Context, t searchtype.Type, id string) (domdoc.Document, error) {
	m, err := r.store.HGetAll(ctx, docKey(t, id))
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("get document %s: %w", id, err)
	}
	if len(m) == 0 {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	return parseHashFields(id, t, m)
}

// Delete removes a document.
func (r *Repo) Delete(ctx context.Context, t searchtype.Type, id string) error {
	key := docKey(t, id)
	exists, err := probeExists(ctx, r.store, key)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrDocumentNotFound
	}
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("delete document %s: %w", key, err)
	}
	return nil
}

// Match probes whether one document satisfies a rendered query. Returns nil
// when the document does not match. Highlighted field values replace plain
// values in the returned document.
func (r *Repo) Match(ctx context.Context, t searchtype.Type, id, rendered string, hl *db.HighlightSpec) (*hit.Document, error) {
	q := &db.SearchQuery{
		Index:     IndexName(t),
		Query:     ftquery.ScopeToKey(rendered, "id", id),
		Limit:     1,
		Highlight: hl,
	}
	res, err := r.store.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("match document %s: %w", id, err)
	}
	if res.Total == 0 || len(res.Entries) == 0 {
		return nil, nil
	}
	doc := entryToDocument(res.Entries[0], t)
	return &doc, nil
}

// Search runs a rendered query against a type's index with pagination.
func (r *Repo) Search(ctx context.Context, t searchtype.Type, rendered string, offset, limit int, sortBy string, sortDesc bool, hl *db.HighlightSpec) ([]hit.Document, int, error) {
	q := &db.SearchQuery{
		Index:     IndexName(t),
		Query:     rendered,
		Offset:    offset,
		Limit:     limit,
		SortBy:    sortBy,
		SortDesc:  sortDesc,
		Highlight: hl,
	}
	res, err := r.store.Search(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("search %s index: %w", t, err)
	}

	docs := make([]hit.Document, 0, len(res.Entries))
	for _, entry := range res.Entries {
		docs = append(docs, entryToDocument(entry, t))
	}
	return docs, res.Total, nil
}

// Count returns the matching document count for a rendered query.
func (r *Repo) Count(ctx context.Context, t searchtype.Type, rendered string) (int, error) {
	n, err := r.store.SearchCount(ctx, IndexName(t), rendered)
	if err != nil {
		return 0, fmt.Errorf("count %s index: %w", t, err)
	}
	return n, nil
}

func probeExists(ctx context.Context, s store, key string) (bool, error) {
	m, err := s.HGetAll(ctx, key)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	return len(m) > 0, nil
}

func docKey(t searchtype.Type, id string) string {
	return fmt.Sprintf("%sdoc:%s:%s", domain.KeyPrefix, t, id)
}

func docID(t searchtype.Type, key string) string {
	return strings.TrimPrefix(key, fmt.Sprintf("%sdoc:%s:", domain.KeyPrefix, t))
}

// IndexName returns the FT index name for a search type.
func IndexName(t searchtype.Type) string {
	return fmt.Sprintf("%sdocs:%s:idx", domain.KeyPrefix, t)
}
