// Package search runs live searches: criteria are compiled, rendered and
// executed with match highlighting, then results are rolled up under their
// parent records and enriched with court display names.
package search

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/caselens/lexalert/internal/db"
	"github.com/caselens/lexalert/internal/db/ftquery"
	"github.com/caselens/lexalert/internal/domain/hit"
	"github.com/caselens/lexalert/internal/domain/search/criteria"
	"github.com/caselens/lexalert/internal/domain/search/highlight"
	"github.com/caselens/lexalert/internal/domain/search/query"
	"github.com/caselens/lexalert/internal/logger"
)

// Result is one page of aggregated search results.
type Result struct {
	Docs     []hit.Document
	Total    int
	Page     int
	PageSize int
}

// Config bounds live search paging and parent grouping. Zero fields fall
// back to sensible defaults.
type Config struct {
	DefaultPageSize int
	MaxPageSize     int
	// GroupTopHits is the child window kept per parent bucket;
	// GroupTopHitsMax replaces it when the query pins a single parent.
	GroupTopHits    int
	GroupTopHitsMax int
}

// Service executes live searches.
type Service struct {
	docs            DocumentSearcher
	courts          CourtNamer
	defaultPageSize int
	maxPageSize     int
	windows         query.GroupWindows
}

// New creates a search service.
func New(docs DocumentSearcher, courts CourtNamer, cfg Config) *Service {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 20
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = cfg.DefaultPageSize
	}
	return &Service{
		docs:            docs,
		courts:          courts,
		defaultPageSize: cfg.DefaultPageSize,
		maxPageSize:     cfg.MaxPageSize,
		windows:         query.GroupWindows{Default: cfg.GroupTopHits, Pinned: cfg.GroupTopHitsMax},
	}
}

// Run parses and executes one search. Page numbers start at 1.
func (s *Service) Run(ctx context.Context, rawQuery string, page, pageSize int) (Result, error) {
	cd, err := criteria.Parse(rawQuery)
	if err != nil {
		return Result{}, err
	}

	compiled, err := query.CompileWindows(cd, s.windows)
	if err != nil {
		return Result{}, err
	}
	rendered, err := ftquery.Render(compiled)
	if err != nil {
		return Result{}, fmt.Errorf("render query: %w", err)
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.defaultPageSize
	}
	if pageSize > s.maxPageSize {
		pageSize = s.maxPageSize
	}

	t := cd.SearchType()
	hl := &db.HighlightSpec{
		Fields:   highlight.FieldsFor(t, false),
		OpenTag:  highlight.SearchTag,
		CloseTag: highlight.SearchTag,
	}

	sortBy := compiled.Sort.Field
	if sortBy == query.ScoreField {
		sortBy = ""
	}

	// Grouped types fetch a wider window of child hits, since several of
	// them collapse into one parent bucket.
	fetch := pageSize
	if compiled.Group != nil {
		fetch = pageSize * compiled.Group.TopHits
	}

	docs, total, err := s.docs.Search(ctx, t, rendered, (page-1)*pageSize, fetch, sortBy, compiled.Sort.Desc, hl)
	if err != nil {
		// A query that cleared local validation can still trip over grammar
		// the engine alone knows about. Surface that as a syntax rejection,
		// not a server fault.
		if errors.Is(err, db.ErrBadQuery) {
			return Result{}, &query.SyntaxError{Kind: query.KindBadRequest, Query: cd.Query()}
		}
		return Result{}, err
	}

	if compiled.Group != nil {
		docs = GroupByParent(docs, compiled.Group.Field, compiled.Group.TopHits, compiled.Group.Order)
		if len(docs) > pageSize {
			docs = docs[:pageSize]
		}
	}

	s.mergeCourtNames(ctx, docs)

	return Result{Docs: docs, Total: total, Page: page, PageSize: pageSize}, nil
}

// mergeCourtNames swaps court ids for display names where known. Lookup
// failures leave the ids in place.
func (s *Service) mergeCourtNames(ctx context.Context, docs []hit.Document) {
	ids := make([]string, 0, len(docs))
	seen := make(map[string]bool)
	for _, d := range docs {
		if id := d.Fields["court_id"]; id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return
	}

	names, err := s.courts.Names(ctx, ids)
	if err != nil {
		logger.FromContext(ctx).Warn("court name lookup failed", zap.Error(err))
		return
	}
	for _, d := range docs {
		if name := names[d.Fields["court_id"]]; name != "" {
			d.Fields["court"] = name
		}
	}
}
