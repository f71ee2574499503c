// Package ingest is the write path for documents. Every indexed document
// is immediately percolated against the stored alert queries, and any
// matches go straight to dispatch.
package ingest

import (
	"context"
	"fmt"

	domdoc "github.com/caselens/lexalert/internal/domain/document"
	"github.com/caselens/lexalert/internal/domain/search/searchtype"
	"github.com/caselens/lexalert/internal/usecase/dispatch"
)

// Result reports what indexing one document triggered.
type Result struct {
	Matches  int
	Dispatch dispatch.Summary
}

// Service indexes documents and fans out alerts.
type Service struct {
	docs       DocumentWriter
	percolator Percolator
	dispatcher Dispatcher
}

// New creates an ingest service.
func New(docs DocumentWriter, p Percolator, d Dispatcher) *Service {
	return &Service{docs: docs, percolator: p, dispatcher: d}
}

// Index stores a document and triggers alerting for it. Percolation is
// best-effort: a stored document whose alert sweep failed still counts
// as indexed.
func (s *Service) Index(ctx context.Context, t searchtype.Type, id string, fields map[string]string) (Result, error) {
	doc, err := domdoc.New(id, t, fields)
	if err != nil {
		return Result{}, err
	}
	if err := s.docs.Upsert(ctx, doc); err != nil {
		return Result{}, fmt.Errorf("index document %s: %w", id, err)
	}

	matches := s.percolator.Percolate(ctx, t, id)
	res := Result{Matches: len(matches)}
	if len(matches) > 0 {
		res.Dispatch = s.dispatcher.Dispatch(ctx, matches)
	}
	return res, nil
}

// Remove deletes a document from its index.
func (s *Service) Remove(ctx context.Context, t searchtype.Type, id string) error {
	return s.docs.Delete(ctx, t, id)
}
