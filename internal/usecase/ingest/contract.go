package ingest

import (
	"context"

	domdoc "github.com/caselens/lexalert/internal/domain/document"
	"github.com/caselens/lexalert/internal/domain/search/searchtype"
	"github.com/caselens/lexalert/internal/usecase/dispatch"
	"github.com/caselens/lexalert/internal/usecase/percolator"
)

// DocumentWriter persists incoming documents.
type DocumentWriter interface {
	Upsert(ctx context.Context, d domdoc.Document) error
	Delete(ctx context.Context, t searchtype.Type, id string) error
}

// Percolator finds the stored alerts an indexed document satisfies.
type Percolator interface {
	Percolate(ctx context.Context, t searchtype.Type, docID string) []percolator.Match
}

// Dispatcher routes percolator matches to their delivery channels.
type Dispatcher interface {
	Dispatch(ctx context.Context, matches []percolator.Match) dispatch.Summary
}
