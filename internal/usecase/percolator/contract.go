package percolator

import (
	"context"

	"github.com/caselens/lexalert/internal/db"
	domalert "github.com/caselens/lexalert/internal/domain/alert"
	"github.com/caselens/lexalert/internal/domain/hit"
	"github.com/caselens/lexalert/internal/domain/search/searchtype"
	repopercolator "github.com/caselens/lexalert/internal/repository/percolator"
)

// RegistryRepo persists stored queries.
type RegistryRepo interface {
	Upsert(ctx context.Context, a domalert.Alert) error
	Delete(ctx context.Context, alertID string) error
}

// EntryPager pages through stored queries for one search type.
type EntryPager interface {
	Page(ctx context.Context, t searchtype.Type, offset, limit int) ([]repopercolator.Entry, int, error)
}

// DocumentMatcher probes one document against a rendered query.
type DocumentMatcher interface {
	Match(ctx context.Context, t searchtype.Type, id, rendered string, hl *db.HighlightSpec) (*hit.Document, error)
}
