package search

import (
	"context"

	"github.com/caselens/lexalert/internal/db"
	"github.com/caselens/lexalert/internal/domain/hit"
	"github.com/caselens/lexalert/internal/domain/search/searchtype"
)

// DocumentSearcher runs rendered queries against a type's index.
type DocumentSearcher interface {
	Search(ctx context.Context, t searchtype.Type, rendered string, offset, limit int, sortBy string, sortDesc bool, hl *db.HighlightSpec) ([]hit.Document, int, error)
}

// CourtNamer resolves court ids to display names.
type CourtNamer interface {
	Names(ctx context.Context, ids []string) (map[string]string, error)
}
