package alertcheck

import (
	"context"

	domalert "github.com/caselens/lexalert/internal/domain/alert"
	"github.com/caselens/lexalert/internal/domain/search/searchtype"
)

// AlertPager walks the whole alert corpus and flags broken entries.
type AlertPager interface {
	ListPage(ctx context.Context, offset, limit int) ([]domalert.Alert, []string, error)
	SetValid(ctx context.Context, id string, valid bool) error
}

// DocumentCounter counts index matches for a rendered query. The sweep runs
// each stored query with a zero-size result window so the engine itself
// vets grammar the local validator cannot see.
type DocumentCounter interface {
	Count(ctx context.Context, t searchtype.Type, rendered string) (int, error)
}

// Registry mirrors alert state into the percolator.
type Registry interface {
	Sync(ctx context.Context, a domalert.Alert)
	Remove(ctx context.Context, id string)
}
