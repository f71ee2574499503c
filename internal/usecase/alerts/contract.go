package alerts

import (
	"context"

	domalert "github.com/caselens/lexalert/internal/domain/alert"
)

// Repository persists alert records.
type Repository interface {
	Save(ctx context.Context, a domalert.Alert) error
	Get(ctx context.Context, id string) (domalert.Alert, error)
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]domalert.Alert, error)
}

// Registry mirrors alert changes into the stored-query registry. Both
// operations are best-effort and never fail the triggering write.
type Registry interface {
	Sync(ctx context.Context, a domalert.Alert)
	Remove(ctx context.Context, alertID string)
}
