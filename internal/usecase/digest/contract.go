package digest

import (
	"context"
	"time"

	domalert "github.com/caselens/lexalert/internal/domain/alert"
	"github.com/caselens/lexalert/internal/domain/hit"
	domuser "github.com/caselens/lexalert/internal/domain/user"
	"github.com/caselens/lexalert/internal/repository/schedule"
)

// ScheduleRepo reads and retires scheduled hits.
type ScheduleRepo interface {
	ListScheduled(ctx context.Context, rate domalert.Rate, limit int) ([]schedule.Record, error)
	MarkSent(ctx context.Context, ids []string, at time.Time) error
	DeleteSentBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// AlertRepo resolves the alerts behind scheduled hits and stamps their
// last delivery.
type AlertRepo interface {
	Get(ctx context.Context, id string) (domalert.Alert, error)
	TouchLastHit(ctx context.Context, id string, at time.Time) error
}

// UserReader resolves digest recipients.
type UserReader interface {
	Get(ctx context.Context, id string) (domuser.User, error)
}

// Mailer delivers digest emails.
type Mailer interface {
	SendDigest(ctx context.Context, to string, rate domalert.Rate, hits []hit.Hit) error
}
