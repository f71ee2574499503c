package dispatch

import (
	"context"
	"time"

	domalert "github.com/caselens/lexalert/internal/domain/alert"
	"github.com/caselens/lexalert/internal/domain/hit"
	domuser "github.com/caselens/lexalert/internal/domain/user"
	domwebhook "github.com/caselens/lexalert/internal/domain/webhook"
)

// UserReader resolves alert recipients.
type UserReader interface {
	Get(ctx context.Context, id string) (domuser.User, error)
}

// WebhookLister returns a user's enabled subscriptions for an event.
type WebhookLister interface {
	ListEnabled(ctx context.Context, userID string, event domwebhook.EventType) ([]domwebhook.Webhook, error)
}

// ScheduleRepo parks hits for digest delivery.
type ScheduleRepo interface {
	GetOrCreateUserRate(ctx context.Context, userID string, rate domalert.Rate) (hit.UserRateAlert, error)
	GetOrCreateParent(ctx context.Context, userRateID, alertID string) (hit.ParentAlert, error)
	CreateHit(ctx context.Context, h hit.ScheduledHit, alertID, userID string, rate domalert.Rate) error
}

// Mailer delivers alert emails.
type Mailer interface {
	SendAlert(ctx context.Context, to string, hits []hit.Hit) error
}

// WebhookSender posts alert events to a subscription endpoint.
type WebhookSender interface {
	Send(ctx context.Context, w domwebhook.Webhook, hits []hit.Hit) error
}

// AlertToucher stamps an alert's last-hit time.
type AlertToucher interface {
	TouchLastHit(ctx context.Context, id string, at time.Time) error
}
