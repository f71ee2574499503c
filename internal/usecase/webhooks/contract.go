package webhooks

import (
	"context"

	domwebhook "github.com/caselens/lexalert/internal/domain/webhook"
)

// Repository persists webhook subscriptions.
type Repository interface {
	Save(ctx context.Context, w domwebhook.Webhook) error
	Get(ctx context.Context, id string) (domwebhook.Webhook, error)
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]domwebhook.Webhook, error)
}
