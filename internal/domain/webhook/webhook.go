// Package webhook holds user webhook subscriptions for alert events.
package webhook

import (
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/caselens/lexalert/internal/domain"
)

// EventType names the payload family a subscription receives.
type EventType string

// EventSearchAlert delivers search alert hits.
const EventSearchAlert EventType = "search_alert"

// Webhook is one user endpoint subscribed to an event type.
type Webhook struct {
	id        string
	userID    string
	endpoint  string
	event     EventType
	enabled   bool
	createdAt time.Time
}

// New validates the endpoint URL and mints a subscription.
func New(userID, endpoint string, event EventType, enabled bool) (Webhook, error) {
	if userID == "" {
		return Webhook{}, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme != "https" && u.Scheme != "http" || u.Host == "" {
		return Webhook{}, fmt.Errorf("%w: %q is not a valid endpoint URL", domain.ErrValidation, endpoint)
	}
	if event != EventSearchAlert {
		return Webhook{}, fmt.Errorf("%w: %q is not a webhook event type", domain.ErrValidation, string(event))
	}
	return Webhook{
		id:        uuid.NewString(),
		userID:    userID,
		endpoint:  endpoint,
		event:     event,
		enabled:   enabled,
		createdAt: time.Now().UTC(),
	}, nil
}

// Reconstruct rebuilds a subscription from stored fields.
func Reconstruct(id, userID, endpoint string, event EventType, enabled bool, createdAt time.Time) Webhook {
	return Webhook{
		id:        id,
		userID:    userID,
		endpoint:  endpoint,
		event:     event,
		enabled:   enabled,
		createdAt: createdAt,
	}
}

func (w Webhook) ID() string           { return w.id }
func (w Webhook) UserID() string       { return w.userID }
func (w Webhook) Endpoint() string     { return w.endpoint }
func (w Webhook) Event() EventType     { return w.event }
func (w Webhook) Enabled() bool        { return w.enabled }
func (w Webhook) CreatedAt() time.Time { return w.createdAt }
