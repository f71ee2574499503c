// Package webhook persists webhook subscriptions behind an FT index for
// per-user lookup at dispatch time.
package webhook

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caselens/lexalert/internal/db"
	"github.com/caselens/lexalert/internal/db/ftquery"
	"github.com/caselens/lexalert/internal/domain"
	domwebhook "github.com/caselens/lexalert/internal/domain/webhook"
)

// store is the consumer interface for webhook persistence.
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error)
}

// Repo implements the webhook repository of the usecase layer.
type Repo struct {
	store store
}

// New creates a webhook repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Save writes a subscription.
func (r *Repo) Save(ctx context.Context, w domwebhook.Webhook) error {
	fields := map[string]string{
		"user_id":      w.UserID(),
		"endpoint":     w.Endpoint(),
		"event":        string(w.Event()),
		"enabled":      boolField(w.Enabled()),
		"date_created": strconv.FormatInt(w.CreatedAt().Unix(), 10),
	}
	if err := r.store.HSet(ctx, webhookKey(w.ID()), fields); err != nil {
		return fmt.Errorf("save webhook %s: %w", w.ID(), err)
	}
	return nil
}

// Get returns a subscription by id.
func (r *Repo) Get(ctx context.Context, id string) (domwebhook.Webhook, error) {
	m, err := r.store.HGetAll(ctx, webhookKey(id))
	if err != nil {
		return domwebhook.Webhook{}, fmt.Errorf("get webhook %s: %w", id, err)
	}
	if len(m) == 0 {
		return domwebhook.Webhook{}, domain.ErrWebhookNotFound
	}
	return parseFields(id, m), nil
}

// Delete removes a subscription.
func (r *Repo) Delete(ctx context.Context, id string) error {
	m, err := r.store.HGetAll(ctx, webhookKey(id))
	if err != nil {
		return fmt.Errorf("get webhook %s: %w", id, err)
	}
	if len(m) == 0 {
		return domain.ErrWebhookNotFound
	}
	if err := r.store.Del(ctx, webhookKey(id)); err != nil {
		return fmt.Errorf("delete webhook %s: %w", id, err)
	}
	return nil
}

// ListByUser returns every subscription a user owns.
func (r *Repo) ListByUser(ctx context.Context, userID string) ([]domwebhook.Webhook, error) {
	q := &db.SearchQuery{
		Index: indexName,
		Query: fmt.Sprintf("@user_id:{%s}", ftquery.EscapeTag(userID)),
		Limit: maxPerUser,
	}
	res, err := r.store.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list webhooks for user %s: %w", userID, err)
	}

	hooks := make([]domwebhook.Webhook, 0, len(res.Entries))
	for _, entry := range res.Entries {
		hooks = append(hooks, parseFields(webhookID(entry.Key), entry.Fields))
	}
	return hooks, nil
}

// ListEnabled returns a user's enabled subscriptions for an event type.
func (r *Repo) ListEnabled(ctx context.Context, userID string, event domwebhook.EventType) ([]domwebhook.Webhook, error) {
	q := &db.SearchQuery{
		Index: indexName,
		Query: fmt.Sprintf("@user_id:{%s} @event:{%s} @enabled:{1}",
			ftquery.EscapeTag(userID), ftquery.EscapeTag(string(event))),
		Limit: maxPerUser,
	}
	res, err := r.store.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list webhooks for user %s: %w", userID, err)
	}

	hooks := make([]domwebhook.Webhook, 0, len(res.Entries))
	for _, entry := range res.Entries {
		hooks = append(hooks, parseFields(webhookID(entry.Key), entry.Fields))
	}
	return hooks, nil
}

const maxPerUser = 100

func parseFields(id string, m map[string]string) domwebhook.Webhook {
	var created time.Time
	if sec, err := strconv.ParseInt(m["date_created"], 10, 64); err == nil {
		created = time.Unix(sec, 0).UTC()
	}
	return domwebhook.Reconstruct(
		id,
		m["user_id"],
		m["endpoint"],
		domwebhook.EventType(m["event"]),
		m["enabled"] == "1",
		created,
	)
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

const (
	keyPrefix = domain.KeyPrefix + "webhook:"
	indexName = domain.KeyPrefix + "webhooks:idx"
)

func webhookKey(id string) string {
	return keyPrefix + id
}

func webhookID(key string) string {
	return strings.TrimPrefix(key, keyPrefix)
}

// Index returns the FT index definition for webhook subscriptions.
func Index() *db.IndexDefinition {
	return &db.IndexDefinition{
		Name:     indexName,
		Prefixes: []string{keyPrefix},
		Fields: []db.IndexField{
			{Name: "user_id", Type: db.IndexFieldTag},
			{Name: "event", Type: db.IndexFieldTag},
			{Name: "enabled", Type: db.IndexFieldTag},
		},
	}
}
