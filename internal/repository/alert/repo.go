// Package alert persists saved-search alerts as Redis hashes behind an FT
// index for per-user listing.
package alert

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caselens/lexalert/internal/db"
	"github.com/caselens/lexalert/internal/db/ftquery"
	"github.com/caselens/lexalert/internal/domain"
	domalert "github.com/caselens/lexalert/internal/domain/alert"
)

// store is the consumer interface for alert persistence.
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Repo implements the alert repositories of the usecase layer.
type Repo struct {
	store store
}

// New creates an alert repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Save writes the full alert record.
func (r *Repo) Save(ctx context.Context, a domalert.Alert) error {
	if err := r.store.HSet(ctx, alertKey(a.ID()), buildHashFields(a)); err != nil {
		return fmt.Errorf("save alert %s: %w", a.ID(), err)
	}
	return nil
}

// Get returns an alert by id.
func (r *Repo) Get(ctx context.Context, id string) (domalert.Alert, error) {
	m, err := r.store.HGetAll(ctx, alertKey(id))
	if err != nil {
		return domalert.Alert{}, fmt.Errorf("get alert %s: %w", id, err)
	}
	if len(m) == 0 {
		return domalert.Alert{}, domain.ErrAlertNotFound
	}
	return parseHashFields(id, m)
}

// Delete removes an alert.
func (r *Repo) Delete(ctx context.Context, id string) error {
	m, err := r.store.HGetAll(ctx, alertKey(id))
	if err != nil {
		return fmt.Errorf("get alert %s: %w", id, err)
	}
	if len(m) == 0 {
		return domain.ErrAlertNotFound
	}
	if err := r.store.Del(ctx, alertKey(id)); err != nil {
		return fmt.Errorf("delete alert %s: %w", id, err)
	}
	return nil
}

// ListByUser returns all of a user's alerts.
func (r *Repo) ListByUser(ctx context.Context, userID string) ([]domalert.Alert, error) {
	q := &db.SearchQuery{
		Index:  indexName,
		Query:  fmt.Sprintf("@user_id:{%s}", ftquery.EscapeTag(userID)),
		Limit:  maxPerUser,
		SortBy: "date_created",
	}
	res, err := r.store.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list alerts for user %s: %w", userID, err)
	}

	alerts := make([]domalert.Alert, 0, len(res.Entries))
	for _, entry := range res.Entries {
		a, err := parseHashFields(alertID(entry.Key), entry.Fields)
		if err != nil {
			continue
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

// ListPage pages through every stored alert. Records whose criteria no
// longer parse are returned separately by id so callers can flag them.
func (r *Repo) ListPage(ctx context.Context, offset, limit int) ([]domalert.Alert, []string, error) {
	q := &db.SearchQuery{
		Index:  indexName,
		Query:  "*",
		Offset: offset,
		Limit:  limit,
		SortBy: "date_created",
	}
	res, err := r.store.Search(ctx, q)
	if err != nil {
		return nil, nil, fmt.Errorf("list alerts page: %w", err)
	}

	alerts := make([]domalert.Alert, 0, len(res.Entries))
	var broken []string
	for _, entry := range res.Entries {
		id := alertID(entry.Key)
		a, err := parseHashFields(id, entry.Fields)
		if err != nil {
			broken = append(broken, id)
			continue
		}
		alerts = append(alerts, a)
	}
	return alerts, broken, nil
}

// Count returns the number of stored alerts.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, indexName, "*")
	if err != nil {
		return 0, fmt.Errorf("count alerts: %w", err)
	}
	return n, nil
}

// SetValid flips the validity flag without touching other fields.
func (r *Repo) SetValid(ctx context.Context, id string, valid bool) error {
	if err := r.store.HSet(ctx, alertKey(id), map[string]string{"valid": boolField(valid)}); err != nil {
		return fmt.Errorf("set valid on alert %s: %w", id, err)
	}
	return nil
}

// TouchLastHit stamps the moment the alert last matched a document.
func (r *Repo) TouchLastHit(ctx context.Context, id string, at time.Time) error {
	fields := map[string]string{"date_last_hit": strconv.FormatInt(at.UTC().Unix(), 10)}
	if err := r.store.HSet(ctx, alertKey(id), fields); err != nil {
		return fmt.Errorf("touch alert %s: %w", id, err)
	}
	return nil
}

// maxPerUser bounds the per-user listing page.
const maxPerUser = 1000

const (
	keyPrefix = domain.KeyPrefix + "alert:"
	indexName = domain.KeyPrefix + "alerts:idx"
)

func alertKey(id string) string {
	return keyPrefix + id
}

func alertID(key string) string {
	return strings.TrimPrefix(key, keyPrefix)
}

// Index returns the FT index definition for alert records.
func Index() *db.IndexDefinition {
	return &db.IndexDefinition{
		Name:     indexName,
		Prefixes: []string{keyPrefix},
		Fields: []db.IndexField{
			{Name: "user_id", Type: db.IndexFieldTag},
			{Name: "rate", Type: db.IndexFieldTag},
			{Name: "type", Type: db.IndexFieldTag},
			{Name: "valid", Type: db.IndexFieldTag},
			{Name: "date_created", Type: db.IndexFieldNumeric, Sortable: true},
		},
	}
}
