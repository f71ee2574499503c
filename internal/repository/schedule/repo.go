// Package schedule persists scheduled alert hits and the two containers
// that deduplicate them: one UserRateAlert per user and cadence, one
// ParentAlert per alert inside it. Get-or-create runs on SET NX GET, so
// concurrent percolations converge on the same containers.
package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/caselens/lexalert/internal/db"
	"github.com/caselens/lexalert/internal/db/ftquery"
	"github.com/caselens/lexalert/internal/domain"
	domalert "github.com/caselens/lexalert/internal/domain/alert"
	"github.com/caselens/lexalert/internal/domain/hit"
	"github.com/caselens/lexalert/internal/domain/search/searchtype"
)

// Record is a scheduled hit with the denormalized routing fields a digest
// run needs.
type Record struct {
	Hit     hit.ScheduledHit
	AlertID string
	UserID  string
	Rate    domalert.Rate
}

// store is the consumer interface for schedule persistence.
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Del(ctx context.Context, key string) error
	SetNXGet(ctx context.Context, key, value string) (string, bool, error)
	Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error)
}

// Repo implements the schedule repository of the usecase layer.
type Repo struct {
	store store
	now   func() time.Time
}

// New creates a schedule repository.
func New(s store) *Repo {
	return &Repo{store: s, now: time.Now}
}

// GetOrCreateUserRate returns the container for (user, rate), creating it
// atomically when absent. All concurrent callers observe the same id.
func (r *Repo) GetOrCreateUserRate(ctx context.Context, userID string, rate domalert.Rate) (hit.UserRateAlert, error) {
	claim := fmt.Sprintf("%sura:claim:%s:%s", domain.KeyPrefix, userID, rate)
	id, created, err := r.store.SetNXGet(ctx, claim, uuid.NewString())
	if err != nil {
		return hit.UserRateAlert{}, fmt.Errorf("claim user rate %s/%s: %w", userID, rate, err)
	}

	ura := hit.UserRateAlert{ID: id, UserID: userID, Rate: string(rate), CreatedAt: r.now().UTC()}
	if created {
		fields := map[string]string{
			"user_id":      userID,
			"rate":         string(rate),
			"date_created": strconv.FormatInt(ura.CreatedAt.Unix(), 10),
		}
		if err := r.store.HSet(ctx, uraKey(id), fields); err != nil {
			return hit.UserRateAlert{}, fmt.Errorf("store user rate %s: %w", id, err)
		}
	}
	return ura, nil
}

// GetOrCreateParent returns the per-alert container inside a user rate,
// creating it atomically when absent.
func (r *Repo) GetOrCreateParent(ctx context.Context, userRateID, alertID string) (hit.ParentAlert, error) {
	claim := fmt.Sprintf("%sparent:claim:%s:%s", domain.KeyPrefix, userRateID, alertID)
	id, created, err := r.store.SetNXGet(ctx, claim, uuid.NewString())
	if err != nil {
		return hit.ParentAlert{}, fmt.Errorf("claim parent alert %s/%s: %w", userRateID, alertID, err)
	}

	pa := hit.ParentAlert{ID: id, AlertID: alertID, UserRateID: userRateID, CreatedAt: r.now().UTC()}
	if created {
		fields := map[string]string{
			"alert_id":     alertID,
			"user_rate_id": userRateID,
			"date_created": strconv.FormatInt(pa.CreatedAt.Unix(), 10),
		}
		if err := r.store.HSet(ctx, parentKey(id), fields); err != nil {
			return hit.ParentAlert{}, fmt.Errorf("store parent alert %s: %w", id, err)
		}
	}
	return pa, nil
}

// CreateHit parks one matched document for a future digest.
func (r *Repo) CreateHit(ctx context.Context, h hit.ScheduledHit, alertID, userID string, rate domalert.Rate) error {
	doc, err := json.Marshal(h.Document)
	if err != nil {
		return fmt.Errorf("marshal hit document: %w", err)
	}

	fields := map[string]string{
		"parent_id":    h.ParentID,
		"alert_id":     alertID,
		"user_id":      userID,
		"rate":         string(rate),
		"doc_id":       h.DocumentID,
		"type":         string(h.SearchType),
		"status":       string(h.Status),
		"date_created": strconv.FormatInt(h.CreatedAt.Unix(), 10),
		"document":     string(doc),
	}
	if err := r.store.HSet(ctx, hitKey(h.ID), fields); err != nil {
		return fmt.Errorf("store scheduled hit %s: %w", h.ID, err)
	}
	return nil
}

// ListScheduled returns every unsent hit at a cadence, oldest first.
func (r *Repo) ListScheduled(ctx context.Context, rate domalert.Rate, limit int) ([]Record, error) {
	q := &db.SearchQuery{
		Index: indexName,
		Query: fmt.Sprintf("@rate:{%s} @status:{%s}",
			ftquery.EscapeTag(string(rate)), string(hit.StatusScheduled)),
		Limit:  limit,
		SortBy: "date_created",
	}
	res, err := r.store.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list scheduled hits for rate %s: %w", rate, err)
	}

	records := make([]Record, 0, len(res.Entries))
	for _, entry := range res.Entries {
		records = append(records, parseRecord(entry))
	}
	return records, nil
}

// MarkSent stamps hits as delivered.
func (r *Repo) MarkSent(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, len(ids))
	for i, id := range ids {
		items[i] = db.HashSetItem{
			Key: hitKey(id),
			Fields: map[string]string{
				"status":    string(hit.StatusSent),
				"date_sent": strconv.FormatInt(at.UTC().Unix(), 10),
			},
		}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("mark hits sent: %w", err)
	}
	return nil
}

// DeleteSentBefore removes delivered hits older than the cutoff and returns
// how many were dropped.
func (r *Repo) DeleteSentBefore(ctx context.Context, cutoff time.Time) (int, error) {
	deleted := 0
	for {
		q := &db.SearchQuery{
			Index: indexName,
			Query: fmt.Sprintf("@status:{%s} @date_sent:[-inf %d]",
				string(hit.StatusSent), cutoff.UTC().Unix()),
			Limit:        retentionPage,
			ReturnFields: []string{"doc_id"},
		}
		res, err := r.store.Search(ctx, q)
		if err != nil {
			return deleted, fmt.Errorf("find stale hits: %w", err)
		}
		if len(res.Entries) == 0 {
			return deleted, nil
		}
		for _, entry := range res.Entries {
			if err := r.store.Del(ctx, entry.Key); err != nil {
				return deleted, fmt.Errorf("delete stale hit %s: %w", entry.Key, err)
			}
			deleted++
		}
		if len(res.Entries) < retentionPage {
			return deleted, nil
		}
	}
}

const retentionPage = 500

func parseRecord(entry db.SearchEntry) Record {
	h := hit.ScheduledHit{
		ID:         hitID(entry.Key),
		ParentID:   entry.Fields["parent_id"],
		DocumentID: entry.Fields["doc_id"],
		SearchType: searchtype.Type(entry.Fields["type"]),
		Status:     hit.Status(entry.Fields["status"]),
		CreatedAt:  epochField(entry.Fields["date_created"]),
		SentAt:     epochField(entry.Fields["date_sent"]),
	}
	if raw := entry.Fields["document"]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &h.Document)
	}
	return Record{
		Hit:     h,
		AlertID: entry.Fields["alert_id"],
		UserID:  entry.Fields["user_id"],
		Rate:    domalert.Rate(entry.Fields["rate"]),
	}
}

func epochField(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

const (
	hitPrefix = domain.KeyPrefix + "hit:"
	indexName = domain.KeyPrefix + "hits:idx"
)

func uraKey(id string) string    { return domain.KeyPrefix + "ura:" + id }
func parentKey(id string) string { return domain.KeyPrefix + "parent:" + id }
func hitKey(id string) string    { return hitPrefix + id }

func hitID(key string) string {
	return strings.TrimPrefix(key, hitPrefix)
}

// Index returns the FT index definition for scheduled hits.
func Index() *db.IndexDefinition {
	return &db.IndexDefinition{
		Name:     indexName,
		Prefixes: []string{hitPrefix},
		Fields: []db.IndexField{
			{Name: "rate", Type: db.IndexFieldTag},
			{Name: "status", Type: db.IndexFieldTag},
			{Name: "parent_id", Type: db.IndexFieldTag},
			{Name: "alert_id", Type: db.IndexFieldTag},
			{Name: "user_id", Type: db.IndexFieldTag},
			{Name: "type", Type: db.IndexFieldTag},
			{Name: "date_created", Type: db.IndexFieldNumeric, Sortable: true},
			{Name: "date_sent", Type: db.IndexFieldNumeric},
		},
	}
}
