// Package court keeps the court id to display name mapping used when
// rendering results and notifications.
package court

import (
	"context"
	"fmt"

	"github.com/caselens/lexalert/internal/db"
	"github.com/caselens/lexalert/internal/domain"
)

// store is the consumer interface for court persistence.
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
}

// Repo implements the court repository of the usecase layer.
type Repo struct {
	store store
}

// New creates a court repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// SaveAll writes court display names keyed by court id.
func (r *Repo) SaveAll(ctx context.Context, names map[string]string) error {
	if len(names) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, 0, len(names))
	for id, name := range names {
		items = append(items, db.HashSetItem{
			Key:    courtKey(id),
			Fields: map[string]string{"name": name},
		})
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("save courts: %w", err)
	}
	return nil
}

// Names resolves court ids to display names. Unknown ids are omitted.
func (r *Repo) Names(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = courtKey(id)
	}
	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("resolve court names: %w", err)
	}

	out := make(map[string]string, len(ids))
	for i, m := range maps {
		if name := m["name"]; name != "" {
			out[ids[i]] = name
		}
	}
	return out, nil
}

func courtKey(id string) string {
	return domain.KeyPrefix + "court:" + id
}
