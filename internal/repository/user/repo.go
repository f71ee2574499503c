// Package user persists the minimal account records alert delivery reads.
package user

import (
	"context"
	"fmt"

	"github.com/caselens/lexalert/internal/domain"
	domuser "github.com/caselens/lexalert/internal/domain/user"
)

// store is the consumer interface for user persistence.
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// Repo implements the user repository of the usecase layer.
type Repo struct {
	store store
}

// New creates a user repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Save writes a user record.
func (r *Repo) Save(ctx context.Context, u domuser.User) error {
	fields := map[string]string{
		"email": u.Email(),
		"rt":    boolField(u.RealTimeEnabled()),
	}
	if err := r.store.HSet(ctx, userKey(u.ID()), fields); err != nil {
		return fmt.Errorf("save user %s: %w", u.ID(), err)
	}
	return nil
}

// Get returns a user by id.
func (r *Repo) Get(ctx context.Context, id string) (domuser.User, error) {
	m, err := r.store.HGetAll(ctx, userKey(id))
	if err != nil {
		return domuser.User{}, fmt.Errorf("get user %s: %w", id, err)
	}
	if len(m) == 0 {
		return domuser.User{}, domain.ErrUserNotFound
	}
	u, err := domuser.New(id, m["email"], m["rt"] == "1")
	if err != nil {
		return domuser.User{}, fmt.Errorf("stored user %s: %w", id, err)
	}
	return u, nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func userKey(id string) string {
	return domain.KeyPrefix + "user:" + id
}
