// Package webhooks manages a user's webhook subscriptions. Ownership is
// enforced on every read and write: another user's subscription behaves
// as if it does not exist.
package webhooks

import (
	"context"

	"github.com/caselens/lexalert/internal/domain"
	domwebhook "github.com/caselens/lexalert/internal/domain/webhook"
)

// Service manages webhook subscriptions.
type Service struct {
	repo Repository
}

// New creates a webhooks service.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a new subscription for a user.
func (s *Service) Create(ctx context.Context, userID, endpoint string, event domwebhook.EventType, enabled bool) (domwebhook.Webhook, error) {
	w, err := domwebhook.New(userID, endpoint, event, enabled)
	if err != nil {
		return domwebhook.Webhook{}, err
	}
	if err := s.repo.Save(ctx, w); err != nil {
		return domwebhook.Webhook{}, err
	}
	return w, nil
}

// Get returns one of the user's subscriptions.
func (s *Service) Get(ctx context.Context, userID, id string) (domwebhook.Webhook, error) {
	return s.owned(ctx, userID, id)
}

// List returns every subscription a user owns.
func (s *Service) List(ctx context.Context, userID string) ([]domwebhook.Webhook, error) {
	return s.repo.ListByUser(ctx, userID)
}

// SetEnabled toggles delivery for one subscription.
func (s *Service) SetEnabled(ctx context.Context, userID, id string, enabled bool) (domwebhook.Webhook, error) {
	w, err := s.owned(ctx, userID, id)
	if err != nil {
		return domwebhook.Webhook{}, err
	}
	updated := domwebhook.Reconstruct(w.ID(), w.UserID(), w.Endpoint(), w.Event(), enabled, w.CreatedAt())
	if err := s.repo.Save(ctx, updated); err != nil {
		return domwebhook.Webhook{}, err
	}
	return updated, nil
}

// Delete removes one of the user's subscriptions.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) owned(ctx context.Context, userID, id string) (domwebhook.Webhook, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return domwebhook.Webhook{}, err
	}
	if w.UserID() != userID {
		return domwebhook.Webhook{}, domain.ErrWebhookNotFound
	}
	return w, nil
}
