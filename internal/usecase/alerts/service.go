// Package alerts manages the saved-search alert lifecycle and keeps the
// stored-query registry in step with every change.
package alerts

import (
	"context"
	"fmt"

	"github.com/caselens/lexalert/internal/domain"
	domalert "github.com/caselens/lexalert/internal/domain/alert"
)

// Service handles alert CRUD.
type Service struct {
	repo     Repository
	registry Registry
}

// New creates an alert service.
func New(repo Repository, registry Registry) *Service {
	return &Service{repo: repo, registry: registry}
}

// Create validates and stores a new alert, then registers its query.
func (s *Service) Create(ctx context.Context, userID, name, rawQuery string, rate domalert.Rate) (domalert.Alert, error) {
	a, err := domalert.New(userID, name, rawQuery, rate)
	if err != nil {
		return domalert.Alert{}, err
	}
	if err := s.repo.Save(ctx, a); err != nil {
		return domalert.Alert{}, fmt.Errorf("save alert: %w", err)
	}
	s.registry.Sync(ctx, a)
	return a, nil
}

// Update applies user-editable fields to an owned alert.
func (s *Service) Update(ctx context.Context, userID, id, name, rawQuery string, rate domalert.Rate) (domalert.Alert, error) {
	a, err := s.owned(ctx, userID, id)
	if err != nil {
		return domalert.Alert{}, err
	}
	updated, err := a.Update(name, rawQuery, rate)
	if err != nil {
		return domalert.Alert{}, err
	}
	if err := s.repo.Save(ctx, updated); err != nil {
		return domalert.Alert{}, fmt.Errorf("save alert: %w", err)
	}
	s.registry.Sync(ctx, updated)
	return updated, nil
}

// Delete removes an owned alert and its stored query.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.registry.Remove(ctx, id)
	return nil
}

// Get returns an owned alert.
func (s *Service) Get(ctx context.Context, userID, id string) (domalert.Alert, error) {
	return s.owned(ctx, userID, id)
}

// List returns all of a user's alerts.
func (s *Service) List(ctx context.Context, userID string) ([]domalert.Alert, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Disable turns an alert off via its secret key, without authentication.
// Backs the one-click unsubscribe link in alert emails.
func (s *Service) Disable(ctx context.Context, id, secretKey string) error {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if secretKey == "" || a.SecretKey() != secretKey {
		return domain.ErrAlertNotFound
	}
	updated, err := a.Update(a.Name(), a.Query(), domalert.RateOff)
	if err != nil {
		return err
	}
	if err := s.repo.Save(ctx, updated); err != nil {
		return fmt.Errorf("save alert: %w", err)
	}
	s.registry.Sync(ctx, updated)
	return nil
}

// owned fetches an alert and hides it from non-owners.
func (s *Service) owned(ctx context.Context, userID, id string) (domalert.Alert, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return domalert.Alert{}, err
	}
	if a.UserID() != userID {
		return domalert.Alert{}, domain.ErrAlertNotFound
	}
	return a, nil
}
