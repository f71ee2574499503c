// Package percolator maintains the stored-query registry and matches fresh
// documents against it.
package percolator

import (
	"context"

	"go.uber.org/zap"

	domalert "github.com/caselens/lexalert/internal/domain/alert"
	"github.com/caselens/lexalert/internal/logger"
)

// Registry keeps stored queries in step with alert records. Its operations
// are best-effort: a registry failure must never fail the alert write that
// triggered it, so problems are logged and swallowed. A later consistency
// sweep repairs any drift.
type Registry struct {
	repo RegistryRepo
}

// NewRegistry creates a registry.
func NewRegistry(repo RegistryRepo) *Registry {
	return &Registry{repo: repo}
}

// Sync brings an alert's stored query in line with the alert: active alerts
// get an upserted entry, disabled or invalid ones get theirs removed.
func (r *Registry) Sync(ctx context.Context, a domalert.Alert) {
	log := logger.FromContext(ctx)

	if a.Rate() == domalert.RateOff || !a.Valid() {
		if err := r.repo.Delete(ctx, a.ID()); err != nil {
			log.Warn("percolator entry delete failed",
				zap.String("alert_id", a.ID()), zap.Error(err))
		}
		return
	}

	if err := r.repo.Upsert(ctx, a); err != nil {
		log.Warn("percolator entry upsert failed",
			zap.String("alert_id", a.ID()), zap.Error(err))
	}
}

// Remove drops an alert's stored query, best-effort.
func (r *Registry) Remove(ctx context.Context, alertID string) {
	if err := r.repo.Delete(ctx, alertID); err != nil {
		logger.FromContext(ctx).Warn("percolator entry delete failed",
			zap.String("alert_id", alertID), zap.Error(err))
	}
}
