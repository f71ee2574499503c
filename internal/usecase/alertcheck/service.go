// Package alertcheck sweeps the alert corpus. Alerts whose stored query
// no longer parses, or is rejected outright by the search engine, are
// flagged invalid and pulled from the percolator, never deleted, so their
// owners can repair them. Healthy alerts are re-synced to heal any
// registry drift.
package alertcheck

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/caselens/lexalert/internal/db"
	"github.com/caselens/lexalert/internal/db/ftquery"
	domalert "github.com/caselens/lexalert/internal/domain/alert"
	"github.com/caselens/lexalert/internal/domain/search/query"
	"github.com/caselens/lexalert/internal/logger"
)

const pageSize = 200

// Report summarises one sweep.
type Report struct {
	Checked int
	Flagged int
	Synced  int
}

// Service runs corpus sweeps.
type Service struct {
	alerts   AlertPager
	registry Registry
	docs     DocumentCounter
}

// New creates a sweep service.
func New(alerts AlertPager, registry Registry, docs DocumentCounter) *Service {
	return &Service{alerts: alerts, registry: registry, docs: docs}
}

// Run walks every stored alert once.
func (s *Service) Run(ctx context.Context) (Report, error) {
	log := logger.FromContext(ctx)
	rep := Report{}

	for offset := 0; ; offset += pageSize {
		alerts, broken, err := s.alerts.ListPage(ctx, offset, pageSize)
		if err != nil {
			return rep, fmt.Errorf("page alerts at offset %d: %w", offset, err)
		}

		for _, id := range broken {
			rep.Checked++
			rep.Flagged++
			log.Warn("flagging unparseable alert", zap.String("alert_id", id))
			if err := s.alerts.SetValid(ctx, id, false); err != nil {
				return rep, fmt.Errorf("flag alert %s: %w", id, err)
			}
			s.registry.Remove(ctx, id)
		}

		for _, a := range alerts {
			rep.Checked++
			if err := s.engineCheck(ctx, a); err != nil {
				if !errors.Is(err, db.ErrBadQuery) {
					// The index may just be unreachable. Keep the alert
					// live rather than flag it on a transport fault.
					log.Warn("alert engine check inconclusive",
						zap.String("alert_id", a.ID()), zap.Error(err))
				} else {
					rep.Flagged++
					log.Warn("flagging engine-rejected alert", zap.String("alert_id", a.ID()))
					if err := s.alerts.SetValid(ctx, a.ID(), false); err != nil {
						return rep, fmt.Errorf("flag alert %s: %w", a.ID(), err)
					}
					s.registry.Remove(ctx, a.ID())
					continue
				}
			}
			s.registry.Sync(ctx, a)
			rep.Synced++
		}

		if len(alerts)+len(broken) < pageSize {
			return rep, nil
		}
	}
}

// engineCheck replays the stored query against the index with an empty
// result window. It returns db.ErrBadQuery when the engine refuses the
// query outright.
func (s *Service) engineCheck(ctx context.Context, a domalert.Alert) error {
	compiled, err := query.Compile(a.Criteria())
	if err != nil {
		return err
	}
	rendered, err := ftquery.Render(compiled)
	if err != nil {
		return err
	}
	_, err = s.docs.Count(ctx, a.Type(), rendered)
	return err
}
