// Package dispatch routes percolator matches to their outlets: real-time
// matches fan out to email and webhooks immediately, scheduled rates are
// parked as hits for the next digest run.
package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domalert "github.com/caselens/lexalert/internal/domain/alert"
	"github.com/caselens/lexalert/internal/domain/hit"
	domwebhook "github.com/caselens/lexalert/internal/domain/webhook"
	"github.com/caselens/lexalert/internal/logger"
	"github.com/caselens/lexalert/internal/metrics"
	"github.com/caselens/lexalert/internal/usecase/percolator"
)

// Summary reports what one dispatch accomplished.
type Summary struct {
	EmailsSent    int
	WebhooksSent  int
	HitsScheduled int
	Skipped       int
}

// Service routes matches. Delivery failures are logged and counted, never
// propagated: each outlet is independent and one failure must not starve
// the rest.
type Service struct {
	users    UserReader
	webhooks WebhookLister
	schedule ScheduleRepo
	mailer   Mailer
	sender   WebhookSender
	alerts   AlertToucher
	now      func() time.Time
}

// New creates a dispatch service.
func New(users UserReader, webhooks WebhookLister, schedule ScheduleRepo, mailer Mailer, sender WebhookSender, alerts AlertToucher) *Service {
	return &Service{
		users:    users,
		webhooks: webhooks,
		schedule: schedule,
		mailer:   mailer,
		sender:   sender,
		alerts:   alerts,
		now:      time.Now,
	}
}

// Dispatch fans matches out by rate. Real-time matches for one user are
// batched into a single email, and each of the user's enabled webhooks gets
// exactly one event carrying all of that user's hits. Only real-time
// matches stamp the alert's last hit here; scheduled alerts are stamped
// when their digest actually goes out.
func (s *Service) Dispatch(ctx context.Context, matches []percolator.Match) Summary {
	var sum Summary
	if len(matches) == 0 {
		return sum
	}
	log := logger.FromContext(ctx)
	now := s.now().UTC()

	realTime := make(map[string][]hit.Hit)
	touched := make(map[string]bool)

	for _, m := range matches {
		switch {
		case m.Rate == domalert.RateRealTime:
			if !touched[m.AlertID] {
				touched[m.AlertID] = true
				if err := s.alerts.TouchLastHit(ctx, m.AlertID, now); err != nil {
					log.Warn("touch last hit failed", zap.String("alert_id", m.AlertID), zap.Error(err))
				}
			}
			realTime[m.UserID] = append(realTime[m.UserID], matchToHit(m))
		case m.Rate.IsScheduled():
			if s.scheduleHit(ctx, m, now) {
				sum.HitsScheduled++
			} else {
				sum.Skipped++
			}
		default:
			sum.Skipped++
		}
	}

	for userID, hits := range realTime {
		s.dispatchRealTime(ctx, userID, hits, &sum)
	}
	return sum
}

func (s *Service) dispatchRealTime(ctx context.Context, userID string, hits []hit.Hit, sum *Summary) {
	log := logger.FromContext(ctx)

	u, err := s.users.Get(ctx, userID)
	if err != nil {
		log.Warn("resolve recipient failed", zap.String("user_id", userID), zap.Error(err))
		sum.Skipped += len(hits)
		return
	}
	if !u.RealTimeEnabled() {
		log.Info("real-time alerts disabled for user", zap.String("user_id", userID))
		sum.Skipped += len(hits)
		return
	}

	if err := s.mailer.SendAlert(ctx, u.Email(), hits); err != nil {
		log.Error("alert email failed", zap.String("user_id", userID), zap.Error(err))
		metrics.AlertEmailsTotal.WithLabelValues(string(domalert.RateRealTime), "error").Inc()
	} else {
		metrics.AlertEmailsTotal.WithLabelValues(string(domalert.RateRealTime), "ok").Inc()
		sum.EmailsSent++
	}

	hooks, err := s.webhooks.ListEnabled(ctx, userID, domwebhook.EventSearchAlert)
	if err != nil {
		log.Warn("list webhooks failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	for _, w := range hooks {
		if err := s.sender.Send(ctx, w, hits); err != nil {
			log.Error("webhook delivery failed",
				zap.String("webhook_id", w.ID()), zap.Error(err))
			metrics.WebhookDeliveriesTotal.WithLabelValues("error").Inc()
			continue
		}
		metrics.WebhookDeliveriesTotal.WithLabelValues("ok").Inc()
		sum.WebhooksSent++
	}
}

// scheduleHit parks one match under its (user, rate) container. The two
// get-or-create steps are atomic in the store, so concurrent dispatches of
// different documents share containers instead of duplicating them.
func (s *Service) scheduleHit(ctx context.Context, m percolator.Match, now time.Time) bool {
	log := logger.FromContext(ctx)

	ura, err := s.schedule.GetOrCreateUserRate(ctx, m.UserID, m.Rate)
	if err != nil {
		log.Error("user rate container failed", zap.String("user_id", m.UserID), zap.Error(err))
		return false
	}
	parent, err := s.schedule.GetOrCreateParent(ctx, ura.ID, m.AlertID)
	if err != nil {
		log.Error("parent alert container failed", zap.String("alert_id", m.AlertID), zap.Error(err))
		return false
	}

	h := hit.ScheduledHit{
		ID:         uuid.NewString(),
		ParentID:   parent.ID,
		DocumentID: m.Document.ID,
		SearchType: m.Type,
		Document:   m.Document,
		Status:     hit.StatusScheduled,
		CreatedAt:  now,
	}
	if err := s.schedule.CreateHit(ctx, h, m.AlertID, m.UserID, m.Rate); err != nil {
		log.Error("store scheduled hit failed", zap.String("alert_id", m.AlertID), zap.Error(err))
		return false
	}
	metrics.ScheduledHitsTotal.WithLabelValues(string(m.Rate)).Inc()
	return true
}

func matchToHit(m percolator.Match) hit.Hit {
	return hit.Hit{
		AlertID:    m.AlertID,
		UserID:     m.UserID,
		AlertName:  m.AlertName,
		SearchType: m.Type,
		Documents:  []hit.Document{m.Document},
	}
}
