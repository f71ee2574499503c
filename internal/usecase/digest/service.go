// Package digest flushes scheduled alert hits at their cadence. A run
// picks one rate, bundles every pending hit into one email per user, and
// retires what was delivered.
package digest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/caselens/lexalert/internal/domain"
	domalert "github.com/caselens/lexalert/internal/domain/alert"
	"github.com/caselens/lexalert/internal/domain/hit"
	"github.com/caselens/lexalert/internal/domain/search/searchtype"
	"github.com/caselens/lexalert/internal/logger"
	"github.com/caselens/lexalert/internal/metrics"
	"github.com/caselens/lexalert/internal/repository/schedule"
)

// listLimit caps how many pending hits one run pulls.
const listLimit = 10000

// Summary reports what a digest run did.
type Summary struct {
	Users      int
	EmailsSent int
	HitsSent   int
	HitsOrphan int
}

// Service sends scheduled digests.
type Service struct {
	schedule ScheduleRepo
	alerts   AlertRepo
	users    UserReader
	mailer   Mailer

	childCap      int
	retentionDays int
	now           func() time.Time
}

// New creates a digest service. childCap limits nested child hits per
// result, retentionDays bounds how long sent hits are kept.
func New(s ScheduleRepo, a AlertRepo, u UserReader, m Mailer, childCap, retentionDays int) *Service {
	return &Service{
		schedule:      s,
		alerts:        a,
		users:         u,
		mailer:        m,
		childCap:      childCap,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// Run flushes every pending hit at the given rate. Monthly digests only
// go out on days that exist in every month.
func (s *Service) Run(ctx context.Context, rate domalert.Rate) (Summary, error) {
	if !rate.IsScheduled() {
		return Summary{}, fmt.Errorf("%w: rate %q has no digest", domain.ErrValidation, rate)
	}
	if rate == domalert.RateMonthly && s.now().UTC().Day() > 28 {
		return Summary{}, fmt.Errorf("%w: monthly digests run on days 1-28", domain.ErrInvalidDigestDate)
	}

	records, err := s.schedule.ListScheduled(ctx, rate, listLimit)
	if err != nil {
		return Summary{}, fmt.Errorf("load scheduled hits: %w", err)
	}
	if len(records) == 0 {
		return Summary{}, nil
	}

	log := logger.FromContext(ctx)
	sum := Summary{}

	byUser := groupByUser(records)
	sum.Users = len(byUser)

	names := map[string]string{}
	sentAt := s.now().UTC()

	for userID, userRecords := range byUser {
		usr, err := s.users.Get(ctx, userID)
		if err != nil {
			log.Warn("skipping digest for unresolvable user",
				zap.String("user_id", userID), zap.Error(err))
			continue
		}

		hits, ids, orphans := s.buildHits(ctx, userRecords, names, log)
		sum.HitsOrphan += len(orphans)
		if len(orphans) > 0 {
			if err := s.schedule.MarkSent(ctx, orphans, sentAt); err != nil {
				log.Warn("failed to retire orphaned hits", zap.Error(err))
			}
		}
		if len(hits) == 0 {
			continue
		}

		if err := s.mailer.SendDigest(ctx, usr.Email(), rate, hits); err != nil {
			metrics.AlertEmailsTotal.WithLabelValues(string(rate), "error").Inc()
			log.Error("digest email failed",
				zap.String("user_id", userID), zap.Error(err))
			continue
		}
		metrics.AlertEmailsTotal.WithLabelValues(string(rate), "ok").Inc()

		if err := s.schedule.MarkSent(ctx, ids, sentAt); err != nil {
			return sum, fmt.Errorf("mark hits sent for user %s: %w", userID, err)
		}
		for _, h := range hits {
			if err := s.alerts.TouchLastHit(ctx, h.AlertID, sentAt); err != nil {
				log.Warn("touch last hit failed",
					zap.String("alert_id", h.AlertID), zap.Error(err))
			}
		}
		sum.EmailsSent++
		sum.HitsSent += len(ids)
	}
	return sum, nil
}

// Cleanup drops sent hits older than the retention window.
func (s *Service) Cleanup(ctx context.Context) (int, error) {
	cutoff := s.now().UTC().AddDate(0, 0, -s.retentionDays)
	deleted, err := s.schedule.DeleteSentBefore(ctx, cutoff)
	if err != nil {
		return deleted, fmt.Errorf("purge sent hits: %w", err)
	}
	return deleted, nil
}

// buildHits turns one user's records into per-alert hit bundles. Hits
// whose alert no longer exists are returned as orphans to be retired
// without emailing.
func (s *Service) buildHits(ctx context.Context, records []schedule.Record, names map[string]string, log *zap.Logger) ([]hit.Hit, []string, []string) {
	byAlert := map[string][]schedule.Record{}
	order := []string{}
	for _, rec := range records {
		if _, seen := byAlert[rec.AlertID]; !seen {
			order = append(order, rec.AlertID)
		}
		byAlert[rec.AlertID] = append(byAlert[rec.AlertID], rec)
	}

	var hits []hit.Hit
	var ids, orphans []string
	for _, alertID := range order {
		group := byAlert[alertID]

		name, ok := names[alertID]
		if !ok {
			a, err := s.alerts.Get(ctx, alertID)
			switch {
			case errors.Is(err, domain.ErrAlertNotFound):
				for _, rec := range group {
					orphans = append(orphans, rec.Hit.ID)
				}
				continue
			case err != nil:
				log.Warn("alert lookup failed, deferring hits",
					zap.String("alert_id", alertID), zap.Error(err))
				continue
			}
			name = a.Name()
			names[alertID] = name
		}

		h := hit.Hit{
			AlertID:    alertID,
			UserID:     group[0].UserID,
			AlertName:  name,
			SearchType: group[0].Hit.SearchType,
		}
		docs := make([]hit.Document, 0, len(group))
		for _, rec := range group {
			docs = append(docs, rec.Hit.Document)
			ids = append(ids, rec.Hit.ID)
		}
		h.Documents = s.mergeChildren(h.SearchType, docs)
		hits = append(hits, h)
	}
	return hits, ids, orphans
}

// mergeChildren rolls hits that share a parent record into one document,
// so a digest shows a docket once with its triggering entries nested
// under it. Each merged document keeps at most childCap children while
// ChildCount still reflects the full tally.
func (s *Service) mergeChildren(t searchtype.Type, docs []hit.Document) []hit.Document {
	field := t.ParentIDField()
	out := make([]hit.Document, 0, len(docs))
	index := map[string]int{}

	for _, doc := range docs {
		parentID := doc.Fields[field]
		if !t.HasChildDocs() || parentID == "" {
			if doc.ChildCount < len(doc.ChildDocs) {
				doc.ChildCount = len(doc.ChildDocs)
			}
			if len(doc.ChildDocs) > s.childCap {
				doc.ChildDocs = doc.ChildDocs[:s.childCap]
			}
			out = append(out, doc)
			continue
		}

		// A hit percolated as a rolled-up bucket contributes its children;
		// a flat hit contributes itself.
		members := doc.ChildDocs
		total := doc.ChildCount
		if len(members) == 0 {
			members = []hit.Document{doc}
			total = 0
		}
		if total < len(members) {
			total = len(members)
		}

		idx, ok := index[parentID]
		if !ok {
			index[parentID] = len(out)
			out = append(out, hit.Document{ID: parentID, Fields: doc.Fields})
			idx = index[parentID]
		}
		out[idx].ChildCount += total
		room := s.childCap - len(out[idx].ChildDocs)
		if room > len(members) {
			room = len(members)
		}
		if room > 0 {
			out[idx].ChildDocs = append(out[idx].ChildDocs, members[:room]...)
		}
	}
	return out
}

func groupByUser(records []schedule.Record) map[string][]schedule.Record {
	byUser := map[string][]schedule.Record{}
	for _, rec := range records {
		byUser[rec.UserID] = append(byUser[rec.UserID], rec)
	}
	return byUser
}
