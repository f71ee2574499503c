package digest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/caselens/lexalert/internal/domain"
	domalert "github.com/caselens/lexalert/internal/domain/alert"
	"github.com/caselens/lexalert/internal/domain/hit"
	"github.com/caselens/lexalert/internal/domain/search/searchtype"
	domuser "github.com/caselens/lexalert/internal/domain/user"
	"github.com/caselens/lexalert/internal/repository/schedule"
)

func record(id, alertID, userID string, rate domalert.Rate, children int) schedule.Record {
	doc := hit.Document{ID: "doc-" + id, Fields: map[string]string{"caseName": "Case " + id}}
	for i := 0; i < children; i++ {
		doc.ChildDocs = append(doc.ChildDocs, hit.Document{ID: "child"})
	}
	doc.ChildCount = children
	return schedule.Record{
		Hit: hit.ScheduledHit{
			ID:         id,
			DocumentID: doc.ID,
			SearchType: searchtype.Opinion,
			Document:   doc,
			Status:     hit.StatusScheduled,
		},
		AlertID: alertID,
		UserID:  userID,
		Rate:    rate,
	}
}

func newTestService(t *testing.T, sched *mockSchedule, alerts *mockAlerts, users *mockUsers, mailer *mockMailer) *Service {
	t.Helper()
	svc := New(sched, alerts, users, mailer, 3, 90)
	svc.now = func() time.Time { return time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC) }
	return svc
}

func TestRun_OneEmailPerUserWithPerAlertSections(t *testing.T) {
	sched := newMockSchedule(
		record("h1", "alert-1", "user-1", domalert.RateDaily, 0),
		record("h2", "alert-1", "user-1", domalert.RateDaily, 0),
		record("h3", "alert-2", "user-1", domalert.RateDaily, 0),
		record("h4", "alert-1", "user-2", domalert.RateDaily, 0),
	)
	alerts := newMockAlerts(t, "alert-1", "alert-2")
	users := newMockUsers(t, "user-1", "user-2")
	mailer := &mockMailer{}

	svc := newTestService(t, sched, alerts, users, mailer)
	sum, err := svc.Run(context.Background(), domalert.RateDaily)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Users != 2 || sum.EmailsSent != 2 || sum.HitsSent != 4 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if len(mailer.sent) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(mailer.sent))
	}

	byRecipient := map[string][]hit.Hit{}
	for _, m := range mailer.sent {
		if m.rate != domalert.RateDaily {
			t.Fatalf("email carried rate %q", m.rate)
		}
		byRecipient[m.to] = m.hits
	}
	u1 := byRecipient["user-1@example.com"]
	if len(u1) != 2 {
		t.Fatalf("user-1 expected 2 alert sections, got %d", len(u1))
	}
	if len(u1[0].Documents) != 2 || u1[0].AlertName != "alert alert-1" {
		t.Fatalf("unexpected first section %+v", u1[0])
	}
	if got := sched.sentIDs(); len(got) != 4 {
		t.Fatalf("expected 4 hits marked sent, got %v", got)
	}
}

func TestRun_MonthlyRefusedLateInMonth(t *testing.T) {
	sched := newMockSchedule()
	svc := newTestService(t, sched, newMockAlerts(t), newMockUsers(t), &mockMailer{})
	svc.now = func() time.Time { return time.Date(2024, 5, 30, 8, 0, 0, 0, time.UTC) }

	_, err := svc.Run(context.Background(), domalert.RateMonthly)
	if !errors.Is(err, domain.ErrInvalidDigestDate) {
		t.Fatalf("expected ErrInvalidDigestDate, got %v", err)
	}
	if sched.listCalls != 0 {
		t.Fatal("refused run must not touch the schedule")
	}
}

func TestRun_RejectsUnscheduledRate(t *testing.T) {
	svc := newTestService(t, newMockSchedule(), newMockAlerts(t), newMockUsers(t), &mockMailer{})
	for _, rate := range []domalert.Rate{domalert.RateRealTime, domalert.RateOff} {
		if _, err := svc.Run(context.Background(), rate); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("rate %q: expected ErrValidation, got %v", rate, err)
		}
	}
}

func TestRun_CapsChildHits(t *testing.T) {
	sched := newMockSchedule(record("h1", "alert-1", "user-1", domalert.RateWeekly, 8))
	mailer := &mockMailer{}
	svc := newTestService(t, sched, newMockAlerts(t, "alert-1"), newMockUsers(t, "user-1"), mailer)

	if _, err := svc.Run(context.Background(), domalert.RateWeekly); err != nil {
		t.Fatalf("Run: %v", err)
	}
	doc := mailer.sent[0].hits[0].Documents[0]
	if len(doc.ChildDocs) != 3 {
		t.Fatalf("expected 3 child docs after cap, got %d", len(doc.ChildDocs))
	}
	if doc.ChildCount != 8 {
		t.Fatalf("child count should survive the cap, got %d", doc.ChildCount)
	}
}

func TestRun_MergesSameDocketHits(t *testing.T) {
	entry := func(id, docketID string) schedule.Record {
		rec := record(id, "alert-1", "user-1", domalert.RateDaily, 0)
		rec.Hit.SearchType = searchtype.Recap
		rec.Hit.Document.Fields["docket_id"] = docketID
		return rec
	}
	sched := newMockSchedule(
		entry("h1", "docket-7"),
		entry("h2", "docket-7"),
		entry("h3", "docket-7"),
		entry("h4", "docket-7"),
		entry("h5", "docket-9"),
	)
	mailer := &mockMailer{}
	svc := newTestService(t, sched, newMockAlerts(t, "alert-1"), newMockUsers(t, "user-1"), mailer)

	if _, err := svc.Run(context.Background(), domalert.RateDaily); err != nil {
		t.Fatalf("Run: %v", err)
	}
	docs := mailer.sent[0].hits[0].Documents
	if len(docs) != 2 {
		t.Fatalf("expected one document per docket, got %d", len(docs))
	}
	merged := docs[0]
	if merged.ID != "docket-7" {
		t.Fatalf("merged document id = %q", merged.ID)
	}
	if len(merged.ChildDocs) != 3 || merged.ChildCount != 4 {
		t.Errorf("merged docket = %d kept of %d, want 3 of 4", len(merged.ChildDocs), merged.ChildCount)
	}
	if docs[1].ID != "docket-9" || docs[1].ChildCount != 1 {
		t.Errorf("single-entry docket = %+v", docs[1])
	}
	if got := sched.sentIDs(); len(got) != 5 {
		t.Errorf("all five hits must retire, marked %v", got)
	}
}

func TestRun_StampsLastHitOnDelivery(t *testing.T) {
	sched := newMockSchedule(
		record("h1", "alert-1", "user-1", domalert.RateDaily, 0),
		record("h2", "alert-2", "user-1", domalert.RateDaily, 0),
	)
	alerts := newMockAlerts(t, "alert-1", "alert-2")
	svc := newTestService(t, sched, alerts, newMockUsers(t, "user-1"), &mockMailer{})

	if _, err := svc.Run(context.Background(), domalert.RateDaily); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(alerts.touched) != 2 {
		t.Fatalf("each delivered alert gets a last-hit stamp, touched %v", alerts.touched)
	}
}

func TestRun_RetiresHitsOfDeletedAlerts(t *testing.T) {
	sched := newMockSchedule(
		record("h1", "alert-gone", "user-1", domalert.RateDaily, 0),
		record("h2", "alert-1", "user-1", domalert.RateDaily, 0),
	)
	mailer := &mockMailer{}
	svc := newTestService(t, sched, newMockAlerts(t, "alert-1"), newMockUsers(t, "user-1"), mailer)

	sum, err := svc.Run(context.Background(), domalert.RateDaily)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.HitsOrphan != 1 || sum.HitsSent != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if len(mailer.sent) != 1 || len(mailer.sent[0].hits) != 1 {
		t.Fatal("orphaned hit must not reach the email")
	}
	if got := sched.sentIDs(); len(got) != 2 {
		t.Fatalf("orphan must still be retired, marked %v", got)
	}
}

func TestRun_EmailFailureKeepsHitsPending(t *testing.T) {
	sched := newMockSchedule(record("h1", "alert-1", "user-1", domalert.RateDaily, 0))
	mailer := &mockMailer{err: errors.New("smtp down")}
	alerts := newMockAlerts(t, "alert-1")
	svc := newTestService(t, sched, alerts, newMockUsers(t, "user-1"), mailer)

	sum, err := svc.Run(context.Background(), domalert.RateDaily)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.EmailsSent != 0 || sum.HitsSent != 0 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if got := sched.sentIDs(); len(got) != 0 {
		t.Fatalf("failed email must leave hits pending, marked %v", got)
	}
	if len(alerts.touched) != 0 {
		t.Fatalf("undelivered digest must not stamp last hit, touched %v", alerts.touched)
	}
}

func TestCleanup_UsesRetentionCutoff(t *testing.T) {
	sched := newMockSchedule()
	svc := newTestService(t, sched, newMockAlerts(t), newMockUsers(t), &mockMailer{})

	if _, err := svc.Cleanup(context.Background()); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	want := time.Date(2024, 3, 12, 8, 0, 0, 0, time.UTC)
	if !sched.cleanupCutoff.Equal(want) {
		t.Fatalf("cutoff = %v, want %v", sched.cleanupCutoff, want)
	}
}

var _ UserReader = (*mockUsers)(nil)

type mockUsers struct {
	users map[string]domuser.User
}

func newMockUsers(t *testing.T, ids ...string) *mockUsers {
	t.Helper()
	m := &mockUsers{users: map[string]domuser.User{}}
	for _, id := range ids {
		u, err := domuser.New(id, id+"@example.com", true)
		if err != nil {
			t.Fatalf("user %s: %v", id, err)
		}
		m.users[id] = u
	}
	return m
}

func (m *mockUsers) Get(_ context.Context, id string) (domuser.User, error) {
	u, ok := m.users[id]
	if !ok {
		return domuser.User{}, domain.ErrUserNotFound
	}
	return u, nil
}
