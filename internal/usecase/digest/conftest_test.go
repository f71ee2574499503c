package digest

import (
	"context"
	"testing"
	"time"

	"github.com/caselens/lexalert/internal/domain"
	domalert "github.com/caselens/lexalert/internal/domain/alert"
	"github.com/caselens/lexalert/internal/domain/hit"
	"github.com/caselens/lexalert/internal/repository/schedule"
)

var (
	_ ScheduleRepo = (*mockSchedule)(nil)
	_ AlertRepo    = (*mockAlerts)(nil)
	_ Mailer       = (*mockMailer)(nil)
)

type mockSchedule struct {
	records       []schedule.Record
	marked        [][]string
	listCalls     int
	cleanupCutoff time.Time
}

func newMockSchedule(records ...schedule.Record) *mockSchedule {
	return &mockSchedule{records: records}
}

func (m *mockSchedule) ListScheduled(_ context.Context, rate domalert.Rate, _ int) ([]schedule.Record, error) {
	m.listCalls++
	out := []schedule.Record{}
	for _, rec := range m.records {
		if rec.Rate == rate {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *mockSchedule) MarkSent(_ context.Context, ids []string, _ time.Time) error {
	m.marked = append(m.marked, ids)
	return nil
}

func (m *mockSchedule) DeleteSentBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.cleanupCutoff = cutoff
	return 0, nil
}

func (m *mockSchedule) sentIDs() []string {
	var all []string
	for _, batch := range m.marked {
		all = append(all, batch...)
	}
	return all
}

type mockAlerts struct {
	alerts  map[string]domalert.Alert
	touched []string
}

func newMockAlerts(t *testing.T, ids ...string) *mockAlerts {
	t.Helper()
	m := &mockAlerts{alerts: map[string]domalert.Alert{}}
	for _, id := range ids {
		a, err := domalert.New("user-1", "alert "+id, "type=o&q=fraud", domalert.RateDaily)
		if err != nil {
			t.Fatalf("alert %s: %v", id, err)
		}
		m.alerts[id] = a
	}
	return m
}

func (m *mockAlerts) Get(_ context.Context, id string) (domalert.Alert, error) {
	a, ok := m.alerts[id]
	if !ok {
		return domalert.Alert{}, domain.ErrAlertNotFound
	}
	return a, nil
}

func (m *mockAlerts) TouchLastHit(_ context.Context, id string, _ time.Time) error {
	m.touched = append(m.touched, id)
	return nil
}

type mockMailer struct {
	err  error
	sent []sentDigest
}

type sentDigest struct {
	to   string
	rate domalert.Rate
	hits []hit.Hit
}

func (m *mockMailer) SendDigest(_ context.Context, to string, rate domalert.Rate, hits []hit.Hit) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentDigest{to: to, rate: rate, hits: hits})
	return nil
}
