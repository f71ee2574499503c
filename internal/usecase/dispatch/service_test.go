package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	domalert "github.com/caselens/lexalert/internal/domain/alert"
	"github.com/caselens/lexalert/internal/domain/hit"
	"github.com/caselens/lexalert/internal/domain/search/searchtype"
	domuser "github.com/caselens/lexalert/internal/domain/user"
	domwebhook "github.com/caselens/lexalert/internal/domain/webhook"
	"github.com/caselens/lexalert/internal/usecase/percolator"
)

type mockUsers struct {
	users map[string]domuser.User
}

func (m *mockUsers) Get(_ context.Context, id string) (domuser.User, error) {
	u, ok := m.users[id]
	if !ok {
		return domuser.User{}, errors.New("not found")
	}
	return u, nil
}

type mockWebhooks struct {
	hooks map[string][]domwebhook.Webhook
}

func (m *mockWebhooks) ListEnabled(_ context.Context, userID string, _ domwebhook.EventType) ([]domwebhook.Webhook, error) {
	return m.hooks[userID], nil
}

type mockSchedule struct {
	uraCalls    int
	parentCalls int
	created     []hit.ScheduledHit
	rates       []domalert.Rate
}

func (m *mockSchedule) GetOrCreateUserRate(_ context.Context, userID string, rate domalert.Rate) (hit.UserRateAlert, error) {
	m.uraCalls++
	return hit.UserRateAlert{ID: "ura-" + userID + "-" + string(rate), UserID: userID, Rate: string(rate)}, nil
}

func (m *mockSchedule) GetOrCreateParent(_ context.Context, userRateID, alertID string) (hit.ParentAlert, error) {
	m.parentCalls++
	return hit.ParentAlert{ID: "pa-" + userRateID + "-" + alertID, AlertID: alertID, UserRateID: userRateID}, nil
}

func (m *mockSchedule) CreateHit(_ context.Context, h hit.ScheduledHit, _, _ string, rate domalert.Rate) error {
	m.created = append(m.created, h)
	m.rates = append(m.rates, rate)
	return nil
}

type mockMailer struct {
	sent map[string]int
	fail bool
}

func (m *mockMailer) SendAlert(_ context.Context, to string, _ []hit.Hit) error {
	if m.fail {
		return errors.New("smtp down")
	}
	if m.sent == nil {
		m.sent = make(map[string]int)
	}
	m.sent[to]++
	return nil
}

type mockSender struct {
	deliveries map[string]int
}

func (m *mockSender) Send(_ context.Context, w domwebhook.Webhook, _ []hit.Hit) error {
	if m.deliveries == nil {
		m.deliveries = make(map[string]int)
	}
	m.deliveries[w.ID()]++
	return nil
}

type mockToucher struct {
	touched []string
}

func (m *mockToucher) TouchLastHit(_ context.Context, id string, _ time.Time) error {
	m.touched = append(m.touched, id)
	return nil
}

func match(alertID, userID string, rate domalert.Rate) percolator.Match {
	return percolator.Match{
		AlertID:   alertID,
		UserID:    userID,
		AlertName: "watch " + alertID,
		Rate:      rate,
		Type:      searchtype.OralArgument,
		Document:  hit.Document{ID: "oa-42", Fields: map[string]string{"caseName": "US v. Doe"}},
	}
}

func member(t *testing.T, id string) domuser.User {
	t.Helper()
	u, err := domuser.New(id, id+"@example.org", true)
	if err != nil {
		t.Fatalf("New user: %v", err)
	}
	return u
}

func enabledHook(t *testing.T, userID string) domwebhook.Webhook {
	t.Helper()
	w, err := domwebhook.New(userID, "https://example.org/hook", domwebhook.EventSearchAlert, true)
	if err != nil {
		t.Fatalf("New webhook: %v", err)
	}
	return w
}

func TestDispatch_RealTimeOneEmailEachWebhookOnce(t *testing.T) {
	users := &mockUsers{users: map[string]domuser.User{"user-1": member(t, "user-1")}}
	hookA := enabledHook(t, "user-1")
	hookB := enabledHook(t, "user-1")
	webhooks := &mockWebhooks{hooks: map[string][]domwebhook.Webhook{"user-1": {hookA, hookB}}}
	mailer := &mockMailer{}
	sender := &mockSender{}
	toucher := &mockToucher{}

	svc := New(users, webhooks, &mockSchedule{}, mailer, sender, toucher)
	sum := svc.Dispatch(context.Background(), []percolator.Match{
		match("a1", "user-1", domalert.RateRealTime),
		match("a2", "user-1", domalert.RateRealTime),
	})

	if mailer.sent["user-1@example.org"] != 1 {
		t.Errorf("emails to user = %d, want exactly 1", mailer.sent["user-1@example.org"])
	}
	if sender.deliveries[hookA.ID()] != 1 || sender.deliveries[hookB.ID()] != 1 {
		t.Errorf("webhook deliveries = %v, want one each", sender.deliveries)
	}
	if sum.EmailsSent != 1 || sum.WebhooksSent != 2 {
		t.Errorf("summary = %+v", sum)
	}
	if len(toucher.touched) != 2 {
		t.Errorf("touched alerts = %v", toucher.touched)
	}
}

func TestDispatch_SkipsNonMemberRealTime(t *testing.T) {
	u, err := domuser.New("user-2", "u2@example.org", false)
	if err != nil {
		t.Fatalf("New user: %v", err)
	}
	users := &mockUsers{users: map[string]domuser.User{"user-2": u}}
	mailer := &mockMailer{}

	svc := New(users, &mockWebhooks{}, &mockSchedule{}, mailer, &mockSender{}, &mockToucher{})
	sum := svc.Dispatch(context.Background(), []percolator.Match{
		match("a1", "user-2", domalert.RateRealTime),
	})

	if len(mailer.sent) != 0 {
		t.Errorf("email sent to non-member: %v", mailer.sent)
	}
	if sum.Skipped != 1 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestDispatch_ParksScheduledRates(t *testing.T) {
	schedule := &mockSchedule{}
	mailer := &mockMailer{}

	toucher := &mockToucher{}
	svc := New(&mockUsers{}, &mockWebhooks{}, schedule, mailer, &mockSender{}, toucher)
	sum := svc.Dispatch(context.Background(), []percolator.Match{
		match("a1", "user-1", domalert.RateDaily),
		match("a2", "user-1", domalert.RateMonthly),
	})

	if len(mailer.sent) != 0 {
		t.Errorf("scheduled rates must not email immediately: %v", mailer.sent)
	}
	if len(toucher.touched) != 0 {
		t.Errorf("scheduled matches stamp last hit at digest time, touched %v", toucher.touched)
	}
	if sum.HitsScheduled != 2 {
		t.Errorf("summary = %+v", sum)
	}
	if len(schedule.created) != 2 {
		t.Fatalf("created hits = %d", len(schedule.created))
	}
	if schedule.created[0].Status != hit.StatusScheduled {
		t.Errorf("status = %q", schedule.created[0].Status)
	}
	if schedule.rates[1] != domalert.RateMonthly {
		t.Errorf("rates = %v", schedule.rates)
	}
}

func TestDispatch_EmailFailureDoesNotBlockWebhooks(t *testing.T) {
	users := &mockUsers{users: map[string]domuser.User{"user-1": member(t, "user-1")}}
	hook := enabledHook(t, "user-1")
	webhooks := &mockWebhooks{hooks: map[string][]domwebhook.Webhook{"user-1": {hook}}}
	sender := &mockSender{}

	svc := New(users, webhooks, &mockSchedule{}, &mockMailer{fail: true}, sender, &mockToucher{})
	sum := svc.Dispatch(context.Background(), []percolator.Match{
		match("a1", "user-1", domalert.RateRealTime),
	})

	if sum.EmailsSent != 0 {
		t.Errorf("summary counts failed email: %+v", sum)
	}
	if sender.deliveries[hook.ID()] != 1 {
		t.Error("webhook skipped after email failure")
	}
}
