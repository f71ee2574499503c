package chi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/caselens/lexalert/internal/db"
	"github.com/caselens/lexalert/internal/domain"
	domalert "github.com/caselens/lexalert/internal/domain/alert"
	domdoc "github.com/caselens/lexalert/internal/domain/document"
	"github.com/caselens/lexalert/internal/domain/hit"
	"github.com/caselens/lexalert/internal/domain/search/searchtype"
	domuser "github.com/caselens/lexalert/internal/domain/user"
	domwebhook "github.com/caselens/lexalert/internal/domain/webhook"
	"github.com/caselens/lexalert/internal/repository/schedule"
	alertcheckuc "github.com/caselens/lexalert/internal/usecase/alertcheck"
	alertsuc "github.com/caselens/lexalert/internal/usecase/alerts"
	digestuc "github.com/caselens/lexalert/internal/usecase/digest"
	"github.com/caselens/lexalert/internal/usecase/dispatch"
	healthuc "github.com/caselens/lexalert/internal/usecase/health"
	ingestuc "github.com/caselens/lexalert/internal/usecase/ingest"
	"github.com/caselens/lexalert/internal/usecase/percolator"
	searchuc "github.com/caselens/lexalert/internal/usecase/search"
	webhooksuc "github.com/caselens/lexalert/internal/usecase/webhooks"
)

// --- Stubs backing the test server ---

type memAlertRepo struct {
	alerts map[string]domalert.Alert
}

func newMemAlertRepo() *memAlertRepo {
	return &memAlertRepo{alerts: map[string]domalert.Alert{}}
}

func (m *memAlertRepo) Save(_ context.Context, a domalert.Alert) error {
	m.alerts[a.ID()] = a
	return nil
}

func (m *memAlertRepo) Get(_ context.Context, id string) (domalert.Alert, error) {
	a, ok := m.alerts[id]
	if !ok {
		return domalert.Alert{}, domain.ErrAlertNotFound
	}
	return a, nil
}

func (m *memAlertRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.alerts[id]; !ok {
		return domain.ErrAlertNotFound
	}
	delete(m.alerts, id)
	return nil
}

func (m *memAlertRepo) ListByUser(_ context.Context, userID string) ([]domalert.Alert, error) {
	var out []domalert.Alert
	for _, a := range m.alerts {
		if a.UserID() == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAlertRepo) ListPage(_ context.Context, offset, _ int) ([]domalert.Alert, []string, error) {
	if offset > 0 {
		return nil, nil, nil
	}
	var out []domalert.Alert
	for _, a := range m.alerts {
		out = append(out, a)
	}
	return out, nil, nil
}

func (m *memAlertRepo) SetValid(_ context.Context, id string, valid bool) error {
	return nil
}

func (m *memAlertRepo) TouchLastHit(_ context.Context, id string, _ time.Time) error {
	return nil
}

type nopRegistry struct{}

func (nopRegistry) Sync(context.Context, domalert.Alert) {}
func (nopRegistry) Remove(context.Context, string)       {}

type memWebhookRepo struct {
	hooks map[string]domwebhook.Webhook
}

func newMemWebhookRepo() *memWebhookRepo {
	return &memWebhookRepo{hooks: map[string]domwebhook.Webhook{}}
}

func (m *memWebhookRepo) Save(_ context.Context, w domwebhook.Webhook) error {
	m.hooks[w.ID()] = w
	return nil
}

func (m *memWebhookRepo) Get(_ context.Context, id string) (domwebhook.Webhook, error) {
	w, ok := m.hooks[id]
	if !ok {
		return domwebhook.Webhook{}, domain.ErrWebhookNotFound
	}
	return w, nil
}

func (m *memWebhookRepo) Delete(_ context.Context, id string) error {
	delete(m.hooks, id)
	return nil
}

func (m *memWebhookRepo) ListByUser(_ context.Context, userID string) ([]domwebhook.Webhook, error) {
	var out []domwebhook.Webhook
	for _, w := range m.hooks {
		if w.UserID() == userID {
			out = append(out, w)
		}
	}
	return out, nil
}

type stubSearcher struct {
	docs  []hit.Document
	total int
}

func (s *stubSearcher) Search(_ context.Context, _ searchtype.Type, _ string, _, _ int, _ string, _ bool, _ *db.HighlightSpec) ([]hit.Document, int, error) {
	return s.docs, s.total, nil
}

type stubCounter struct{}

func (stubCounter) Count(context.Context, searchtype.Type, string) (int, error) {
	return 0, nil
}

type stubCourts struct{}

func (stubCourts) Names(_ context.Context, _ []string) (map[string]string, error) {
	return map[string]string{}, nil
}

type docWriter struct{}

func (docWriter) Upsert(context.Context, domdoc.Document) error         { return nil }
func (docWriter) Delete(context.Context, searchtype.Type, string) error { return nil }

type stubPercolator struct {
	matches []percolator.Match
}

func (s *stubPercolator) Percolate(context.Context, searchtype.Type, string) []percolator.Match {
	return s.matches
}

type stubDispatcher struct {
	reply dispatch.Summary
}

func (s *stubDispatcher) Dispatch(context.Context, []percolator.Match) dispatch.Summary {
	return s.reply
}

type stubSchedule struct{}

func (stubSchedule) ListScheduled(context.Context, domalert.Rate, int) ([]schedule.Record, error) {
	return nil, nil
}
func (stubSchedule) MarkSent(context.Context, []string, time.Time) error { return nil }
func (stubSchedule) DeleteSentBefore(context.Context, time.Time) (int, error) {
	return 0, nil
}

type stubUsers struct{}

func (stubUsers) Get(_ context.Context, id string) (domuser.User, error) {
	return domuser.New(id, id+"@example.com", true)
}

type stubMailer struct{}

func (stubMailer) SendDigest(context.Context, string, domalert.Rate, []hit.Hit) error {
	return nil
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

// --- Test server assembly ---

type testServer struct {
	handler    http.Handler
	alertRepo  *memAlertRepo
	searcher   *stubSearcher
	percolator *stubPercolator
}

func newTestServer() *testServer {
	alertRepo := newMemAlertRepo()
	searcher := &stubSearcher{}
	perc := &stubPercolator{}

	alertSvc := alertsuc.New(alertRepo, nopRegistry{})
	webhookSvc := webhooksuc.New(newMemWebhookRepo())
	searchSvc := searchuc.New(searcher, stubCourts{}, searchuc.Config{DefaultPageSize: 20, MaxPageSize: 100})
	ingestSvc := ingestuc.New(docWriter{}, perc, &stubDispatcher{})
	digestSvc := digestuc.New(stubSchedule{}, alertRepo, stubUsers{}, stubMailer{}, 5, 90)
	checkSvc := alertcheckuc.New(alertRepo, nopRegistry{}, stubCounter{})
	healthSvc := healthuc.New(stubPinger{}, nil)

	server := NewServer(alertSvc, webhookSvc, searchSvc, ingestSvc, digestSvc, checkSvc, healthSvc, zap.NewNop())

	r := chi.NewRouter()
	server.Routes(r)

	return &testServer{
		handler:    r,
		alertRepo:  alertRepo,
		searcher:   searcher,
		percolator: perc,
	}
}
