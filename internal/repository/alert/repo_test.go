package alert

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/caselens/lexalert/internal/db"
	"github.com/caselens/lexalert/internal/domain"
	domalert "github.com/caselens/lexalert/internal/domain/alert"
)

func testAlert(t *testing.T) domalert.Alert {
	t.Helper()
	a, err := domalert.New("user-1", "Ninth Circuit", "type=oa&q=immigration&court=ca9", domalert.RateDaily)
	if err != nil {
		t.Fatalf("New alert: %v", err)
	}
	return a
}

func TestSave_RoundTrip(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()
	a := testAlert(t)

	var stored map[string]string
	ms.hsetFn = func(_ context.Context, key string, fields map[string]string) error {
		if key != keyPrefix+a.ID() {
			t.Errorf("unexpected key: %s", key)
		}
		stored = fields
		return nil
	}
	if err := repo.Save(ctx, a); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ms.hgetAllFn = func(_ context.Context, key string) (map[string]string, error) {
		return stored, nil
	}
	got, err := repo.Get(ctx, a.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserID() != a.UserID() || got.Rate() != a.Rate() || got.Query() != a.Query() {
		t.Errorf("round trip mismatch: got %+v", got)
	}
	if got.SecretKey() != a.SecretKey() {
		t.Error("secret key lost in round trip")
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return map[string]string{}, nil
	}
	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrAlertNotFound) {
		t.Errorf("Get = %v, want ErrAlertNotFound", err)
	}
}

func TestListByUser_FiltersByTag(t *testing.T) {
	repo, ms := newTestRepo(t)
	a := testAlert(t)

	ms.searchFn = func(_ context.Context, q *db.SearchQuery) (*db.SearchResult, error) {
		if q.Index != indexName {
			t.Errorf("unexpected index: %s", q.Index)
		}
		if !strings.Contains(q.Query, "@user_id:{user\\-1}") {
			t.Errorf("unexpected query: %s", q.Query)
		}
		return &db.SearchResult{
			Total: 1,
			Entries: []db.SearchEntry{
				{Key: keyPrefix + a.ID(), Fields: buildHashFields(a)},
			},
		}, nil
	}

	alerts, err := repo.ListByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(alerts) != 1 || alerts[0].ID() != a.ID() {
		t.Errorf("unexpected alerts: %+v", alerts)
	}
}

func TestListPage_ReportsBrokenRecords(t *testing.T) {
	repo, ms := newTestRepo(t)
	a := testAlert(t)

	brokenFields := buildHashFields(a)
	brokenFields["query"] = "type=nonsense"

	ms.searchFn = func(_ context.Context, _ *db.SearchQuery) (*db.SearchResult, error) {
		return &db.SearchResult{
			Total: 2,
			Entries: []db.SearchEntry{
				{Key: keyPrefix + a.ID(), Fields: buildHashFields(a)},
				{Key: keyPrefix + "broken-1", Fields: brokenFields},
			},
		}, nil
	}

	alerts, broken, err := repo.ListPage(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if len(alerts) != 1 {
		t.Errorf("expected 1 parseable alert, got %d", len(alerts))
	}
	if len(broken) != 1 || broken[0] != "broken-1" {
		t.Errorf("expected broken-1 flagged, got %v", broken)
	}
}
