package percolator

import (
	"context"
	"strings"
	"testing"

	"github.com/caselens/lexalert/internal/db"
	domalert "github.com/caselens/lexalert/internal/domain/alert"
	"github.com/caselens/lexalert/internal/domain/search/searchtype"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetFn        func(ctx context.Context, key string, fields map[string]string) error
	delFn         func(ctx context.Context, key string) error
	existsFn      func(ctx context.Context, key string) (bool, error)
	searchFn      func(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error)
	searchCountFn func(ctx context.Context, index, query string) (int, error)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
}

func (m *mockStore) Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchCount(ctx context.Context, index, query string) (int, error) {
	if m.searchCountFn != nil {
		return m.searchCountFn(ctx, index, query)
	}
	return 0, nil
}

func TestUpsert_RendersWithoutOrdering(t *testing.T) {
	ms := &mockStore{}
	repo := New(ms)

	a, err := domalert.New("user-1", "watch", "type=oa&q=immigration&court=ca9&order_by=dateArgued+desc", domalert.RateRealTime)
	if err != nil {
		t.Fatalf("New alert: %v", err)
	}

	var stored map[string]string
	ms.hsetFn = func(_ context.Context, key string, fields map[string]string) error {
		if key != entryKey(a.ID()) {
			t.Errorf("unexpected key: %s", key)
		}
		stored = fields
		return nil
	}

	if err := repo.Upsert(context.Background(), a); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if stored["query"] == "" {
		t.Fatal("rendered query missing")
	}
	if !strings.Contains(stored["query"], "@court_id:{ca9}") {
		t.Errorf("court filter missing: %q", stored["query"])
	}
	if strings.Contains(stored["query"], "SORTBY") || strings.Contains(stored["query"], "dateArgued desc") {
		t.Errorf("ordering leaked into stored query: %q", stored["query"])
	}
	if stored["rate"] != "rt" || stored["type"] != "oa" {
		t.Errorf("routing fields = %v", stored)
	}
}

func TestPage_FiltersByType(t *testing.T) {
	ms := &mockStore{}
	repo := New(ms)

	ms.searchFn = func(_ context.Context, q *db.SearchQuery) (*db.SearchResult, error) {
		if q.Query != "@type:{oa}" {
			t.Errorf("unexpected query: %s", q.Query)
		}
		if q.Offset != 100 || q.Limit != 50 {
			t.Errorf("unexpected paging: offset=%d limit=%d", q.Offset, q.Limit)
		}
		return &db.SearchResult{
			Total: 101,
			Entries: []db.SearchEntry{
				{
					Key: entryKey("alert-1"),
					Fields: map[string]string{
						"alert_id": "alert-1",
						"user_id":  "user-1",
						"name":     "watch",
						"rate":     "dly",
						"type":     "oa",
						"query":    "@court_id:{ca9}",
					},
				},
			},
		}, nil
	}

	entries, total, err := repo.Page(context.Background(), searchtype.OralArgument, 100, 50)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if total != 101 {
		t.Errorf("total = %d", total)
	}
	if len(entries) != 1 || entries[0].AlertID != "alert-1" || entries[0].Rate != domalert.RateDaily {
		t.Errorf("entries = %+v", entries)
	}
}
