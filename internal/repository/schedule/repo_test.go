package schedule

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/caselens/lexalert/internal/db"
	domalert "github.com/caselens/lexalert/internal/domain/alert"
	"github.com/caselens/lexalert/internal/domain/hit"
	"github.com/caselens/lexalert/internal/domain/search/searchtype"
)

func TestGetOrCreateUserRate_Converges(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.GetOrCreateUserRate(ctx, "user-1", domalert.RateDaily)
	if err != nil {
		t.Fatalf("GetOrCreateUserRate: %v", err)
	}
	second, err := repo.GetOrCreateUserRate(ctx, "user-1", domalert.RateDaily)
	if err != nil {
		t.Fatalf("GetOrCreateUserRate: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("containers diverged: %s vs %s", first.ID, second.ID)
	}

	other, err := repo.GetOrCreateUserRate(ctx, "user-1", domalert.RateWeekly)
	if err != nil {
		t.Fatalf("GetOrCreateUserRate: %v", err)
	}
	if other.ID == first.ID {
		t.Error("different rates must not share a container")
	}
}

func TestGetOrCreateUserRate_ConcurrentCallers(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	const workers = 16
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ura, err := repo.GetOrCreateUserRate(ctx, "user-1", domalert.RateMonthly)
			if err != nil {
				t.Errorf("worker %d: %v", i, err)
				return
			}
			ids[i] = ura.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("worker %d got container %s, worker 0 got %s", i, ids[i], ids[0])
		}
	}
}

func TestGetOrCreateParent_Converges(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.GetOrCreateParent(ctx, "ura-1", "alert-1")
	if err != nil {
		t.Fatalf("GetOrCreateParent: %v", err)
	}
	second, err := repo.GetOrCreateParent(ctx, "ura-1", "alert-1")
	if err != nil {
		t.Fatalf("GetOrCreateParent: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("parents diverged: %s vs %s", first.ID, second.ID)
	}
	if first.AlertID != "alert-1" || first.UserRateID != "ura-1" {
		t.Errorf("unexpected parent: %+v", first)
	}
}

func TestCreateHit_StoresDenormalizedRouting(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	h := hit.ScheduledHit{
		ID:         uuid.NewString(),
		ParentID:   "parent-1",
		DocumentID: "oa-42",
		SearchType: searchtype.OralArgument,
		Document:   hit.Document{ID: "oa-42", Fields: map[string]string{"caseName": "US v. Doe"}},
		Status:     hit.StatusScheduled,
		CreatedAt:  time.Now().UTC(),
	}
	if err := repo.CreateHit(ctx, h, "alert-1", "user-1", domalert.RateDaily); err != nil {
		t.Fatalf("CreateHit: %v", err)
	}

	stored := ms.hashes[hitKey(h.ID)]
	if stored == nil {
		t.Fatal("hit not stored")
	}
	if stored["rate"] != "dly" || stored["user_id"] != "user-1" || stored["alert_id"] != "alert-1" {
		t.Errorf("routing fields = %v", stored)
	}
	if !strings.Contains(stored["document"], "US v. Doe") {
		t.Errorf("document payload = %q", stored["document"])
	}
}

func TestListScheduled_ParsesRecords(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.searchFn = func(_ context.Context, q *db.SearchQuery) (*db.SearchResult, error) {
		if !strings.Contains(q.Query, "@rate:{dly}") || !strings.Contains(q.Query, "@status:{scheduled}") {
			t.Errorf("unexpected query: %s", q.Query)
		}
		return &db.SearchResult{
			Total: 1,
			Entries: []db.SearchEntry{
				{
					Key: hitKey("hit-1"),
					Fields: map[string]string{
						"parent_id":    "parent-1",
						"alert_id":     "alert-1",
						"user_id":      "user-1",
						"rate":         "dly",
						"doc_id":       "oa-42",
						"type":         "oa",
						"status":       "scheduled",
						"date_created": "1717200000",
						"document":     `{"ID":"oa-42","Fields":{"caseName":"US v. Doe"}}`,
					},
				},
			},
		}, nil
	}

	records, err := repo.ListScheduled(context.Background(), domalert.RateDaily, 100)
	if err != nil {
		t.Fatalf("ListScheduled: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.UserID != "user-1" || rec.AlertID != "alert-1" {
		t.Errorf("routing = %+v", rec)
	}
	if rec.Hit.Document.Fields["caseName"] != "US v. Doe" {
		t.Errorf("document = %+v", rec.Hit.Document)
	}
}
