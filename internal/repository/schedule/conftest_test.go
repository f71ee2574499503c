package schedule

import (
	"context"
	"sync"
	"testing"

	"github.com/caselens/lexalert/internal/db"
)

// mockStore implements the consumer interface for tests. SetNXGet mimics
// the real command: first writer wins, later callers read the stored value.
type mockStore struct {
	mu     sync.Mutex
	kv     map[string]string
	hashes map[string]map[string]string

	searchFn func(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error)
}

func newMockStore() *mockStore {
	return &mockStore{
		kv:     make(map[string]string),
		hashes: make(map[string]map[string]string),
	}
}

func (m *mockStore) HSet(_ context.Context, key string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hashes[key] == nil {
		m.hashes[key] = make(map[string]string)
	}
	for k, v := range fields {
		m.hashes[key][k] = v
	}
	return nil
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	for _, item := range items {
		if err := m.HSet(ctx, item.Key, item.Fields); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockStore) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hashes, key)
	return nil
}

func (m *mockStore) SetNXGet(_ context.Context, key, value string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.kv[key]; ok {
		return prev, false, nil
	}
	m.kv[key] = value
	return value, true, nil
}

func (m *mockStore) Search(ctx context.Context, q *db.SearchQuery) (*db.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := newMockStore()
	return New(ms), ms
}
