package search

import (
	"context"
	"testing"

	"github.com/kailas-cloud/vecdesk/internal/db"
	"github.com/kailas-cloud/vecdesk/internal/repository/keyspace"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchKNNFn func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	repo := New(ms, keyspace.New(""))
	return repo, ms
}

func testVector() []float32 {
	return []float32{0.1, 0.1, 0.1, 0.1}
}
