package record

import (
	"context"
	"testing"

	"github.com/kailas-cloud/vecdesk/internal/db/memory"
	domrec "github.com/kailas-cloud/vecdesk/internal/domain/record"
	"github.com/kailas-cloud/vecdesk/internal/domain/value"
	"github.com/kailas-cloud/vecdesk/internal/repository/keyspace"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hreplaceFn     func(ctx context.Context, key string, fields map[string]string) error
	hgetAllFn      func(ctx context.Context, key string) (map[string]string, error)
	hgetAllMultiFn func(ctx context.Context, keys []string) ([]map[string]string, error)
	scanFn         func(ctx context.Context, pattern string) ([]string, error)
}

func (m *mockStore) HReplace(ctx context.Context, key string, fields map[string]string) error {
	if m.hreplaceFn != nil {
		return m.hreplaceFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.hgetAllMultiFn != nil {
		return m.hgetAllMultiFn(ctx, keys)
	}
	return nil, nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	return nil, nil
}

func newMockRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, keyspace.New("")), ms
}

// newMemoryRepo returns a repo over the in-memory driver, seeded with records.
func newMemoryRepo(t *testing.T, recs ...domrec.Record) *Repo {
	t.Helper()
	repo := New(memory.NewStore(), keyspace.New(""))
	for _, rec := range recs {
		if _, err := repo.Upsert(context.Background(), "docs", rec); err != nil {
			t.Fatalf("seed %s: %v", rec.ID(), err)
		}
	}
	return repo
}

func rec(id string, fields map[string]value.Value) domrec.Record {
	return domrec.Reconstruct(id, fields, nil)
}
