package collection

import (
	"context"
	"testing"

	"github.com/kailas-cloud/vecdesk/internal/db"
	domcol "github.com/kailas-cloud/vecdesk/internal/domain/collection"
	"github.com/kailas-cloud/vecdesk/internal/domain/collection/field"
	"github.com/kailas-cloud/vecdesk/internal/domain/value"
	"github.com/kailas-cloud/vecdesk/internal/repository/keyspace"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetFn         func(ctx context.Context, key string, fields map[string]string) error
	hsetNXFn       func(ctx context.Context, key, field, value string) (bool, error)
	hgetAllFn      func(ctx context.Context, key string) (map[string]string, error)
	hgetAllMultiFn func(ctx context.Context, keys []string) ([]map[string]string, error)
	delFn          func(ctx context.Context, key string) error
	scanFn         func(ctx context.Context, pattern string) ([]string, error)
	createIndexFn  func(ctx context.Context, def *db.IndexDefinition) error
	dropIndexFn    func(ctx context.Context, name string, deleteDocs bool) error
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HSetNX(ctx context.Context, key, field, value string) (bool, error) {
	if m.hsetNXFn != nil {
		return m.hsetNXFn(ctx, key, field, value)
	}
	return true, nil
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

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	return nil, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string, deleteDocs bool) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name, deleteDocs)
	}
	return nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	repo := New(ms, keyspace.New(""))
	return repo, ms
}

func testCollection(t *testing.T) domcol.Collection {
	t.Helper()
	return domcol.Reconstruct(
		"test-collection",
		domcol.Schema{
			Fields: []field.Field{
				field.Reconstruct("language", value.KindString),
				field.Reconstruct("priority", value.KindNumber),
			},
			TextField: "body",
		},
		768,
		1700000000000,
	)
}
