package collection

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kailas-cloud/vecdesk/internal/db"
	"github.com/kailas-cloud/vecdesk/internal/domain"
	domcol "github.com/kailas-cloud/vecdesk/internal/domain/collection"
	"github.com/kailas-cloud/vecdesk/internal/repository/keyspace"
)

// store is the consumer interface for collections (ISP).
//
//nolint:interfacebloat // collection repo needs hash + index management operations
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetNX(ctx context.Context, key, field, value string) (bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
}

// IndexConfig holds vector index parameters applied to new collections.
type IndexConfig struct {
	Algorithm   db.VectorAlgorithm
	Distance    db.DistanceMetric
	M           int
	EFConstruct int
}

// Repo implements usecase/collection.Repository.
type Repo struct {
	store store
	keys  keyspace.Keyspace
	index IndexConfig
}

// New creates a collection repository.
func New(s store, keys keyspace.Keyspace) *Repo {
	return &Repo{
		store: s,
		keys:  keys,
		index: IndexConfig{Algorithm: db.VectorHNSW, Distance: db.DistanceCosine, M: 16, EFConstruct: 200},
	}
}

// WithIndex overrides vector index parameters; zero values keep the defaults.
func (r *Repo) WithIndex(cfg IndexConfig) *Repo {
	if cfg.Algorithm != "" {
		r.index.Algorithm = cfg.Algorithm
	}
	if cfg.Distance != "" {
		r.index.Distance = cfg.Distance
	}
	if cfg.M > 0 {
		r.index.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.index.EFConstruct = cfg.EFConstruct
	}
	return r
}

// Create stores a collection: HSETNX claims the name, HSET writes metadata, FT.CREATE builds the index.
// On FT.CREATE failure the metadata hash is removed again.
func (r *Repo) Create(ctx context.Context, col domcol.Collection) error {
	name := col.Name()
	metaKey := r.keys.Collection(name)

	indexDef, err := buildIndex(r.keys, col, r.index)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	hashData, err := collectionToHash(col)
	if err != nil {
		return err
	}

	claimed, err := r.store.HSetNX(ctx, metaKey, "name", name)
	if err != nil {
		return fmt.Errorf("claim collection %s: %w", name, err)
	}
	if !claimed {
		return fmt.Errorf("collection %q: %w", name, domain.ErrCollectionExists)
	}

	if err := r.store.HSet(ctx, metaKey, hashData); err != nil {
		cleanupErr := r.store.Del(ctx, metaKey)
		return errors.Join(fmt.Errorf("hset collection %s: %w", name, err), cleanupErr)
	}

	if err := r.store.CreateIndex(ctx, indexDef); err != nil {
		cleanupErr := r.store.Del(ctx, metaKey)
		return errors.Join(fmt.Errorf("create index %s: %w", indexDef.Name, err), cleanupErr)
	}

	return nil
}

// Get retrieves a collection by name.
func (r *Repo) Get(ctx context.Context, name string) (domcol.Collection, error) {
	m, err := r.store.HGetAll(ctx, r.keys.Collection(name))
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("hgetall collection %s: %w", name, err)
	}
	if len(m) == 0 {
		return domcol.Collection{}, fmt.Errorf("collection %q: %w", name, domain.ErrCollectionNotFound)
	}

	return collectionFromHash(m)
}

// List returns all collections sorted by CreatedAt.
func (r *Repo) List(ctx context.Context) ([]domcol.Collection, error) {
	keys, err := r.store.Scan(ctx, r.keys.CollectionPattern())
	if err != nil {
		return nil, fmt.Errorf("scan collections: %w", err)
	}
	if len(keys) == 0 {
		return []domcol.Collection{}, nil
	}

	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi collections: %w", err)
	}

	collections := make([]domcol.Collection, 0, len(results))
	for i, m := range results {
		if len(m) == 0 {
			continue
		}
		col, err := collectionFromHash(m)
		if err != nil {
			return nil, fmt.Errorf("parse collection %s: %w", keys[i], err)
		}
		collections = append(collections, col)
	}

	sort.Slice(collections, func(i, j int) bool {
		if collections[i].CreatedAt() != collections[j].CreatedAt() {
			return collections[i].CreatedAt() < collections[j].CreatedAt()
		}
		return collections[i].Name() < collections[j].Name()
	})

	return collections, nil
}

// Delete removes a collection with all its records: FT.DROPINDEX DD, then DEL metadata.
// A missing index is tolerated so half-created collections can still be dropped.
func (r *Repo) Delete(ctx context.Context, name string) error {
	metaKey := r.keys.Collection(name)

	meta, err := r.store.HGetAll(ctx, metaKey)
	if err != nil {
		return fmt.Errorf("hgetall collection %s: %w", name, err)
	}
	if len(meta) == 0 {
		return fmt.Errorf("collection %q: %w", name, domain.ErrCollectionNotFound)
	}

	idxName := r.keys.Index(name)
	if err := r.store.DropIndex(ctx, idxName, true); err != nil {
		if !errors.Is(err, db.ErrIndexNotFound) {
			return fmt.Errorf("drop index %s: %w", idxName, err)
		}
		if err := r.deleteRecords(ctx, name); err != nil {
			return err
		}
	}

	if err := r.store.Del(ctx, metaKey); err != nil {
		return fmt.Errorf("del collection %s: %w", name, err)
	}
	return nil
}

func (r *Repo) deleteRecords(ctx context.Context, name string) error {
	keys, err := r.store.Scan(ctx, r.keys.RecordPattern(name))
	if err != nil {
		return fmt.Errorf("scan records %s: %w", name, err)
	}
	for _, k := range keys {
		if err := r.store.Del(ctx, k); err != nil {
			return fmt.Errorf("del record %s: %w", k, err)
		}
	}
	return nil
}
