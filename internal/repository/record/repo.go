package record

import (
	"context"
	"fmt"
	"sort"

	"github.com/kailas-cloud/vecdesk/internal/domain"
	domrec "github.com/kailas-cloud/vecdesk/internal/domain/record"
	"github.com/kailas-cloud/vecdesk/internal/domain/value"
	"github.com/kailas-cloud/vecdesk/internal/repository/keyspace"
)

// store is the consumer interface for records (ISP).
type store interface {
	HReplace(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo implements the record side of the collection store.
type Repo struct {
	store store
	keys  keyspace.Keyspace
}

// New creates a record repository.
func New(s store, keys keyspace.Keyspace) *Repo {
	return &Repo{store: s, keys: keys}
}

// Upsert replaces the record hash atomically, so fields dropped by a newer version
// leave neither the hash nor the index.
func (r *Repo) Upsert(ctx context.Context, collectionName string, rec domrec.Record) (string, error) {
	key := r.keys.Record(collectionName, rec.ID())
	fields, err := buildHashFields(rec)
	if err != nil {
		return "", err
	}
	if err := r.store.HReplace(ctx, key, fields); err != nil {
		return "", fmt.Errorf("replace %s: %w", key, err)
	}
	return rec.ID(), nil
}

// Get returns a record by ID.
func (r *Repo) Get(ctx context.Context, collectionName, id string) (domrec.Record, error) {
	key := r.keys.Record(collectionName, id)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domrec.Record{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(m) == 0 {
		return domrec.Record{}, fmt.Errorf("record %q in %q: %w", id, collectionName, domain.ErrRecordNotFound)
	}
	return FromHash(id, m)
}

// Count returns the number of records in a collection.
func (r *Repo) Count(ctx context.Context, collectionName string) (int, error) {
	keys, err := r.store.Scan(ctx, r.keys.RecordPattern(collectionName))
	if err != nil {
		return 0, fmt.Errorf("scan records %s: %w", collectionName, err)
	}
	return len(keys), nil
}

// FetchOrdered returns a page of records sorted by orderField, then by ID.
// Records missing orderField sort last. An empty orderField orders by ID only.
func (r *Repo) FetchOrdered(
	ctx context.Context, collectionName, orderField string, limit, offset int,
) ([]domrec.Record, error) {
	keys, err := r.store.Scan(ctx, r.keys.RecordPattern(collectionName))
	if err != nil {
		return nil, fmt.Errorf("scan records %s: %w", collectionName, err)
	}
	if len(keys) == 0 || offset >= len(keys) {
		return []domrec.Record{}, nil
	}

	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall records %s: %w", collectionName, err)
	}

	records := make([]domrec.Record, 0, len(hashes))
	for i, m := range hashes {
		if len(m) == 0 {
			continue // deleted between SCAN and HGETALL
		}
		rec, err := FromHash(r.keys.RecordID(collectionName, keys[i]), m)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	sortRecords(records, orderField)

	if offset >= len(records) {
		return []domrec.Record{}, nil
	}
	end := len(records)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return records[offset:end], nil
}

func sortRecords(records []domrec.Record, orderField string) {
	sort.SliceStable(records, func(i, j int) bool {
		if orderField != "" {
			a, aok := records[i].Field(orderField)
			b, bok := records[j].Field(orderField)
			switch {
			case aok && !bok:
				return true
			case !aok && bok:
				return false
			case aok && bok:
				if c := value.Compare(a, b); c != 0 {
					return c < 0
				}
			}
		}
		return records[i].ID() < records[j].ID()
	})
}
