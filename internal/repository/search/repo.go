package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/vecdesk/internal/db"
	"github.com/kailas-cloud/vecdesk/internal/domain"
	domsearch "github.com/kailas-cloud/vecdesk/internal/domain/search"
	"github.com/kailas-cloud/vecdesk/internal/repository/keyspace"
	recordrepo "github.com/kailas-cloud/vecdesk/internal/repository/record"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo runs similarity searches over a collection index.
type Repo struct {
	store store
	keys  keyspace.Keyspace
}

// New creates a search repository.
func New(s store, keys keyspace.Keyspace) *Repo {
	return &Repo{store: s, keys: keys}
}

// SearchKNN returns up to topK records nearest to vector, closest first.
// Distances are raw index distances: 0 means identical, lower is closer.
func (r *Repo) SearchKNN(
	ctx context.Context, collectionName string, vector []float32, topK int,
) ([]domsearch.Hit, error) {
	q := &db.KNNQuery{
		IndexName: r.keys.Index(collectionName),
		Vector:    vector,
		K:         topK,
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, fmt.Errorf("collection %q: %w", collectionName, domain.ErrCollectionNotFound)
		}
		return nil, fmt.Errorf("search knn %s: %w", collectionName, err)
	}

	return r.parseHits(sr, collectionName)
}

func (r *Repo) parseHits(sr *db.SearchResult, collectionName string) ([]domsearch.Hit, error) {
	if sr == nil || len(sr.Entries) == 0 {
		return []domsearch.Hit{}, nil
	}

	hits := make([]domsearch.Hit, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		id := r.keys.RecordID(collectionName, entry.Key)
		rec, err := recordrepo.FromHash(id, entry.Fields)
		if err != nil {
			return nil, err
		}
		hits = append(hits, domsearch.NewHit(rec, entry.Score))
	}

	// FT.SEARCH sorts by distance already; this fixes the order of ties.
	domsearch.SortByDistance(hits)
	return hits, nil
}
