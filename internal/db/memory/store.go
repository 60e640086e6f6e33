// Package memory is an in-process db.Store with brute-force KNN search.
// It backs the "memory" database driver and end-to-end tests.
package memory

import (
	"context"
	"fmt"
	"math"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kailas-cloud/vecdesk/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

type kvEntry struct {
	value     []byte
	expiresAt time.Time
}

// Store keeps hashes, plain values and index definitions in maps guarded by one RWMutex.
type Store struct {
	mu      sync.RWMutex
	hashes  map[string]map[string]string
	kv      map[string]kvEntry
	indexes map[string]db.IndexDefinition
	now     func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		hashes:  make(map[string]map[string]string),
		kv:      make(map[string]kvEntry),
		indexes: make(map[string]db.IndexDefinition),
		now:     time.Now,
	}
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// WaitForReady returns immediately.
func (s *Store) WaitForReady(_ context.Context, _ time.Duration) error { return nil }

// --- hashes ---

// HSet sets hash fields.
func (s *Store) HSet(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hsetLocked(key, fields)
	return nil
}

// HReplace swaps the whole hash for fields.
func (s *Store) HReplace(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(fields) == 0 {
		delete(s.hashes, key)
		return nil
	}
	s.hashes[key] = copyHash(fields)
	return nil
}

func (s *Store) hsetLocked(key string, fields map[string]string) {
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		s.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
}

// HSetNX sets a hash field only if it is absent.
func (s *Store) HSetNX(_ context.Context, key, field, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.hashes[key]; ok {
		if _, set := h[field]; set {
			return false, nil
		}
	}
	s.hsetLocked(key, map[string]string{field: value})
	return true, nil
}

// HGetAll returns a copy of all hash fields. A missing key yields an empty map.
func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyHash(s.hashes[key]), nil
}

// HGetAllMulti returns copies of several hashes in key order.
func (s *Store) HGetAllMulti(_ context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		out[i] = copyHash(s.hashes[k])
	}
	return out, nil
}

// Del removes a key of any type.
func (s *Store) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hashes, key)
	delete(s.kv, key)
	return nil
}

// Exists checks if a key of any type exists.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.hashes[key]; ok {
		return true, nil
	}
	_, ok := s.liveKV(key)
	return ok, nil
}

// Scan returns keys matching a glob pattern, sorted.
func (s *Store) Scan(_ context.Context, pattern string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.hashes {
		ok, err := path.Match(pattern, k)
		if err != nil {
			return nil, &db.Error{Op: db.OpScan, Err: err}
		}
		if ok {
			keys = append(keys, k)
		}
	}
	for k := range s.kv {
		if _, live := s.liveKV(k); !live {
			continue
		}
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// --- kv ---

// Get retrieves a value by key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.liveKV(key)
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores a value without expiration.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithTTL(ctx, key, value, 0)
}

// SetWithTTL stores a value; ttl <= 0 means no expiration.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := kvEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.kv[key] = e
	return nil
}

func (s *Store) liveKV(key string) (kvEntry, bool) {
	e, ok := s.kv[key]
	if !ok {
		return kvEntry{}, false
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		return kvEntry{}, false
	}
	return e, true
}

// --- indexes ---

// CreateIndex registers an index definition.
func (s *Store) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	if _, ok := def.VectorField(); !ok {
		return &db.Error{Op: db.OpCreateIndex, Err: fmt.Errorf("index %s has no vector field", def.Name)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[def.Name]; ok {
		return db.ErrIndexExists
	}
	s.indexes[def.Name] = *def
	return nil
}

// DropIndex removes an index, optionally deleting the hashes under its prefixes.
func (s *Store) DropIndex(_ context.Context, name string, deleteDocs bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.indexes[name]
	if !ok {
		return db.ErrIndexNotFound
	}
	delete(s.indexes, name)
	if deleteDocs {
		for k := range s.hashes {
			if hasAnyPrefix(k, def.Prefixes) {
				delete(s.hashes, k)
			}
		}
	}
	return nil
}

// IndexExists checks whether an index is registered.
func (s *Store) IndexExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.indexes[name]
	return ok, nil
}

// --- search ---

// SearchKNN scores every hash under the index prefixes and returns the K closest.
// Hashes without a decodable vector of the index dimension are skipped, as FT indexes do.
func (s *Store) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.indexes[q.IndexName]
	if !ok {
		return nil, db.ErrIndexNotFound
	}
	vf, _ := def.VectorField()
	if len(q.Vector) != vf.VectorDim {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf(
			"query vector has %d dimensions, index expects %d", len(q.Vector), vf.VectorDim)}
	}

	var entries []db.SearchEntry
	for key, h := range s.hashes {
		if !hasAnyPrefix(key, def.Prefixes) {
			continue
		}
		vec, err := db.DecodeVector(h[vf.Name])
		if err != nil || len(vec) != vf.VectorDim {
			continue
		}
		entries = append(entries, db.SearchEntry{
			Key:    key,
			Score:  distance(vf.VectorDistance, q.Vector, vec),
			Fields: project(h, q.ReturnFields),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score < entries[j].Score
		}
		return entries[i].Key < entries[j].Key
	})
	total := len(entries)
	if len(entries) > q.K {
		entries = entries[:q.K]
	}
	return &db.SearchResult{Total: total, Entries: entries}, nil
}

func distance(metric db.DistanceMetric, a, b []float32) float64 {
	var dot, na, nb, l2 float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
		d := x - y
		l2 += d * d
	}
	switch metric {
	case db.DistanceL2:
		return l2
	case db.DistanceIP:
		return 1 - dot
	default:
		if na == 0 || nb == 0 {
			return 1
		}
		return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
	}
}

func project(h map[string]string, fields []string) map[string]string {
	if len(fields) == 0 {
		return copyHash(h)
	}
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if v, ok := h[f]; ok {
			out[f] = v
		}
	}
	return out
}

func copyHash(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

func hasAnyPrefix(key string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}
