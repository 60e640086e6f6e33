package search

import (
	"sort"

	"github.com/kailas-cloud/vecdesk/internal/domain/record"
)

// Hit is a single similarity search result. Lower distance means more similar.
type Hit struct {
	record   record.Record
	distance float64
}

// NewHit creates a search hit.
func NewHit(rec record.Record, distance float64) Hit {
	return Hit{record: rec, distance: distance}
}

// Record returns the matched record.
func (h Hit) Record() record.Record { return h.record }

// ID returns the matched record identifier.
func (h Hit) ID() string { return h.record.ID() }

// Distance returns the distance to the query vector.
func (h Hit) Distance() float64 { return h.distance }

// SortByDistance orders hits ascending by distance, ties by record ID.
func SortByDistance(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].distance != hits[j].distance {
			return hits[i].distance < hits[j].distance
		}
		return hits[i].record.ID() < hits[j].record.ID()
	})
}
