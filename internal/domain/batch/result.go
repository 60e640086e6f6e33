package batch

import (
	"fmt"
	"sort"

	"github.com/kailas-cloud/vecdesk/internal/domain"
)

// ItemStatus is the terminal state of a single bulk item.
type ItemStatus string

// Bulk item status values.
const (
	StatusStored ItemStatus = "stored"
	StatusFailed ItemStatus = "failed"
)

// Item is the outcome of processing one input of a bulk job.
type Item struct {
	index  int
	id     string
	status ItemStatus
	err    error
}

// Stored creates a successful item outcome.
func Stored(index int, id string) Item {
	return Item{index: index, id: id, status: StatusStored}
}

// Failed creates a failed item outcome. id may be empty when none was assigned.
func Failed(index int, id string, err error) Item {
	return Item{index: index, id: id, status: StatusFailed, err: err}
}

// Index returns the input position of the item.
func (i Item) Index() int { return i.index }

// ID returns the record identifier, if one was assigned.
func (i Item) ID() string { return i.id }

// Status returns the terminal state.
func (i Item) Status() ItemStatus { return i.status }

// Err returns the error, if any.
func (i Item) Err() error { return i.err }

// Result summarizes a finished bulk job. Both lists are ordered by input index.
type Result struct {
	Total     int
	Succeeded []Item
	Failed    []Item
}

// NewResult splits item outcomes into succeeded and failed, ordered by input index.
func NewResult(total int, items []Item) Result {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].index < sorted[b].index })

	r := Result{Total: total, Succeeded: []Item{}, Failed: []Item{}}
	for _, it := range sorted {
		if it.status == StatusStored {
			r.Succeeded = append(r.Succeeded, it)
		} else {
			r.Failed = append(r.Failed, it)
		}
	}
	return r
}

// Complete reports whether every input reached a terminal state.
func (r Result) Complete() bool { return len(r.Succeeded)+len(r.Failed) == r.Total }

// Err returns a *PartialFailure when any item failed, nil otherwise.
func (r Result) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return &PartialFailure{Failed: len(r.Failed), Total: r.Total}
}

// PartialFailure summarizes a bulk job where some items failed.
type PartialFailure struct {
	Failed int
	Total  int
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("%s: %d of %d records failed", domain.ErrPartialBatchFailure.Error(), e.Failed, e.Total)
}

func (e *PartialFailure) Unwrap() error { return domain.ErrPartialBatchFailure }
