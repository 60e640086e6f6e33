package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput signals text that is blank after whitespace normalization.
	ErrEmptyInput = errors.New("empty input")
	// ErrInvalidInput signals a malformed request argument or payload.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmbeddingService signals an embedding server failure (unreachable, timeout, bad response).
	ErrEmbeddingService = errors.New("embedding service error")
	// ErrEmbeddingRejected marks a provider failure that retrying cannot fix (4xx other than 408/429).
	ErrEmbeddingRejected = errors.New("embedding request rejected")
	// ErrCollectionExists signals a create on a name that is already taken.
	ErrCollectionExists = errors.New("collection already exists")
	// ErrCollectionNotFound signals a missing collection.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrSchemaMismatch signals a record or vector incompatible with the collection schema.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrRecordNotFound signals a missing record.
	ErrRecordNotFound = errors.New("record not found")
	// ErrPartialBatchFailure signals that some records of a bulk job failed.
	ErrPartialBatchFailure = errors.New("partial batch failure")
)

// ItemError carries the context of a single failed record in a bulk job.
type ItemError struct {
	Collection string
	Index      int
	ID         string
	Err        error
}

func (e *ItemError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("collection %q record #%d (%s): %v", e.Collection, e.Index, e.ID, e.Err)
	}
	return fmt.Sprintf("collection %q record #%d: %v", e.Collection, e.Index, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// NewItemError wraps err with the collection and input position of the record.
func NewItemError(collection string, index int, id string, err error) error {
	return &ItemError{Collection: collection, Index: index, ID: id, Err: err}
}
