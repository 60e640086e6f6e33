package collection

import (
	"context"

	domcol "github.com/kailas-cloud/vecdesk/internal/domain/collection"
	domrec "github.com/kailas-cloud/vecdesk/internal/domain/record"
)

// Repository defines the storage contract for collections.
type Repository interface {
	Create(ctx context.Context, col domcol.Collection) error
	Get(ctx context.Context, name string) (domcol.Collection, error)
	List(ctx context.Context) ([]domcol.Collection, error)
	Delete(ctx context.Context, name string) error
}

// RecordReader reads stored records of a collection.
type RecordReader interface {
	Get(ctx context.Context, collectionName, id string) (domrec.Record, error)
	FetchOrdered(ctx context.Context, collectionName, orderField string, limit, offset int) ([]domrec.Record, error)
	Count(ctx context.Context, collectionName string) (int, error)
}
