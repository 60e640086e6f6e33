package ingest

import (
	"context"

	"github.com/kailas-cloud/vecdesk/internal/domain"
	domcol "github.com/kailas-cloud/vecdesk/internal/domain/collection"
	domrec "github.com/kailas-cloud/vecdesk/internal/domain/record"
)

// CollectionReader reads collections for existence and schema checks.
type CollectionReader interface {
	Get(ctx context.Context, name string) (domcol.Collection, error)
}

// RecordUpserter writes a record into a collection.
type RecordUpserter interface {
	Upsert(ctx context.Context, collectionName string, rec domrec.Record) (string, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
