package query

import (
	"context"

	"github.com/kailas-cloud/vecdesk/internal/domain"
	domcol "github.com/kailas-cloud/vecdesk/internal/domain/collection"
	domsearch "github.com/kailas-cloud/vecdesk/internal/domain/search"
)

// Repository defines the storage contract for similarity search.
type Repository interface {
	SearchKNN(ctx context.Context, collectionName string, vector []float32, topK int) ([]domsearch.Hit, error)
}

// CollectionReader reads collections for existence and dimension checks.
type CollectionReader interface {
	Get(ctx context.Context, name string) (domcol.Collection, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
