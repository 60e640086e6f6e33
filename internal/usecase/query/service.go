package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/vecdesk/internal/domain"
	domsearch "github.com/kailas-cloud/vecdesk/internal/domain/search"
)

// Defaults for top-k handling.
const (
	DefaultTopK    = 10
	DefaultMaxTopK = 100
)

// Service answers natural-language similarity queries.
type Service struct {
	repo    Repository
	colls   CollectionReader
	embed   Embedder
	maxTopK int
}

// New creates a query service.
func New(repo Repository, colls CollectionReader, embed Embedder) *Service {
	return &Service{repo: repo, colls: colls, embed: embed, maxTopK: DefaultMaxTopK}
}

// WithMaxTopK configures the upper bound applied to topK.
func (s *Service) WithMaxTopK(n int) *Service {
	if n > 0 {
		s.maxTopK = n
	}
	return s
}

// Search embeds queryText and returns up to topK nearest records, closest first.
// topK above the configured maximum is capped rather than rejected.
func (s *Service) Search(
	ctx context.Context, collectionName, queryText string, topK int,
) ([]domsearch.Hit, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, fmt.Errorf("query text: %w", domain.ErrEmptyInput)
	}
	if topK < 1 {
		return nil, fmt.Errorf("top_k must be at least 1, got %d: %w", topK, domain.ErrInvalidInput)
	}
	if topK > s.maxTopK {
		topK = s.maxTopK
	}

	col, err := s.colls.Get(ctx, collectionName)
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}

	embResult, err := s.embed.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if err := col.CheckVector(embResult.Embedding); err != nil {
		return nil, err
	}

	hits, err := s.repo.SearchKNN(ctx, collectionName, embResult.Embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return hits, nil
}
