package collection

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecdesk/internal/domain"
	domcol "github.com/kailas-cloud/vecdesk/internal/domain/collection"
	domrec "github.com/kailas-cloud/vecdesk/internal/domain/record"
)

// Page size defaults for FetchOrdered.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Config tunes the collection service.
type Config struct {
	VectorDim       int
	IdempotentDrop  bool // dropping a missing collection succeeds
	DefaultPageSize int
	MaxPageSize     int

	// DefaultTextField is embedded when a schema names no text field.
	DefaultTextField string
}

// Service handles collection lifecycle and record reads.
type Service struct {
	repo   Repository
	recs   RecordReader
	cfg    Config
	logger *zap.Logger
}

// New creates a collection service.
func New(repo Repository, recs RecordReader, cfg Config, logger *zap.Logger) *Service {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = DefaultPageSize
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = MaxPageSize
	}
	return &Service{repo: repo, recs: recs, cfg: cfg, logger: logger}
}

// DefaultPageSize is the page size FetchOrdered uses when limit is 0.
func (s *Service) DefaultPageSize() int { return s.cfg.DefaultPageSize }

// Create validates and stores a new collection.
func (s *Service) Create(ctx context.Context, name string, schema domcol.Schema) (domcol.Collection, error) {
	if schema.TextField == "" {
		schema.TextField = s.cfg.DefaultTextField
	}
	col, err := domcol.New(name, schema, s.cfg.VectorDim)
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("validate collection: %w: %w", domain.ErrInvalidInput, err)
	}

	if err := s.repo.Create(ctx, col); err != nil {
		return domcol.Collection{}, fmt.Errorf("create collection: %w", err)
	}

	s.logger.Info("Collection created",
		zap.String("collection", name),
		zap.Int("fields", len(col.Fields())),
		zap.Int("vector_dim", col.VectorDim()),
	)
	return col, nil
}

// Get retrieves a collection by name.
func (s *Service) Get(ctx context.Context, name string) (domcol.Collection, error) {
	col, err := s.repo.Get(ctx, name)
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("get collection: %w", err)
	}
	return col, nil
}

// List returns all collections, oldest first.
func (s *Service) List(ctx context.Context) ([]domcol.Collection, error) {
	cols, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return cols, nil
}

// Drop removes a collection with its records and index.
// A missing collection is an error unless IdempotentDrop is set.
func (s *Service) Drop(ctx context.Context, name string) error {
	err := s.repo.Delete(ctx, name)
	if errors.Is(err, domain.ErrCollectionNotFound) && s.cfg.IdempotentDrop {
		s.logger.Info("Collection already absent", zap.String("collection", name))
		return nil
	}
	if err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	s.logger.Info("Collection dropped", zap.String("collection", name))
	return nil
}

// GetRecord returns a single record of a collection.
func (s *Service) GetRecord(ctx context.Context, name, id string) (domrec.Record, error) {
	if _, err := s.Get(ctx, name); err != nil {
		return domrec.Record{}, err
	}
	rec, err := s.recs.Get(ctx, name, id)
	if err != nil {
		return domrec.Record{}, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// Count returns the number of records in a collection.
func (s *Service) Count(ctx context.Context, name string) (int, error) {
	if _, err := s.Get(ctx, name); err != nil {
		return 0, err
	}
	n, err := s.recs.Count(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// FetchOrdered returns a page of records sorted by orderField, then by record ID.
// limit 0 selects the default page size; limit above the maximum or negative
// values are rejected with ErrInvalidInput.
func (s *Service) FetchOrdered(
	ctx context.Context, name, orderField string, limit, offset int,
) ([]domrec.Record, error) {
	if limit == 0 {
		limit = s.cfg.DefaultPageSize
	}
	if limit < 1 || limit > s.cfg.MaxPageSize {
		return nil, fmt.Errorf("limit must be between 1 and %d, got %d: %w",
			s.cfg.MaxPageSize, limit, domain.ErrInvalidInput)
	}
	if offset < 0 {
		return nil, fmt.Errorf("offset must be non-negative, got %d: %w", offset, domain.ErrInvalidInput)
	}

	if _, err := s.Get(ctx, name); err != nil {
		return nil, err
	}

	recs, err := s.recs.FetchOrdered(ctx, name, orderField, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("fetch records: %w", err)
	}
	return recs, nil
}
