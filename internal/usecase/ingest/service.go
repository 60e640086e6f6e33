package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/vecdesk/internal/domain"
	dombatch "github.com/kailas-cloud/vecdesk/internal/domain/batch"
	domcol "github.com/kailas-cloud/vecdesk/internal/domain/collection"
	domrec "github.com/kailas-cloud/vecdesk/internal/domain/record"
	"github.com/kailas-cloud/vecdesk/internal/metrics"
)

// Defaults for zero Config values.
const (
	DefaultConcurrency  = 4
	DefaultMaxBatchSize = 1000
)

// Config tunes bulk ingestion.
type Config struct {
	Concurrency  int // parallel records in a bulk job
	MaxBatchSize int // records per bulk call
}

// Service stores records, deriving their vectors through the embedder.
type Service struct {
	colls  CollectionReader
	recs   RecordUpserter
	embed  Embedder
	cfg    Config
	logger *zap.Logger
}

// New creates an ingest service.
func New(colls CollectionReader, recs RecordUpserter, embed Embedder, cfg Config, logger *zap.Logger) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	return &Service{colls: colls, recs: recs, embed: embed, cfg: cfg, logger: logger}
}

// InsertOne validates, embeds and stores a single record, failing on the first error.
func (s *Service) InsertOne(ctx context.Context, collectionName string, in domrec.Input) (string, error) {
	col, err := s.colls.Get(ctx, collectionName)
	if err != nil {
		return "", fmt.Errorf("get collection: %w", err)
	}

	id, err := s.insert(ctx, col, in)
	if err != nil {
		metrics.IngestRecordsTotal.WithLabelValues("one", "failed").Inc()
		return "", fmt.Errorf("insert into %q: %w", collectionName, err)
	}
	metrics.IngestRecordsTotal.WithLabelValues("one", "stored").Inc()
	return id, nil
}

// InsertBulk stores every input independently with bounded parallelism.
// Per-record failures land in the Result; the call itself fails only when the
// collection is missing or the batch is too large.
// Once ctx is done, records that have not started fail with the context error.
func (s *Service) InsertBulk(
	ctx context.Context, collectionName string, inputs []domrec.Input,
) (dombatch.Result, error) {
	if len(inputs) > s.cfg.MaxBatchSize {
		return dombatch.Result{}, fmt.Errorf("batch of %d records exceeds %d: %w",
			len(inputs), s.cfg.MaxBatchSize, domain.ErrInvalidInput)
	}

	col, err := s.colls.Get(ctx, collectionName)
	if err != nil {
		return dombatch.Result{}, fmt.Errorf("get collection: %w", err)
	}

	start := time.Now()
	c := &collector{items: make([]dombatch.Item, 0, len(inputs))}

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)

	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			c.fail(collectionName, i, in.ID, err)
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				c.fail(collectionName, i, in.ID, err)
				return nil
			}
			id, err := s.insert(ctx, col, in)
			if err != nil {
				c.fail(collectionName, i, id, err)
				return nil
			}
			c.add(dombatch.Stored(i, id))
			return nil
		})
	}
	_ = g.Wait() // workers report through the collector

	res := dombatch.NewResult(len(inputs), c.items)
	s.observeBulk(collectionName, res, time.Since(start))
	return res, nil
}

// insert builds the record, derives its vector when absent, and upserts it.
// The returned ID is set whenever the record could be built.
func (s *Service) insert(ctx context.Context, col domcol.Collection, in domrec.Input) (string, error) {
	rec, err := domrec.New(in)
	if err != nil {
		return in.ID, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if err := col.Validate(rec); err != nil {
		return rec.ID(), err
	}

	if !rec.HasVector() {
		text := col.TextOf(rec)
		if strings.TrimSpace(text) == "" {
			return rec.ID(), fmt.Errorf("text field %q is blank: %w", col.TextField(), domain.ErrEmptyInput)
		}
		res, err := s.embed.Embed(ctx, text)
		if err != nil {
			return rec.ID(), fmt.Errorf("embed: %w", err)
		}
		if err := col.CheckVector(res.Embedding); err != nil {
			return rec.ID(), err
		}
		rec = rec.WithVector(res.Embedding)
	}

	id, err := s.recs.Upsert(ctx, col.Name(), rec)
	if err != nil {
		return rec.ID(), fmt.Errorf("upsert: %w", err)
	}
	return id, nil
}

func (s *Service) observeBulk(collectionName string, res dombatch.Result, took time.Duration) {
	metrics.IngestRecordsTotal.WithLabelValues("bulk", "stored").Add(float64(len(res.Succeeded)))
	metrics.IngestRecordsTotal.WithLabelValues("bulk", "failed").Add(float64(len(res.Failed)))
	metrics.IngestBulkDuration.Observe(took.Seconds())
	metrics.IngestBulkSize.Observe(float64(res.Total))

	fields := []zap.Field{
		zap.String("collection", collectionName),
		zap.Int("total", res.Total),
		zap.Int("succeeded", len(res.Succeeded)),
		zap.Int("failed", len(res.Failed)),
		zap.Duration("duration", took),
	}
	if len(res.Failed) > 0 {
		fields = append(fields, zap.NamedError("first_error", res.Failed[0].Err()))
		s.logger.Warn("Bulk ingest finished with failures", fields...)
		return
	}
	s.logger.Info("Bulk ingest finished", fields...)
}

// collector gathers item outcomes from concurrent workers.
type collector struct {
	mu    sync.Mutex
	items []dombatch.Item
}

func (c *collector) add(it dombatch.Item) {
	c.mu.Lock()
	c.items = append(c.items, it)
	c.mu.Unlock()
}

func (c *collector) fail(collectionName string, index int, id string, err error) {
	c.add(dombatch.Failed(index, id, domain.NewItemError(collectionName, index, id, err)))
}
