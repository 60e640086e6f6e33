package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecdesk/internal/domain"
	domcol "github.com/kailas-cloud/vecdesk/internal/domain/collection"
	"github.com/kailas-cloud/vecdesk/internal/domain/collection/field"
	domrec "github.com/kailas-cloud/vecdesk/internal/domain/record"
	"github.com/kailas-cloud/vecdesk/internal/domain/value"
)

// --- Fakes ---

type fakeColls struct {
	cols map[string]domcol.Collection
}

func (f *fakeColls) Get(_ context.Context, name string) (domcol.Collection, error) {
	col, ok := f.cols[name]
	if !ok {
		return domcol.Collection{}, domain.ErrCollectionNotFound
	}
	return col, nil
}

type fakeRecords struct {
	mu      sync.Mutex
	stored  map[string]domrec.Record
	failIDs map[string]error
}

func (f *fakeRecords) Upsert(_ context.Context, _ string, rec domrec.Record) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failIDs[rec.ID()]; err != nil {
		return "", err
	}
	if f.stored == nil {
		f.stored = map[string]domrec.Record{}
	}
	f.stored[rec.ID()] = rec
	return rec.ID(), nil
}

// fakeEmbedder maps text to a fixed vector and tracks concurrency.
type fakeEmbedder struct {
	dim      int
	delay    time.Duration
	failText map[string]error
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return domain.EmbeddingResult{}, ctx.Err()
		}
	}
	if err := f.failText[text]; err != nil {
		return domain.EmbeddingResult{}, err
	}
	vec := make([]float32, f.dim)
	vec[0] = float32(len(text))
	return domain.EmbeddingResult{Embedding: vec}, nil
}

func newDocs(t *testing.T, strict bool) domcol.Collection {
	t.Helper()
	year, err := field.New("year", value.KindNumber)
	require.NoError(t, err)
	col, err := domcol.New("docs", domcol.Schema{Fields: []field.Field{year}, Strict: strict}, 3)
	require.NoError(t, err)
	return col
}

func newService(t *testing.T, emb *fakeEmbedder, cfg Config) (*Service, *fakeRecords) {
	t.Helper()
	recs := &fakeRecords{}
	colls := &fakeColls{cols: map[string]domcol.Collection{"docs": newDocs(t, false)}}
	return New(colls, recs, emb, cfg, zap.NewNop()), recs
}

func textInput(id, text string) domrec.Input {
	return domrec.Input{ID: id, Fields: map[string]value.Value{"text": value.String(text)}}
}

// --- InsertOne ---

func TestInsertOne_EmbedsAndStores(t *testing.T) {
	svc, recs := newService(t, &fakeEmbedder{dim: 3}, Config{})

	id, err := svc.InsertOne(context.Background(), "docs", textInput("a", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "a", id)

	stored := recs.stored["a"]
	require.True(t, stored.HasVector())
	assert.Equal(t, float32(5), stored.Vector()[0])
}

func TestInsertOne_AssignsID(t *testing.T) {
	svc, recs := newService(t, &fakeEmbedder{dim: 3}, Config{})

	id, err := svc.InsertOne(context.Background(), "docs", textInput("", "hello"))
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Contains(t, recs.stored, id)
}

func TestInsertOne_SuppliedVectorSkipsEmbedding(t *testing.T) {
	emb := &fakeEmbedder{dim: 3}
	svc, _ := newService(t, emb, Config{})

	in := domrec.Input{ID: "v", Vector: []float32{1, 2, 3}}
	_, err := svc.InsertOne(context.Background(), "docs", in)
	require.NoError(t, err)
	assert.Equal(t, int32(0), emb.calls.Load())
}

func TestInsertOne_Errors(t *testing.T) {
	tests := []struct {
		name       string
		collection string
		in         domrec.Input
		want       error
	}{
		{"missing collection", "ghost", textInput("a", "x"), domain.ErrCollectionNotFound},
		{"blank text", "docs", textInput("a", "   "), domain.ErrEmptyInput},
		{"no text field", "docs", domrec.Input{ID: "a"}, domain.ErrEmptyInput},
		{"bad id", "docs", textInput("bad id!", "x"), domain.ErrInvalidInput},
		{"wrong kind", "docs", domrec.Input{ID: "a", Fields: map[string]value.Value{
			"text": value.String("x"), "year": value.String("2020"),
		}}, domain.ErrSchemaMismatch},
		{"wrong vector dim", "docs", domrec.Input{ID: "a", Vector: []float32{1}}, domain.ErrSchemaMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, recs := newService(t, &fakeEmbedder{dim: 3}, Config{})
			_, err := svc.InsertOne(context.Background(), tt.collection, tt.in)
			require.ErrorIs(t, err, tt.want)
			assert.Empty(t, recs.stored)
		})
	}
}

func TestInsertOne_EmbeddingFailure(t *testing.T) {
	emb := &fakeEmbedder{dim: 3, failText: map[string]error{"x": domain.ErrEmbeddingService}}
	svc, _ := newService(t, emb, Config{})

	_, err := svc.InsertOne(context.Background(), "docs", textInput("a", "x"))
	require.ErrorIs(t, err, domain.ErrEmbeddingService)
	assert.Contains(t, err.Error(), `"docs"`)
}

func TestInsertOne_EmbeddingDimensionMismatch(t *testing.T) {
	svc, _ := newService(t, &fakeEmbedder{dim: 4}, Config{})

	_, err := svc.InsertOne(context.Background(), "docs", textInput("a", "x"))
	require.ErrorIs(t, err, domain.ErrSchemaMismatch)
}

// --- InsertBulk ---

func TestInsertBulk_AllStored(t *testing.T) {
	svc, recs := newService(t, &fakeEmbedder{dim: 3}, Config{Concurrency: 3})

	inputs := make([]domrec.Input, 10)
	for i := range inputs {
		inputs[i] = textInput(fmt.Sprintf("r%d", i), fmt.Sprintf("text %d", i))
	}

	res, err := svc.InsertBulk(context.Background(), "docs", inputs)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Total)
	assert.Len(t, res.Succeeded, 10)
	assert.Empty(t, res.Failed)
	assert.True(t, res.Complete())
	assert.NoError(t, res.Err())
	assert.Len(t, recs.stored, 10)

	for i, it := range res.Succeeded {
		assert.Equal(t, i, it.Index())
		assert.Equal(t, fmt.Sprintf("r%d", i), it.ID())
	}
}

func TestInsertBulk_BlankRecordIsolated(t *testing.T) {
	svc, recs := newService(t, &fakeEmbedder{dim: 3}, Config{Concurrency: 2})

	const n, k = 6, 3
	inputs := make([]domrec.Input, n)
	for i := range inputs {
		inputs[i] = textInput(fmt.Sprintf("r%d", i), "some text")
	}
	inputs[k] = textInput("blank", "  \t ")

	res, err := svc.InsertBulk(context.Background(), "docs", inputs)
	require.NoError(t, err)
	assert.Len(t, res.Succeeded, n-1)
	require.Len(t, res.Failed, 1)

	failed := res.Failed[0]
	assert.Equal(t, k, failed.Index())
	assert.ErrorIs(t, failed.Err(), domain.ErrEmptyInput)

	var itemErr *domain.ItemError
	require.ErrorAs(t, failed.Err(), &itemErr)
	assert.Equal(t, "docs", itemErr.Collection)
	assert.Equal(t, k, itemErr.Index)

	assert.ErrorIs(t, res.Err(), domain.ErrPartialBatchFailure)
	assert.NotContains(t, recs.stored, "blank")
}

func TestInsertBulk_StoreAndEmbedFailures(t *testing.T) {
	emb := &fakeEmbedder{dim: 3, failText: map[string]error{"bad": domain.ErrEmbeddingService}}
	svc, recs := newService(t, emb, Config{Concurrency: 4})
	recs.failIDs = map[string]error{"r2": errors.New("write failed")}

	inputs := []domrec.Input{
		textInput("r0", "ok"),
		textInput("r1", "bad"),
		textInput("r2", "ok"),
		textInput("r3", "ok"),
	}

	res, err := svc.InsertBulk(context.Background(), "docs", inputs)
	require.NoError(t, err)
	require.Len(t, res.Failed, 2)
	assert.Equal(t, 1, res.Failed[0].Index())
	assert.ErrorIs(t, res.Failed[0].Err(), domain.ErrEmbeddingService)
	assert.Equal(t, 2, res.Failed[1].Index())
	assert.Equal(t, "r2", res.Failed[1].ID())
	assert.Len(t, res.Succeeded, 2)
}

func TestInsertBulk_BoundedConcurrency(t *testing.T) {
	emb := &fakeEmbedder{dim: 3, delay: 5 * time.Millisecond}
	svc, _ := newService(t, emb, Config{Concurrency: 3})

	inputs := make([]domrec.Input, 20)
	for i := range inputs {
		inputs[i] = textInput(fmt.Sprintf("r%d", i), "text")
	}

	res, err := svc.InsertBulk(context.Background(), "docs", inputs)
	require.NoError(t, err)
	assert.Len(t, res.Succeeded, 20)
	assert.LessOrEqual(t, emb.peak.Load(), int32(3))
}

func TestInsertBulk_Cancelled(t *testing.T) {
	emb := &fakeEmbedder{dim: 3, delay: 20 * time.Millisecond}
	svc, _ := newService(t, emb, Config{Concurrency: 1})

	inputs := make([]domrec.Input, 10)
	for i := range inputs {
		inputs[i] = textInput(fmt.Sprintf("r%d", i), "text")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	res, err := svc.InsertBulk(ctx, "docs", inputs)
	require.NoError(t, err)
	assert.True(t, res.Complete())
	require.NotEmpty(t, res.Failed)

	last := res.Failed[len(res.Failed)-1]
	assert.Equal(t, 9, last.Index())
	assert.ErrorIs(t, last.Err(), context.DeadlineExceeded)
}

func TestInsertBulk_WholeCallErrors(t *testing.T) {
	svc, _ := newService(t, &fakeEmbedder{dim: 3}, Config{MaxBatchSize: 2})

	_, err := svc.InsertBulk(context.Background(), "docs", make([]domrec.Input, 3))
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.InsertBulk(context.Background(), "ghost", []domrec.Input{textInput("a", "x")})
	require.ErrorIs(t, err, domain.ErrCollectionNotFound)
}

func TestInsertBulk_Empty(t *testing.T) {
	svc, _ := newService(t, &fakeEmbedder{dim: 3}, Config{})

	res, err := svc.InsertBulk(context.Background(), "docs", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total)
	assert.Empty(t, res.Succeeded)
	assert.Empty(t, res.Failed)
}

func TestInsertBulk_StrictSchema(t *testing.T) {
	recs := &fakeRecords{}
	colls := &fakeColls{cols: map[string]domcol.Collection{"docs": newDocs(t, true)}}
	svc := New(colls, recs, &fakeEmbedder{dim: 3}, Config{}, zap.NewNop())

	inputs := []domrec.Input{
		textInput("ok", "x"),
		{ID: "extra", Fields: map[string]value.Value{"text": value.String("x"), "color": value.String("red")}},
	}

	res, err := svc.InsertBulk(context.Background(), "docs", inputs)
	require.NoError(t, err)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "extra", res.Failed[0].ID())
	assert.ErrorIs(t, res.Failed[0].Err(), domain.ErrSchemaMismatch)
}
