package app

import (
	"context"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecdesk/internal/config"
	"github.com/kailas-cloud/vecdesk/internal/db/memory"
	"github.com/kailas-cloud/vecdesk/internal/domain"
	domcol "github.com/kailas-cloud/vecdesk/internal/domain/collection"
	domrec "github.com/kailas-cloud/vecdesk/internal/domain/record"
	"github.com/kailas-cloud/vecdesk/internal/domain/value"
)

// recordingProvider embeds by word length and records every text it receives.
type recordingProvider struct {
	mu    sync.Mutex
	texts []string
}

func (p *recordingProvider) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	p.mu.Lock()
	p.texts = append(p.texts, text)
	p.mu.Unlock()
	return domain.EmbeddingResult{Embedding: []float32{float32(len(text)), 1, 0}}, nil
}

func (p *recordingProvider) HealthCheck(_ context.Context) error { return nil }

func (p *recordingProvider) seen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.texts...)
}

func testConfig(t *testing.T, extra string) config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(`
http:
  port: 8080
database:
  driver: memory
embedding:
  dimensions: 3
` + extra))
	require.NoError(t, err)
	return cfg
}

func textInput(id, text string) domrec.Input {
	return domrec.Input{ID: id, Fields: map[string]value.Value{"text": value.String(text)}}
}

func TestBuild_InstructionPrefixes(t *testing.T) {
	provider := &recordingProvider{}
	cfg := testConfig(t, `
  document_instruction: "search_document: "
  query_instruction: "search_query: "
`)
	a := Build(cfg, memory.NewStore(), provider, zap.NewNop())
	ctx := context.Background()

	_, err := a.Collections.Create(ctx, "docs", domcol.Schema{})
	require.NoError(t, err)

	_, err = a.Ingest.InsertOne(ctx, "docs", textInput("a", "  hello   world "))
	require.NoError(t, err)

	_, err = a.Query.Search(ctx, "docs", "hello", 5)
	require.NoError(t, err)

	assert.Equal(t, []string{"search_document: hello world", "search_query: hello"}, provider.seen())
}

func TestBuild_NoInstructionsByDefault(t *testing.T) {
	provider := &recordingProvider{}
	a := Build(testConfig(t, ""), memory.NewStore(), provider, zap.NewNop())
	ctx := context.Background()

	_, err := a.Collections.Create(ctx, "docs", domcol.Schema{})
	require.NoError(t, err)
	_, err = a.Ingest.InsertOne(ctx, "docs", textInput("a", "hello"))
	require.NoError(t, err)
	_, err = a.Query.Search(ctx, "docs", "hello", 5)
	require.NoError(t, err)

	assert.Equal(t, []string{"hello", "hello"}, provider.seen())
}

// hashProvider maps each text to a deterministic vector derived from its FNV hash.
type hashProvider struct{}

func (hashProvider) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	sum := h.Sum64()
	vec := make([]float32, 3)
	for i := range vec {
		vec[i] = float32((sum>>(uint(i)*16))&0xffff) + 1
	}
	return domain.EmbeddingResult{Embedding: vec}, nil
}

func (hashProvider) HealthCheck(_ context.Context) error { return nil }

func TestBuild_InsertThenSearchSameText(t *testing.T) {
	a := Build(testConfig(t, ""), memory.NewStore(), hashProvider{}, zap.NewNop())
	ctx := context.Background()

	_, err := a.Collections.Create(ctx, "docs", domcol.Schema{})
	require.NoError(t, err)
	for id, text := range map[string]string{
		"fox":  "the quick brown fox",
		"dog":  "a lazy dog sleeps",
		"bird": "birds fly south",
	} {
		_, err = a.Ingest.InsertOne(ctx, "docs", textInput(id, text))
		require.NoError(t, err)
	}

	hits, err := a.Query.Search(ctx, "docs", "the quick brown fox", 3)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "fox", hits[0].ID())
	assert.InDelta(t, 0, hits[0].Distance(), 1e-6)
}

func TestBuild_CacheSkipsProvider(t *testing.T) {
	provider := &recordingProvider{}
	cfg := testConfig(t, `
  cache:
    enabled: true
`)
	a := Build(cfg, memory.NewStore(), provider, zap.NewNop())
	ctx := context.Background()

	_, err := a.Collections.Create(ctx, "docs", domcol.Schema{})
	require.NoError(t, err)

	res, err := a.Ingest.InsertBulk(ctx, "docs", []domrec.Input{textInput("a", "same"), textInput("b", "other")})
	require.NoError(t, err)
	require.Len(t, res.Succeeded, 2)

	_, err = a.Ingest.InsertOne(ctx, "docs", textInput("c", "same"))
	require.NoError(t, err)

	assert.Len(t, provider.seen(), 2, "repeated text should be served from cache")
}

func TestBuild_StoreSettings(t *testing.T) {
	cfg := testConfig(t, `
store:
  idempotent_drop: true
  text_field: body
`)
	a := Build(cfg, memory.NewStore(), &recordingProvider{}, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, a.Collections.Drop(ctx, "missing"))

	col, err := a.Collections.Create(ctx, "notes", domcol.Schema{})
	require.NoError(t, err)
	assert.Equal(t, "body", col.TextField())
	assert.Equal(t, 3, col.VectorDim())
}

func TestHandler_ServesAPI(t *testing.T) {
	a := Build(testConfig(t, ""), memory.NewStore(), &recordingProvider{}, zap.NewNop())
	h := a.Handler()

	req := httptest.NewRequest("POST", "/api/v1/collections", strings.NewReader(`{"name":"docs"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusCreated, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/health", http.NoBody))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
}

func TestOpenStore(t *testing.T) {
	store, err := OpenStore(context.Background(), config.DatabaseConfig{Driver: DriverMemory})
	require.NoError(t, err)
	store.Close()

	_, err = OpenStore(context.Background(), config.DatabaseConfig{Driver: "sqlite"})
	require.ErrorContains(t, err, "unknown database driver")

	_, err = OpenStore(context.Background(), config.DatabaseConfig{Driver: DriverRedis})
	require.Error(t, err)
}

func TestServe_StopsOnCancel(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.HTTP.Port = 0
	a := Build(cfg, memory.NewStore(), &recordingProvider{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, a.Serve(ctx))
}
