package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecdesk/internal/app"
	"github.com/kailas-cloud/vecdesk/internal/config"
	"github.com/kailas-cloud/vecdesk/internal/db/memory"
	"github.com/kailas-cloud/vecdesk/internal/domain"
	dombatch "github.com/kailas-cloud/vecdesk/internal/domain/batch"
	"github.com/kailas-cloud/vecdesk/internal/transport/payload"
)

// tableProvider returns a fixed vector per text.
type tableProvider struct{}

var vectors = map[string][]float32{
	"cat":    {0.9, 0.1, 0},
	"dog":    {0.2, 0.1, 0.9},
	"car":    {0.5, 0.5, 0},
	"kitten": {1, 0, 0},
}

func (tableProvider) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	vec, ok := vectors[text]
	if !ok {
		return domain.EmbeddingResult{}, errors.New("unknown text")
	}
	return domain.EmbeddingResult{Embedding: vec}, nil
}

func (tableProvider) HealthCheck(_ context.Context) error { return nil }

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	cfg, err := config.Parse([]byte(`
http:
  port: 8080
database:
  driver: memory
embedding:
  dimensions: 3
  retry:
    max_attempts: 1
ingest:
  max_batch_size: 2
`))
	require.NoError(t, err)
	return app.Build(cfg, memory.NewStore(), tableProvider{}, zap.NewNop())
}

func staticOpener(a *app.App) Opener {
	return func(context.Context, string, string) (*app.App, error) { return a, nil }
}

func run(t *testing.T, open Opener, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(open)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCollections_CreateListGetDrop(t *testing.T) {
	open := staticOpener(newTestApp(t))

	out, err := run(t, open, "collections", "create", "docs", "--field", "text:string", "--field", "year:number")
	require.NoError(t, err)
	var col payload.Collection
	require.NoError(t, json.Unmarshal([]byte(out), &col))
	assert.Equal(t, "docs", col.Name)
	assert.Len(t, col.Fields, 2)

	_, err = run(t, open, "collections", "create", "docs")
	assert.ErrorIs(t, err, domain.ErrCollectionExists)

	out, err = run(t, open, "collections", "list")
	require.NoError(t, err)
	var cols []payload.Collection
	require.NoError(t, json.Unmarshal([]byte(out), &cols))
	require.Len(t, cols, 1)

	out, err = run(t, open, "collections", "get", "docs")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &col))
	require.NotNil(t, col.RecordCount)
	assert.Equal(t, 0, *col.RecordCount)

	_, err = run(t, open, "collections", "drop", "docs")
	require.NoError(t, err)
	_, err = run(t, open, "collections", "drop", "docs")
	assert.ErrorIs(t, err, domain.ErrCollectionNotFound)
}

func TestCollectionsCreate_BadField(t *testing.T) {
	open := staticOpener(newTestApp(t))

	_, err := run(t, open, "collections", "create", "docs", "--field", "text")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = run(t, open, "collections", "create", "docs", "--field", "text:blob")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestInsertAndSearch(t *testing.T) {
	open := staticOpener(newTestApp(t))
	_, err := run(t, open, "collections", "create", "docs")
	require.NoError(t, err)

	for _, id := range []string{"cat", "dog", "car"} {
		out, err := run(t, open, "insert", "docs", "--data", `{"_id":"`+id+`","text":"`+id+`"}`)
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"`+id+`"}`, out)
	}

	out, err := run(t, open, "search", "docs", "kitten", "--top-k", "2")
	require.NoError(t, err)
	var hits []payload.SearchHit
	require.NoError(t, json.Unmarshal([]byte(out), &hits))
	require.Len(t, hits, 2)
	assert.Equal(t, "cat", hits[0].ID)
	assert.Equal(t, "car", hits[1].ID)

	_, err = run(t, open, "search", "docs", "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
}

func TestInsert_Errors(t *testing.T) {
	open := staticOpener(newTestApp(t))
	_, err := run(t, open, "collections", "create", "docs")
	require.NoError(t, err)

	_, err = run(t, open, "insert", "docs")
	assert.ErrorContains(t, err, "required flag")

	_, err = run(t, open, "insert", "docs", "--data", `{"text":["a"]}`)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = run(t, open, "insert", "docs", "--data", `{"text":"unknown"}`)
	assert.ErrorIs(t, err, domain.ErrEmbeddingService)
}

func TestInsert_FromStdin(t *testing.T) {
	open := staticOpener(newTestApp(t))
	_, err := run(t, open, "collections", "create", "docs")
	require.NoError(t, err)

	root := NewRootCommand(open)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetIn(bytes.NewBufferString(`{"_id":"x","text":"dog"}`))
	root.SetArgs([]string{"insert", "docs", "--data", "-"})
	require.NoError(t, root.Execute())
	assert.JSONEq(t, `{"id":"x"}`, out.String())
}

func TestLoad_PartialFailureAcrossBatches(t *testing.T) {
	open := staticOpener(newTestApp(t))
	_, err := run(t, open, "collections", "create", "docs")
	require.NoError(t, err)

	// max_batch_size is 2, so this file spans two bulk calls.
	path := writeFile(t, `[
		{"_id":"a","text":"cat"},
		{"_id":"b","text":"dog"},
		{"_id":"c","text":"  "},
		{"_id":"d","text":"car"}
	]`)

	out, err := run(t, open, "load", "docs", path)
	require.ErrorIs(t, err, domain.ErrPartialBatchFailure)
	var pf *dombatch.PartialFailure
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, 1, pf.Failed)

	var report loadReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 4, report.Total)
	require.Len(t, report.Succeeded, 3)
	assert.Equal(t, []int{0, 1, 3}, []int{report.Succeeded[0].Index, report.Succeeded[1].Index, report.Succeeded[2].Index})
	require.Len(t, report.Failed, 1)
	assert.Equal(t, 2, report.Failed[0].Index)
	assert.Equal(t, "c", report.Failed[0].ID)
	assert.Contains(t, report.Failed[0].Error, "empty input")

	out, err = run(t, open, "fetch", "docs", "--order-by", "text")
	require.NoError(t, err)
	var recs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 3)
	assert.Equal(t, []any{"car", "cat", "dog"}, []any{recs[0]["text"], recs[1]["text"], recs[2]["text"]})
}

func TestLoadInBatches_FileWideItemErrors(t *testing.T) {
	a := newTestApp(t)
	_, err := run(t, staticOpener(a), "collections", "create", "docs")
	require.NoError(t, err)

	inputs, err := payload.DecodeMany([]byte(`[
		{"_id":"a","text":"cat"},
		{"_id":"b","text":"dog"},
		{"_id":"c","text":"car"},
		{"_id":"d","text":" "}
	]`))
	require.NoError(t, err)

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	res, err := loadInBatches(cmd, a, "docs", inputs, 2)
	require.NoError(t, err)

	require.Len(t, res.Failed, 1)
	assert.Equal(t, 3, res.Failed[0].Index())
	var ie *domain.ItemError
	require.ErrorAs(t, res.Failed[0].Err(), &ie)
	assert.Equal(t, 3, ie.Index)
	assert.Equal(t, "d", ie.ID)
	assert.Equal(t, "docs", ie.Collection)
	assert.ErrorIs(t, res.Failed[0].Err(), domain.ErrEmptyInput)
}

func TestRebaseItemError_PassesOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	assert.Same(t, boom, rebaseItemError("docs", 4, boom))
}

func TestLoad_SingleObjectAndErrors(t *testing.T) {
	open := staticOpener(newTestApp(t))
	_, err := run(t, open, "collections", "create", "docs")
	require.NoError(t, err)

	out, err := run(t, open, "load", "docs", writeFile(t, `{"_id":"a","text":"cat"}`))
	require.NoError(t, err)
	assert.Contains(t, out, `"total": 1`)

	_, err = run(t, open, "load", "docs", filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = run(t, open, "load", "docs", writeFile(t, `[{"a":{"b":1}}]`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = run(t, open, "load", "nope", writeFile(t, `[{"text":"cat"}]`))
	assert.ErrorIs(t, err, domain.ErrCollectionNotFound)
}

func TestFetch_Paging(t *testing.T) {
	open := staticOpener(newTestApp(t))
	_, err := run(t, open, "collections", "create", "docs")
	require.NoError(t, err)
	_, err = run(t, open, "load", "docs", writeFile(t, `[{"_id":"a","text":"cat"},{"_id":"b","text":"dog"}]`))
	require.NoError(t, err)

	out, err := run(t, open, "fetch", "docs", "--limit", "1", "--offset", "1", "--with-vector")
	require.NoError(t, err)
	var recs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "b", recs[0]["_id"])
	assert.Contains(t, recs[0], "_vector")

	_, err = run(t, open, "fetch", "docs", "--limit", "1000")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestOpenerError(t *testing.T) {
	boom := errors.New("no database")
	open := func(context.Context, string, string) (*app.App, error) { return nil, boom }

	_, err := run(t, open, "collections", "list")
	assert.ErrorIs(t, err, boom)

	_, err = run(t, open, "serve")
	assert.ErrorIs(t, err, boom)
}

func TestVersion(t *testing.T) {
	out, err := run(t, nil, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "vecdesk version dev")
}

func TestArgs(t *testing.T) {
	open := staticOpener(newTestApp(t))

	_, err := run(t, open, "search", "docs")
	assert.ErrorContains(t, err, "accepts 2 arg(s)")

	_, err = run(t, open, "collections", "get")
	assert.ErrorContains(t, err, "accepts 1 arg(s)")
}

func TestDefaultOpener_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: 9090
database:
  driver: memory
logging:
  level: error
`), 0o600))

	a, err := DefaultOpener(context.Background(), "local", path)
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, 9090, a.Config.HTTP.Port)
	assert.Equal(t, "memory", a.Config.Database.Driver)

	_, err = DefaultOpener(context.Background(), "local", filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}

func TestRootFlags(t *testing.T) {
	root := NewRootCommand(nil)
	envFlag := root.PersistentFlags().Lookup("env")
	require.NotNil(t, envFlag)
	assert.Equal(t, config.GetEnv(), envFlag.DefValue)
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}
