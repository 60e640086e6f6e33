package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/vecdesk/internal/app"
	"github.com/kailas-cloud/vecdesk/internal/domain"
	dombatch "github.com/kailas-cloud/vecdesk/internal/domain/batch"
	domrec "github.com/kailas-cloud/vecdesk/internal/domain/record"
	"github.com/kailas-cloud/vecdesk/internal/transport/payload"
)

type loadItem struct {
	Index int    `json:"index"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

type loadReport struct {
	Total     int        `json:"total"`
	Succeeded []loadItem `json:"succeeded"`
	Failed    []loadItem `json:"failed"`
}

func newInsertCmd(o *rootOptions) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "insert <collection>",
		Short: "Insert one record",
		Long: `Inserts one record given as a flat JSON object. "_id" sets the record ID
and "_vector" supplies a precomputed embedding. Use --data - to read stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := []byte(data)
			if data == "-" {
				var err error
				if raw, err = io.ReadAll(cmd.InOrStdin()); err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
			}
			in, err := payload.DecodeOne(raw)
			if err != nil {
				return err //nolint:wrapcheck // carries the offending key
			}
			return o.withApp(cmd, func(a *app.App) error {
				id, err := a.Ingest.InsertOne(cmd.Context(), args[0], in)
				if err != nil {
					return err //nolint:wrapcheck // service errors are already wrapped
				}
				return printJSON(cmd, map[string]string{"id": id})
			})
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "record as a JSON object")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func newLoadCmd(o *rootOptions) *cobra.Command {
	var batchSize int
	cmd := &cobra.Command{
		Use:   "load <collection> <file.json>",
		Short: "Bulk insert records from a JSON file",
		Long: `Loads a JSON array of records (or a single object) into a collection.
Records are sent in batches; a failing record does not stop the others.
Exits non-zero when any record failed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(filepath.Clean(args[1]))
			if err != nil {
				return fmt.Errorf("read %s: %w", args[1], err)
			}
			inputs, err := payload.DecodeMany(raw)
			if err != nil {
				return err //nolint:wrapcheck // carries the record position
			}
			return o.withApp(cmd, func(a *app.App) error {
				size := batchSize
				if size <= 0 || size > a.Config.Ingest.MaxBatchSize {
					size = a.Config.Ingest.MaxBatchSize
				}
				res, err := loadInBatches(cmd, a, args[0], inputs, size)
				if err != nil {
					return err
				}
				if err := printJSON(cmd, reportFrom(res)); err != nil {
					return err
				}
				return res.Err() //nolint:wrapcheck // *PartialFailure summarizes the job
			})
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "records per bulk call (default ingest.max_batch_size)")
	return cmd
}

// loadInBatches runs InsertBulk per chunk and merges the outcomes with file-wide indexes.
func loadInBatches(
	cmd *cobra.Command, a *app.App, collection string, inputs []domrec.Input, size int,
) (dombatch.Result, error) {
	items := make([]dombatch.Item, 0, len(inputs))
	for start := 0; start < len(inputs); start += size {
		end := min(start+size, len(inputs))
		res, err := a.Ingest.InsertBulk(cmd.Context(), collection, inputs[start:end])
		if err != nil {
			return dombatch.Result{}, fmt.Errorf("records %d-%d: %w", start, end-1, err)
		}
		for _, it := range res.Succeeded {
			items = append(items, dombatch.Stored(start+it.Index(), it.ID()))
		}
		for _, it := range res.Failed {
			itemErr := rebaseItemError(collection, start, it.Err())
			items = append(items, dombatch.Failed(start+it.Index(), it.ID(), itemErr))
		}
	}
	return dombatch.NewResult(len(inputs), items), nil
}

// rebaseItemError shifts a chunk-relative *domain.ItemError to its position in the whole file.
func rebaseItemError(collection string, start int, err error) error {
	var ie *domain.ItemError
	if !errors.As(err, &ie) {
		return err
	}
	return domain.NewItemError(collection, start+ie.Index, ie.ID, ie.Err)
}

func reportFrom(res dombatch.Result) loadReport {
	out := loadReport{
		Total:     res.Total,
		Succeeded: make([]loadItem, 0, len(res.Succeeded)),
		Failed:    make([]loadItem, 0, len(res.Failed)),
	}
	for _, it := range res.Succeeded {
		out.Succeeded = append(out.Succeeded, loadItem{Index: it.Index(), ID: it.ID()})
	}
	for _, it := range res.Failed {
		err := it.Err()
		var ie *domain.ItemError
		if errors.As(err, &ie) {
			err = ie.Err
		}
		out.Failed = append(out.Failed, loadItem{Index: it.Index(), ID: it.ID(), Error: err.Error()})
	}
	return out
}

func newFetchCmd(o *rootOptions) *cobra.Command {
	var (
		orderBy       string
		limit, offset int
		withVector    bool
	)
	cmd := &cobra.Command{
		Use:   "fetch <collection>",
		Short: "Fetch records ordered by a field",
		Long: `Returns a page of records sorted by --order-by (numbers numerically,
strings lexicographically, false before true, missing values last), then by ID.
Without --order-by records are ordered by ID.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(a *app.App) error {
				recs, err := a.Collections.FetchOrdered(cmd.Context(), args[0], orderBy, limit, offset)
				if err != nil {
					return err //nolint:wrapcheck // service errors are already wrapped
				}
				return printJSON(cmd, payload.Records(recs, withVector))
			})
		},
	}
	cmd.Flags().StringVar(&orderBy, "order-by", "", "field to order by")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (default store.default_page_size)")
	cmd.Flags().IntVar(&offset, "offset", 0, "records to skip")
	cmd.Flags().BoolVar(&withVector, "with-vector", false, "include stored vectors")
	return cmd
}
