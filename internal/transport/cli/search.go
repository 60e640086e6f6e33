package cli

import (
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/vecdesk/internal/app"
	"github.com/kailas-cloud/vecdesk/internal/transport/payload"
)

func newSearchCmd(o *rootOptions) *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "search <collection> <query>",
		Short: "Find the records most similar to a query",
		Long: `Embeds the query and returns the nearest records, closest first.
Distances are raw index distances: 0 means identical.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(a *app.App) error {
				k := topK
				if k == 0 {
					k = a.Config.Query.DefaultTopK
				}
				hits, err := a.Query.Search(cmd.Context(), args[0], args[1], k)
				if err != nil {
					return err //nolint:wrapcheck // service errors are already wrapped
				}
				return printJSON(cmd, payload.HitsFrom(hits))
			})
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of results (default query.default_top_k)")
	return cmd
}
