package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecdesk/internal/app"
	"github.com/kailas-cloud/vecdesk/internal/version"
)

func newServeCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return o.withApp(cmd, func(a *app.App) error {
				a.Logger.Info("Starting vecdesk API server",
					zap.String("version", version.Version),
					zap.String("commit", version.Commit),
					zap.String("env", o.env),
					zap.Int("http_port", a.Config.HTTP.Port),
					zap.String("db_driver", a.Config.Database.Driver),
					zap.Strings("db_addrs", a.Config.Database.Addrs),
				)
				defer func() { _ = a.Logger.Sync() }()
				return a.Serve(ctx) //nolint:wrapcheck // already wrapped
			})
		},
	}
}
