// Package cli implements the vecdesk command line on top of the application services.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/vecdesk/internal/app"
	"github.com/kailas-cloud/vecdesk/internal/config"
	logpkg "github.com/kailas-cloud/vecdesk/internal/logger"
)

// Opener builds the application for an environment or an explicit config file.
type Opener func(ctx context.Context, env, configPath string) (*app.App, error)

// DefaultOpener loads the configuration, creates the logger and connects to the database.
func DefaultOpener(ctx context.Context, env, configPath string) (*app.App, error) {
	var (
		cfg config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, logpkg.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("start application: %w", err)
	}
	return a, nil
}

type rootOptions struct {
	env        string
	configPath string
	open       Opener
}

// withApp opens the application, runs fn and releases it.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	a, err := o.open(cmd.Context(), o.env, o.configPath)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// NewRootCommand builds the command tree. open is called once per command invocation.
func NewRootCommand(open Opener) *cobra.Command {
	o := &rootOptions{open: open}

	root := &cobra.Command{
		Use:   "vecdesk",
		Short: "Embed, store and search records in vector collections",
		Long: `vecdesk stores flat JSON records in vector-indexed collections.
Text is embedded through an OpenAI-compatible server (Ollama by default)
and records can be searched by similarity or fetched in field order.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&o.env, "env", config.GetEnv(), "environment, selects config/<env>.yaml")
	root.PersistentFlags().StringVar(&o.configPath, "config", "", "explicit config file (overrides --env lookup)")

	root.AddCommand(
		newServeCmd(o),
		newCollectionsCmd(o),
		newInsertCmd(o),
		newLoadCmd(o),
		newSearchCmd(o),
		newFetchCmd(o),
		newVersionCmd(),
	)
	return root
}

// printJSON writes v as indented JSON to the command's stdout.
func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err //nolint:wrapcheck // write to stdout
}
