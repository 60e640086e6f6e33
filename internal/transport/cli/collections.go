package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/vecdesk/internal/app"
	"github.com/kailas-cloud/vecdesk/internal/domain"
	"github.com/kailas-cloud/vecdesk/internal/transport/payload"
)

func newCollectionsCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "collections",
		Aliases: []string{"collection", "col"},
		Short:   "Manage collections",
	}
	cmd.AddCommand(
		newCollectionsListCmd(o),
		newCollectionsCreateCmd(o),
		newCollectionsGetCmd(o),
		newCollectionsDropCmd(o),
	)
	return cmd
}

func newCollectionsListCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List collections by creation time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withApp(cmd, func(a *app.App) error {
				cols, err := a.Collections.List(cmd.Context())
				if err != nil {
					return err //nolint:wrapcheck // service errors are already wrapped
				}
				out := make([]payload.Collection, 0, len(cols))
				for _, c := range cols {
					out = append(out, payload.CollectionFrom(c))
				}
				return printJSON(cmd, out)
			})
		},
	}
}

func newCollectionsCreateCmd(o *rootOptions) *cobra.Command {
	var (
		textField string
		strict    bool
		fields    []string
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a collection",
		Long: `Creates a collection. Declare typed fields with --field name:kind,
where kind is string, number or bool. Undeclared fields are accepted
unless --strict is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, err := parseFieldFlags(fields)
			if err != nil {
				return err
			}
			schema, err := payload.SchemaFrom(defs, textField, strict)
			if err != nil {
				return err //nolint:wrapcheck // carries the field name
			}
			return o.withApp(cmd, func(a *app.App) error {
				col, err := a.Collections.Create(cmd.Context(), args[0], schema)
				if err != nil {
					return err //nolint:wrapcheck // service errors are already wrapped
				}
				return printJSON(cmd, payload.CollectionFrom(col))
			})
		},
	}
	cmd.Flags().StringVar(&textField, "text-field", "", "field embedded for similarity search (default from config)")
	cmd.Flags().BoolVar(&strict, "strict", false, "reject fields that are not declared")
	cmd.Flags().StringArrayVar(&fields, "field", nil, "declared field as name:kind (repeatable)")
	return cmd
}

func newCollectionsGetCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Show a collection and its record count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(a *app.App) error {
				col, err := a.Collections.Get(cmd.Context(), args[0])
				if err != nil {
					return err //nolint:wrapcheck // service errors are already wrapped
				}
				n, err := a.Collections.Count(cmd.Context(), args[0])
				if err != nil {
					return err //nolint:wrapcheck // service errors are already wrapped
				}
				out := payload.CollectionFrom(col)
				out.RecordCount = &n
				return printJSON(cmd, out)
			})
		},
	}
}

func newCollectionsDropCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drop <name>",
		Short: "Drop a collection and all of its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withApp(cmd, func(a *app.App) error {
				if err := a.Collections.Drop(cmd.Context(), args[0]); err != nil {
					return err //nolint:wrapcheck // service errors are already wrapped
				}
				return printJSON(cmd, map[string]any{"dropped": args[0]})
			})
		},
	}
}

func parseFieldFlags(flags []string) ([]payload.FieldDefinition, error) {
	defs := make([]payload.FieldDefinition, 0, len(flags))
	for _, f := range flags {
		name, kind, ok := strings.Cut(f, ":")
		if !ok || name == "" || kind == "" {
			return nil, fmt.Errorf("field %q must be name:kind: %w", f, domain.ErrInvalidInput)
		}
		defs = append(defs, payload.FieldDefinition{Name: name, Kind: kind})
	}
	return defs, nil
}
