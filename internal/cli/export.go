package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/quenchlabs/quench/internal/results"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Database string
	Out      string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export accumulated session results",
		Long: `Export the accumulated session results as canonical JSON.

Results are ordered by their logical sequence, names are NFC-normalized at
write time, and the encoding is stable: the same store always produces a
byte-identical export.

Examples:
  quench export --db ./session.db
  quench export --db ./session.db --out ./results.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "result store path (required)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "output path (default stdout)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runExport(opts *ExportOptions, cmd *cobra.Command) error {
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "result store not found", err)
	}

	store, err := results.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open result store", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	export, err := store.BuildExport(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build export", err)
	}

	if opts.Out == "" {
		return export.WriteJSON(cmd.OutOrStdout())
	}

	f, err := os.Create(opts.Out)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create output file", err)
	}
	defer f.Close()
	return export.WriteJSON(f)
}
