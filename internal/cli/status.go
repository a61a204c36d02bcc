package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quenchlabs/quench/internal/results"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Database string
}

// SessionStatus summarizes one stored session.
type SessionStatus struct {
	Database string `json:"database"`
	Results  int    `json:"results"`
	Passed   int    `json:"passed"`
	Failed   int    `json:"failed"`
	Errored  int    `json:"errored"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Summarize a stored session",
		Long: `Summarize the results accumulated in a session store.

Example:
  quench status --db ./session.db
  quench status --db ./session.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "result store path (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
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

	rs, err := store.All(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read results", err)
	}

	status := SessionStatus{Database: opts.Database, Results: len(rs)}
	for _, r := range rs {
		switch r.Status {
		case results.StatusPass:
			status.Passed++
		case results.StatusFail:
			status.Failed++
		default:
			status.Errored++
		}
	}

	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}
	if opts.Format == "json" {
		return formatter.Success(status)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d results (%d passed, %d failed, %d errored)\n",
		status.Database, status.Results, status.Passed, status.Failed, status.Errored)
	return nil
}
