package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quenchlabs/quench/internal/suite"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Profile  string
	RunToken string
	Export   string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the systematic bench suite",
		Long: `Run the built-in systematic bench suite behind the live display.

The suite includes the tiered quantization sweep; sweep tiers are revealed
on the display strictly in completion order. Results accumulate in the
session store and can be exported as canonical JSON.

Exit codes:
  0 - All cases passed
  1 - One or more cases failed or errored
  2 - Command error (bad profile, store failure, etc.)

Examples:
  quench run
  quench run --db ./session.db --export ./results.json
  quench run --profile ./tuning.cue --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSystematic(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "result store path (default in-memory)")
	cmd.Flags().StringVar(&opts.Profile, "profile", "", "CUE tuning profile path")
	cmd.Flags().StringVar(&opts.RunToken, "run-token", "", "fixed run token for deterministic exports")
	cmd.Flags().StringVar(&opts.Export, "export", "", "write canonical JSON export to this path after the run")

	return cmd
}

func runSystematic(opts *RunOptions, cmd *cobra.Command) error {
	sess, err := openSession(sessionOptions{
		Database: opts.Database,
		Profile:  opts.Profile,
		Surface:  surfaceWriter(opts.RootOptions, cmd),
		RunToken: opts.RunToken,
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	sys := suite.NewSystematic(sess.display, sess.flags, sess.clock, sess.tokens)
	for _, c := range suite.Builtin() {
		if err := sys.Register(c); err != nil {
			return WrapExitError(ExitCommandError, "failed to register case", err)
		}
	}

	report, err := sys.Run(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "suite run aborted", err)
	}

	if opts.Export != "" {
		if err := sess.writeExport(ctx, opts.Export); err != nil {
			return WrapExitError(ExitCommandError, "failed to write export", err)
		}
	}

	return reportOutcome(opts.RootOptions, cmd, report)
}

// surfaceWriter picks where live display output goes. JSON mode keeps
// stdout for the structured response and moves the display to stderr.
func surfaceWriter(opts *RootOptions, cmd *cobra.Command) io.Writer {
	if opts.Format == "json" {
		return cmd.ErrOrStderr()
	}
	return cmd.OutOrStdout()
}

// signalContext derives a context cancelled by SIGINT/SIGTERM from the
// command's context.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// reportOutcome prints the run report and maps failures to the exit code.
func reportOutcome(opts *RootOptions, cmd *cobra.Command, report *suite.Report) error {
	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}

	if opts.Format == "json" {
		if err := formatter.Success(report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d total, %d passed, %d failed, %d errored\n",
			report.RunToken, report.Total, report.Passed, report.Failed, report.Errored)
	}

	if report.Failed > 0 || report.Errored > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d did not pass",
			report.Failed+report.Errored, report.Total))
	}
	return nil
}
