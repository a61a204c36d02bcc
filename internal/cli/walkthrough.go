package cli

import (
	"github.com/spf13/cobra"

	"github.com/quenchlabs/quench/internal/suite"
)

// WalkthroughOptions holds flags for the walkthrough command.
type WalkthroughOptions struct {
	*RootOptions
	Database string
	Profile  string
	Export   string
}

// NewWalkthroughCommand creates the walkthrough command.
func NewWalkthroughCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WalkthroughOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "walkthrough <script.yaml>",
		Short: "Run a scripted walkthrough",
		Long: `Run a YAML walkthrough script behind the live display.

While the walkthrough owns the display it runs under the protected regime:
roomier fragment cache, no sweep-tier cache bypass, and disclosure state
shielded from unforced resets.

Exit codes:
  0 - All steps passed
  1 - One or more steps failed or errored
  2 - Command error (bad script, store failure, etc.)

Examples:
  quench walkthrough ./scripts/checkout.yaml
  quench walkthrough ./scripts/checkout.yaml --db ./session.db --export ./results.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWalkthrough(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "result store path (default in-memory)")
	cmd.Flags().StringVar(&opts.Profile, "profile", "", "CUE tuning profile path")
	cmd.Flags().StringVar(&opts.Export, "export", "", "write canonical JSON export to this path after the run")

	return cmd
}

func runWalkthrough(opts *WalkthroughOptions, scriptPath string, cmd *cobra.Command) error {
	script, err := suite.LoadScript(scriptPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load script", err)
	}

	sess, err := openSession(sessionOptions{
		Database: opts.Database,
		Profile:  opts.Profile,
		Surface:  surfaceWriter(opts.RootOptions, cmd),
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	w := suite.NewWalkthrough(sess.display, sess.flags, sess.clock, sess.tokens)
	report, err := w.Run(ctx, script)
	if err != nil {
		return WrapExitError(ExitCommandError, "walkthrough aborted", err)
	}

	if opts.Export != "" {
		if err := sess.writeExport(ctx, opts.Export); err != nil {
			return WrapExitError(ExitCommandError, "failed to write export", err)
		}
	}

	return reportOutcome(opts.RootOptions, cmd, report)
}
