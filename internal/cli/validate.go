package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quenchlabs/quench/internal/suite"
)

// ValidationResult holds script validation results.
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Script string `json:"script,omitempty"`
	Steps  int    `json:"steps,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <script.yaml>",
		Short: "Validate a walkthrough script without running it",
		Long: `Parse and validate a YAML walkthrough script.

Checks schema (unknown fields are rejected), required fields, step name
uniqueness, and declared statuses. Faster feedback than a full run.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, scriptPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}

	script, err := suite.LoadScript(scriptPath)
	if err != nil {
		if opts.Format == "json" {
			if outErr := formatter.Success(ValidationResult{Valid: false, Error: err.Error()}); outErr != nil {
				return outErr
			}
		} else if outErr := formatter.Error("INVALID_SCRIPT", err.Error()); outErr != nil {
			return outErr
		}
		return NewExitError(ExitFailure, "script validation failed")
	}

	result := ValidationResult{Valid: true, Script: script.Name, Steps: len(script.Steps)}
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%d steps)\n", script.Name, len(script.Steps))
	return nil
}
