package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/exconform/internal/suite"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <suite.yaml>",
		Short: "Validate a suite manifest without running it",
		Long: `Validate a suite manifest: strict YAML decoding (unknown fields are
rejected) followed by CUE schema validation. Faster feedback than run
when editing suites.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	manifest, err := suite.Load(path)
	if err != nil {
		if ferr := formatter.Fail(err.Error(), nil); ferr != nil {
			return ferr
		}
		return &ExitError{Code: ExitFailure, Message: "suite manifest is invalid", Err: err}
	}

	formatter.VerboseLog("suite %q: extractor=%s samples=%d",
		manifest.Name, manifest.Extractor, len(manifest.Samples))
	return formatter.Success(manifest,
		fmt.Sprintf("suite %q is valid (%d samples)", manifest.Name, len(manifest.Samples)))
}
