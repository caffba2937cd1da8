package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/exconform/internal/dump"
	"github.com/roach88/exconform/internal/extractor"
	"github.com/roach88/exconform/internal/harness"
	"github.com/roach88/exconform/internal/report"
	"github.com/roach88/exconform/internal/suite"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ReportDB string
	Update   bool
}

// SampleResult is the per-sample outcome in run output.
type SampleResult struct {
	Sample string       `json:"sample"`
	Cells  []CellStatus `json:"cells"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
}

// CellStatus is one matrix cell in run output.
type CellStatus struct {
	Config string `json:"config"`
	Pass   bool   `json:"pass"`
	Error  string `json:"error,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <suite.yaml> <samples-dir> <dumps-dir>",
		Short: "Run a conformance suite",
		Long: `Run the full 8-cell simulation matrix for every sample in the suite
against the registered extractor, comparing output against golden
dumps.

Exit codes:
  0 - all cells passed
  1 - one or more cells failed
  2 - command error (bad paths, unregistered extractor, invalid suite)

Examples:
  exconform run ./suites/mp3.yaml ./samples ./dumps
  exconform run ./suites/mp3.yaml ./samples ./dumps --update
  exconform run ./suites/mp3.yaml ./samples ./dumps --report results.db`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(opts, args[0], args[1], args[2], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ReportDB, "report", "", "record results into this SQLite database")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden dumps instead of comparing")

	return cmd
}

func runSuite(opts *RunOptions, suitePath, samplesDir, dumpsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	manifest, err := suite.Load(suitePath)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "failed to load suite", Err: err}
	}
	factory, err := extractor.Lookup(manifest.Extractor)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "failed to resolve extractor", Err: err}
	}

	verifier := harness.NewVerifier(&dump.Store{Dir: dumpsDir})
	verifier.Logger = newLogger(opts.Verbose, cmd.ErrOrStderr())

	var reportStore *report.Store
	if opts.ReportDB != "" {
		reportStore, err = report.Open(opts.ReportDB)
		if err != nil {
			return &ExitError{Code: ExitCommandError, Message: "failed to open report store", Err: err}
		}
		defer reportStore.Close()
	}

	ctx := context.Background()
	var sampleResults []SampleResult
	failed := 0

	for _, s := range manifest.Samples {
		data, err := os.ReadFile(filepath.Join(samplesDir, s.File))
		if err != nil {
			return &ExitError{Code: ExitCommandError, Message: "failed to read sample", Err: err}
		}
		formatter.VerboseLog("running %s (%d bytes)", s.File, len(data))

		if opts.Update && s.ExpectError == "" {
			if err := verifier.RecordGolden(factory, s.File, data); err != nil {
				return &ExitError{Code: ExitFailure, Message: "failed to record golden dumps", Err: err}
			}
			formatter.VerboseLog("recorded dumps for %s", s.File)
			continue
		}

		var results []harness.CellResult
		if s.ExpectError != "" {
			kind, err := extractor.LookupFailureKind(s.ExpectError)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "failed to resolve expected failure", Err: err}
			}
			results = verifier.RunFailureMatrix(factory, data, kind)
		} else {
			results = verifier.RunMatrix(factory, s.File, data)
		}

		sr := SampleResult{Sample: s.File}
		for _, res := range results {
			status := CellStatus{Config: res.Config.Name(), Pass: res.Passed()}
			if res.Err != nil {
				status.Error = res.Err.Error()
				sr.Failed++
			} else {
				sr.Passed++
			}
			sr.Cells = append(sr.Cells, status)
		}
		failed += sr.Failed
		sampleResults = append(sampleResults, sr)

		if reportStore != nil {
			runID, err := reportStore.RecordRun(ctx, manifest.Name, s.File, results)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "failed to record run", Err: err}
			}
			formatter.VerboseLog("recorded run %s", runID)
		}
	}

	text := formatRunText(manifest.Name, sampleResults)
	if failed > 0 {
		if formatter.Format != "json" {
			fmt.Fprintln(formatter.Writer, text)
		}
		if err := formatter.Fail(fmt.Sprintf("%d cell(s) failed", failed), sampleResults); err != nil {
			return err
		}
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d cell(s) failed", failed)}
	}
	return formatter.Success(sampleResults, text)
}

func formatRunText(name string, results []SampleResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "suite %s\n", name)
	for _, sr := range results {
		fmt.Fprintf(&b, "  %s: %d/%d cells passed\n", sr.Sample, sr.Passed, sr.Passed+sr.Failed)
		for _, c := range sr.Cells {
			if !c.Pass {
				fmt.Fprintf(&b, "    FAIL [%s] %s\n", c.Config, c.Error)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func newLogger(verbose bool, w io.Writer) *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(w, nil))
}
