package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/exconform/internal/report"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Limit int
}

// RunSummary is one run in report output.
type RunSummary struct {
	ID        string       `json:"id"`
	Suite     string       `json:"suite"`
	Sample    string       `json:"sample"`
	CreatedAt time.Time    `json:"created_at"`
	Cells     []CellStatus `json:"cells"`
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report <results.db>",
		Short: "Inspect recorded conformance runs",
		Long: `List recent runs and their per-cell outcomes from a results database
written by run --report.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to list")
	return cmd
}

func runReport(opts *ReportOptions, dbPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	store, err := report.Open(dbPath)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "failed to open report store", Err: err}
	}
	defer store.Close()

	ctx := context.Background()
	runs, err := store.RecentRuns(ctx, opts.Limit)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "failed to list runs", Err: err}
	}

	var summaries []RunSummary
	for _, r := range runs {
		cells, err := store.Cells(ctx, r.ID)
		if err != nil {
			return &ExitError{Code: ExitCommandError, Message: "failed to load cells", Err: err}
		}
		summary := RunSummary{ID: r.ID, Suite: r.Suite, Sample: r.Sample, CreatedAt: r.CreatedAt}
		for _, c := range cells {
			summary.Cells = append(summary.Cells, CellStatus{
				Config: c.Config.Name(),
				Pass:   c.Pass,
				Error:  c.Error,
			})
		}
		summaries = append(summaries, summary)
	}

	return formatter.Success(summaries, formatReportText(summaries))
}

func formatReportText(summaries []RunSummary) string {
	if len(summaries) == 0 {
		return "no runs recorded"
	}
	var b strings.Builder
	for _, s := range summaries {
		passed := 0
		for _, c := range s.Cells {
			if c.Pass {
				passed++
			}
		}
		fmt.Fprintf(&b, "%s  %s/%s  %d/%d cells passed  (%s)\n",
			s.ID, s.Suite, s.Sample, passed, len(s.Cells),
			s.CreatedAt.Format(time.RFC3339))
		for _, c := range s.Cells {
			if !c.Pass {
				fmt.Fprintf(&b, "  FAIL [%s] %s\n", c.Config, c.Error)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
