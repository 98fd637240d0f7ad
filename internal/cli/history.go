package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/labstat/internal/report"
	"github.com/roach88/labstat/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Plan  string
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Long: `List the runs recorded by "labstat run", oldest first.

Example:
  labstat history --db results.db --plan fig1a --limit 5`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	addDBFlag(cmd)
	cmd.Flags().StringVar(&opts.Plan, "plan", "", "only runs of this plan")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "show only the most recent N runs")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	if err := opts.setup(cmd); err != nil {
		return err
	}
	formatter := opts.formatter(cmd)

	st, err := opts.openStore(true)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return err
	}
	defer opts.closeStore(st)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	runs, err := st.ListRuns(ctx, store.RunFilter{PlanName: opts.Plan, Limit: opts.Limit})
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to list runs", err)
	}

	return formatter.Render(runs, func(w io.Writer) {
		report.Runs(w, runs)
	})
}
