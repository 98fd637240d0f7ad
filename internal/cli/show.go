package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/labstat/internal/report"
	"github.com/roach88/labstat/internal/store"
)

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a recorded run",
		Long: `Show a recorded run with its group summaries, comparisons and ANOVA.

<run-id> may be any unique prefix of the id, such as the short form
printed by "labstat history".`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, args[0], cmd)
		},
	}

	addDBFlag(cmd)
	return cmd
}

func runShow(opts *RootOptions, prefix string, cmd *cobra.Command) error {
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
	id, err := st.ResolveRunID(ctx, prefix)
	if err != nil {
		code := ErrCodeGeneric
		if store.IsNotFound(err) {
			code = ErrCodeNotFound
		}
		return formatter.Fail(ExitFailure, code, fmt.Sprintf("run %s", prefix), err)
	}

	run, err := st.ReadRun(ctx, id)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, "failed to read run", err)
	}

	return formatter.Render(run, func(w io.Writer) {
		report.Run(w, run)
	})
}
