package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/labstat/internal/analysis"
	"github.com/roach88/labstat/internal/compiler"
	"github.com/roach88/labstat/internal/engine"
	"github.com/roach88/labstat/internal/model"
	"github.com/roach88/labstat/internal/report"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Plans    []string
	Watch    bool
	NoChart  bool
	Debounce time.Duration

	// IDGenerator allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator engine.RunIDGenerator
}

// RunSummary is the JSON payload for one executed plan.
type RunSummary struct {
	Plan     string          `json:"plan"`
	RunID    string          `json:"run_id,omitempty"`
	Seq      int64           `json:"seq,omitempty"`
	Inserted bool            `json:"inserted"`
	Chart    string          `json:"chart,omitempty"`
	Analysis *model.Analysis `json:"analysis,omitempty"`
	Error    *CLIError       `json:"error,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <plans>",
		Short: "Execute analysis plans and record the results",
		Long: `Execute the CUE analysis plans in <plans> (a directory or a .cue file):
load each input, run its test, record the run in the database and draw
its chart.

Re-running an unchanged plan on unchanged data reuses the recorded run.
With --watch, plans are re-executed whenever their input file changes,
until interrupted.

Example:
  labstat run ./plans
  labstat run ./plans --plan fig1a --plan fig1b --db results.db
  labstat run ./plans --watch --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlans(opts, args[0], cmd)
		},
	}

	addDBFlag(cmd)
	cmd.Flags().StringArrayVar(&opts.Plans, "plan", nil, "run only this plan (repeatable)")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "re-run plans when their input changes")
	cmd.Flags().BoolVar(&opts.NoChart, "no-chart", false, "skip chart rendering")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", engine.DefaultDebounce, "quiet period before a changed input is re-run")

	return cmd
}

func runPlans(opts *RunOptions, path string, cmd *cobra.Command) error {
	if err := opts.setup(cmd); err != nil {
		return err
	}
	formatter := opts.formatter(cmd)
	log := opts.Logger

	loadResult, loadErrors := LoadPlans(path, LoadModeFailFast)
	if len(loadErrors) > 0 {
		return formatter.Fail(ExitCommandError, loadErrorCode(loadErrors[0]), "failed to load plans", loadErrors[0])
	}
	plans, err := SelectPlans(loadResult.Plans, opts.Plans)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "failed to select plans", err)
	}
	if errs := compiler.ValidatePlans(plans); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}
	log.Info("plans loaded", "dir", loadResult.Dir, "plans", len(plans))

	st, err := opts.openStore(false)
	if err != nil {
		return err
	}
	defer opts.closeStore(st)

	ids := opts.IDGenerator
	if ids == nil {
		ids = engine.UUIDv7Generator{}
	}
	engineOpts := []engine.Option{
		engine.WithLogger(log),
		engine.WithChartDefaults(opts.Config.ChartOptions()),
		engine.WithDebounce(opts.Debounce),
	}
	if opts.NoChart {
		engineOpts = append(engineOpts, engine.WithoutCharts())
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	eng, err := engine.New(ctx, st, ids, engineOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start engine", err)
	}

	if opts.Watch {
		return watchPlans(ctx, cancel, opts, eng, plans, cmd)
	}

	summaries := make([]RunSummary, 0, len(plans))
	failed := 0
	for _, p := range plans {
		res, err := eng.Execute(ctx, p)
		s := summarize(p, res, err)
		if err != nil {
			failed++
			log.Error("plan failed", "plan", p.Name, "error", err)
		}
		summaries = append(summaries, s)
	}

	if err := formatter.Render(summaries, func(w io.Writer) {
		for _, s := range summaries {
			printRunSummary(w, s)
		}
	}); err != nil {
		return err
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d plan(s) failed", failed, len(plans)))
	}
	return nil
}

func watchPlans(ctx context.Context, cancel context.CancelFunc, opts *RunOptions, eng *engine.Engine, plans []*model.Plan, cmd *cobra.Command) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			opts.Logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	formatter := opts.formatter(cmd)
	if formatter.Format != FormatJSON {
		fmt.Fprintf(cmd.OutOrStdout(), "Watching %d plan(s). Press Ctrl-C to stop.\n", len(plans))
	}

	err := eng.Watch(ctx, plans, func(ev engine.Event, res *engine.Result, err error) {
		s := summarize(ev.Plan, res, err)
		if err != nil {
			opts.Logger.Error("plan failed", "plan", ev.Plan.Name, "trigger", ev.Reason, "error", err)
		}
		if formatter.Format == FormatJSON {
			// One envelope per execution, newline delimited.
			_ = formatter.Success(s)
			return
		}
		printRunSummary(cmd.OutOrStdout(), s)
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "watch error", err)
	}

	opts.Logger.Info("watch stopped")
	return nil
}

// summarize turns an execution outcome into its report line.
func summarize(p *model.Plan, res *engine.Result, err error) RunSummary {
	s := RunSummary{Plan: p.Name}
	if res != nil {
		s.RunID = res.Run.ID
		s.Seq = res.Run.Seq
		s.Inserted = res.Inserted
		if res.ChartWritten {
			s.Chart = res.ChartPath
		}
		s.Analysis = res.Run.Analysis
	}
	if err != nil {
		s.Error = runErrorToCLI(err)
	}
	return s
}

// runErrorToCLI maps an engine error to a CLI error, preferring the
// analysis code when there is one.
func runErrorToCLI(err error) *CLIError {
	code := string(analysis.CodeOf(err))
	if code == "" {
		var rte *engine.RuntimeError
		if errors.As(err, &rte) {
			code = string(rte.Code)
		} else {
			code = ErrCodeGeneric
		}
	}
	return &CLIError{Code: code, Message: err.Error()}
}

func printRunSummary(w io.Writer, s RunSummary) {
	switch {
	case s.Error != nil && s.RunID == "":
		fmt.Fprintf(w, "✗ %s: %s\n", s.Plan, s.Error.Message)
		return
	case s.Inserted:
		fmt.Fprintf(w, "✓ %s: recorded run %s (seq %d)\n", s.Plan, report.ShortID(s.RunID), s.Seq)
	default:
		fmt.Fprintf(w, "= %s: unchanged, run %s (seq %d)\n", s.Plan, report.ShortID(s.RunID), s.Seq)
	}
	if s.Chart != "" {
		fmt.Fprintf(w, "  chart %s\n", s.Chart)
	}
	if s.Error != nil {
		fmt.Fprintf(w, "  ✗ %s\n", s.Error.Message)
	}
	if s.Analysis != nil {
		report.Analysis(w, s.Analysis)
	}
}

// loadErrorCode returns the code of a loader error.
func loadErrorCode(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	return ErrCodeGeneric
}
