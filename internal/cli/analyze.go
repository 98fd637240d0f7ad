package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/labstat/internal/analysis"
	"github.com/roach88/labstat/internal/chart"
	"github.com/roach88/labstat/internal/model"
	"github.com/roach88/labstat/internal/report"
	"github.com/roach88/labstat/internal/sheet"
)

// AnalyzeOptions holds flags shared by the analyze and plot commands.
type AnalyzeOptions struct {
	*RootOptions
	Sheet    string
	Test     string
	Group    string
	Factor   string
	Response string
	Control  string
	Order    []string

	// Chart options
	Output   string
	Title    string
	Subtitle string
	XLabel   string
	YLabel   string
}

// AnalyzeResult is the JSON payload of analyze and plot.
type AnalyzeResult struct {
	Source   string          `json:"source"`
	Sheet    string          `json:"sheet"`
	Analysis *model.Analysis `json:"analysis"`
	Chart    string          `json:"chart,omitempty"`
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnalyzeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "analyze <spreadsheet>",
		Short: "Run a significance test on a spreadsheet",
		Long: `Run one test on a sheet and print group summaries and comparisons.

Tests: ttest (Welch, two groups per factor level), anova, tukey, dunnett.
With --chart the bar chart is written too.

Examples:
  labstat analyze data.xlsx --sheet fig1a --test tukey -g name -r value
  labstat analyze data.csv --test dunnett -g line -r height --control Col-0
  labstat analyze data.xlsx --test ttest -g genotype -r expr -f time --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(opts, args[0], cmd, false)
		},
	}

	addAnalysisFlags(cmd, opts)
	cmd.Flags().StringVarP(&opts.Output, "chart", "o", "", "also write the bar chart to this file (png, svg, pdf, eps, jpg, tif)")
	addChartFlags(cmd, opts)

	return cmd
}

// NewPlotCommand creates the plot command.
func NewPlotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnalyzeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plot <spreadsheet>",
		Short: "Draw an annotated bar chart",
		Long: `Run a test and draw group means with standard-error bars, annotated
with compact letters (tukey), stars over significant groups (dunnett) or
brackets over significant pairs (ttest).

Example:
  labstat plot data.xlsx --sheet fig1a --test tukey -g name -r value -o fig1a.png --dpi 600`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(opts, args[0], cmd, true)
		},
	}

	addAnalysisFlags(cmd, opts)
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "chart file (required)")
	_ = cmd.MarkFlagRequired("output")
	addChartFlags(cmd, opts)

	return cmd
}

func addAnalysisFlags(cmd *cobra.Command, opts *AnalyzeOptions) {
	cmd.Flags().StringVar(&opts.Sheet, "sheet", "", "sheet name (default first sheet)")
	cmd.Flags().StringVarP(&opts.Test, "test", "t", string(model.TestTukey), "test to run (ttest|anova|tukey|dunnett)")
	cmd.Flags().StringVarP(&opts.Group, "group", "g", "", "treatment column (required)")
	cmd.Flags().StringVarP(&opts.Response, "response", "r", "", "response column (required)")
	cmd.Flags().StringVarP(&opts.Factor, "factor", "f", "", "optional factor column stratifying the comparison")
	cmd.Flags().StringVar(&opts.Control, "control", "", "control group for dunnett (default first group)")
	cmd.Flags().StringSliceVar(&opts.Order, "order", nil, "group order, comma separated")
	cmd.Flags().Float64("alpha", model.DefaultAlpha, "significance level")
	_ = cmd.MarkFlagRequired("group")
	_ = cmd.MarkFlagRequired("response")
}

func addChartFlags(cmd *cobra.Command, opts *AnalyzeOptions) {
	cmd.Flags().StringVar(&opts.Title, "title", "", "chart title")
	cmd.Flags().StringVar(&opts.Subtitle, "subtitle", "", "chart subtitle")
	cmd.Flags().StringVar(&opts.XLabel, "x-label", "", "x axis label")
	cmd.Flags().StringVar(&opts.YLabel, "y-label", "", "y axis label (default response column)")
	cmd.Flags().Float64("width", 0, "chart width in inches (default from config)")
	cmd.Flags().Float64("height", 0, "chart height in inches (default from config)")
	cmd.Flags().Int("dpi", 0, "PNG/JPEG/TIFF resolution (default from config)")
}

func runAnalyze(opts *AnalyzeOptions, path string, cmd *cobra.Command, chartOnly bool) error {
	if err := opts.setup(cmd); err != nil {
		return err
	}
	formatter := opts.formatter(cmd)

	formatter.VerboseLog("loading %s", path)
	tbl, err := sheet.Load(path, opts.Sheet)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInput, "failed to read spreadsheet", err)
	}

	req, err := analysis.Normalize(model.Request{
		Test:        model.TestKind(opts.Test),
		GroupCol:    opts.Group,
		FactorCol:   opts.Factor,
		ResponseCol: opts.Response,
		Control:     opts.Control,
		Alpha:       opts.Config.Alpha,
		Order:       opts.Order,
	})
	if err != nil {
		return formatter.Fail(ExitCommandError, string(analysis.CodeOf(err)), "invalid request", err)
	}

	a, err := analysis.Analyze(tbl, req)
	if err != nil {
		return formatter.Fail(ExitFailure, string(analysis.CodeOf(err)), "analysis failed", err)
	}
	for _, sk := range a.Skipped {
		opts.Logger.Warn("factor level skipped", "factor", sk.Factor, "reason", sk.Reason)
	}

	result := AnalyzeResult{Source: path, Sheet: tbl.Name, Analysis: a}
	if opts.Output != "" {
		if err := writeChart(a, opts); err != nil {
			return formatter.Fail(ExitFailure, ErrCodeWriteFailed, "failed to write chart", err)
		}
		result.Chart = opts.Output
		opts.Logger.Debug("chart written", "path", opts.Output)
	}

	return formatter.Render(result, func(w io.Writer) {
		if !chartOnly {
			report.Analysis(w, a)
		}
		if result.Chart != "" {
			fmt.Fprintf(w, "chart written to %s\n", result.Chart)
		}
	})
}

// writeChart draws a to opts.Output; sizes left at zero come from config.
func writeChart(a *model.Analysis, opts *AnalyzeOptions) error {
	c := opts.Config.Chart
	chartOpts := model.ChartOptions{
		Title:    opts.Title,
		Subtitle: opts.Subtitle,
		XLabel:   opts.XLabel,
		YLabel:   opts.YLabel,
		Output:   opts.Output,
		Width:    c.Width,
		Height:   c.Height,
		DPI:      c.DPI,
	}
	if chartOpts.YLabel == "" {
		chartOpts.YLabel = a.Request.ResponseCol
	}
	if dir := filepath.Dir(opts.Output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return chart.Write(a, chart.WithDefaults(chartOpts))
}
