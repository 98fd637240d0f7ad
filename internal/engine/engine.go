package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/labstat/internal/analysis"
	"github.com/roach88/labstat/internal/chart"
	"github.com/roach88/labstat/internal/model"
	"github.com/roach88/labstat/internal/sheet"
	"github.com/roach88/labstat/internal/store"
)

// Engine executes plans against a run store.
//
// Thread-safety model:
//   - Execute(): safe from one goroutine at a time per plan; Watch serializes
//     all executions on its own loop
//   - Clock and id generation are safe from any goroutine
type Engine struct {
	store    *store.Store
	clock    *Clock
	ids      RunIDGenerator
	logger   *slog.Logger
	now      func() time.Time
	charts   bool
	defaults model.ChartOptions
	debounce time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock replaces the clock resumed from the store.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithNow sets the wall clock used for created_at. Tests pin it.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithoutCharts disables chart rendering; runs are still recorded.
func WithoutCharts() Option {
	return func(e *Engine) {
		e.charts = false
	}
}

// WithChartDefaults sets the size and DPI used when a plan leaves them unset.
func WithChartDefaults(opts model.ChartOptions) Option {
	return func(e *Engine) {
		e.defaults = opts
	}
}

// WithDebounce sets how long Watch waits for a file to settle.
// Default: DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(e *Engine) {
		e.debounce = d
	}
}

// New creates an Engine. Unless WithClock is given, the logical clock
// resumes from the highest seq already in the store.
func New(ctx context.Context, s *store.Store, ids RunIDGenerator, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:    s,
		ids:      ids,
		logger:   slog.Default(),
		now:      time.Now,
		charts:   true,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.clock == nil {
		seq, err := s.MaxSeq(ctx)
		if err != nil {
			return nil, fmt.Errorf("resume clock: %w", err)
		}
		e.clock = NewClockAt(seq)
	}
	return e, nil
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// Result is the outcome of executing a plan.
type Result struct {
	Run model.Run
	// Inserted is false when the plan had already run on the same data.
	Inserted bool
	// ChartWritten reports whether a chart file was (re)rendered.
	ChartWritten bool
	// ChartPath is the resolved chart file, empty when the plan has none.
	ChartPath string
}

// Execute runs a plan end to end: load, extract, analyze, record, draw.
//
// Re-executing an unchanged plan on unchanged data returns the recorded run
// with Inserted=false; its chart is redrawn only when the file is missing or
// the chart options differ from those it was last drawn with.
// A chart failure is returned together with the stored result.
func (e *Engine) Execute(ctx context.Context, p *model.Plan) (*Result, error) {
	log := e.logger.With("plan", p.Name)
	input := Resolve(p.Dir, p.Input)

	log.Debug("loading sheet", "input", input, "sheet", p.Sheet)
	tbl, err := sheet.Load(input, p.Sheet)
	if err != nil {
		return nil, newRuntimeError(ErrCodeLoadFailed, p.Name, err)
	}

	req, err := analysis.Normalize(p.Request)
	if err != nil {
		return nil, newRuntimeError(ErrCodeAnalysisFailed, p.Name, err)
	}
	obs, dropped, err := analysis.Extract(tbl, req)
	if err != nil {
		return nil, newRuntimeError(ErrCodeAnalysisFailed, p.Name, err)
	}
	a, err := analysis.Run(obs, req)
	if err != nil {
		return nil, newRuntimeError(ErrCodeAnalysisFailed, p.Name, err)
	}
	a.Dropped = dropped
	if dropped > 0 {
		log.Info("dropped incomplete rows", "rows", dropped)
	}
	for _, sk := range a.Skipped {
		log.Warn("factor level skipped", "factor", sk.Factor, "reason", sk.Reason)
	}

	planHash, err := model.PlanHash(*p)
	if err != nil {
		return nil, newRuntimeError(ErrCodeStoreFailed, p.Name, err)
	}
	datasetHash, err := model.DatasetHash(obs)
	if err != nil {
		return nil, newRuntimeError(ErrCodeStoreFailed, p.Name, err)
	}

	res := &Result{}
	existing, found, err := e.store.FindRun(ctx, planHash, datasetHash)
	if err != nil {
		return nil, newRuntimeError(ErrCodeStoreFailed, p.Name, err)
	}
	if found {
		existing.Analysis = a
		res.Run = existing
		log.Info("unchanged since run", "run", existing.ID, "seq", existing.Seq)
	} else {
		latest, err := e.store.MaxSeq(ctx)
		if err != nil {
			return nil, newRuntimeError(ErrCodeStoreFailed, p.Name, err)
		}
		e.clock.Observe(latest)
		run := model.Run{
			ID:            e.ids.Generate(),
			Seq:           e.clock.Next(),
			PlanName:      p.Name,
			PlanHash:      planHash,
			DatasetHash:   datasetHash,
			Source:        p.Input,
			Sheet:         tbl.Name,
			Request:       req,
			ChartPath:     p.Chart.Output,
			EngineVersion: model.EngineVersion,
			CreatedAt:     e.now().UTC().Format(time.RFC3339),
			Analysis:      a,
		}
		id, inserted, err := e.store.WriteRun(ctx, run)
		if err != nil {
			return nil, newRuntimeError(ErrCodeStoreFailed, p.Name, err)
		}
		run.ID = id
		res.Run, res.Inserted = run, inserted
		log.Info("run recorded", "run", id, "seq", run.Seq, "test", req.Test,
			"groups", len(a.Groups), "comparisons", len(a.Comparisons))
	}

	if p.Chart.Output == "" {
		return res, nil
	}
	res.ChartPath = Resolve(p.Dir, p.Chart.Output)
	if !e.charts {
		return res, nil
	}
	opts := e.chartOptions(p.Chart)
	chartHash, err := model.ChartHash(opts)
	if err != nil {
		return res, newRuntimeError(ErrCodeChartFailed, p.Name, err)
	}
	if !res.Inserted && res.Run.ChartHash == chartHash {
		if _, err := os.Stat(res.ChartPath); err == nil {
			return res, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return res, newRuntimeError(ErrCodeChartFailed, p.Name, err)
		}
	}
	if err := e.drawChart(a, opts, res.ChartPath); err != nil {
		return res, newRuntimeError(ErrCodeChartFailed, p.Name, err)
	}
	res.ChartWritten = true
	log.Info("chart written", "path", res.ChartPath)

	if res.Run.ChartHash != chartHash {
		if err := e.store.SetChartHash(ctx, res.Run.ID, chartHash); err != nil {
			return res, newRuntimeError(ErrCodeStoreFailed, p.Name, err)
		}
		res.Run.ChartHash = chartHash
	}
	return res, nil
}

// chartOptions fills the size and DPI a plan leaves unset from the engine
// defaults.
func (e *Engine) chartOptions(opts model.ChartOptions) model.ChartOptions {
	if opts.Width == 0 {
		opts.Width = e.defaults.Width
	}
	if opts.Height == 0 {
		opts.Height = e.defaults.Height
	}
	if opts.DPI == 0 {
		opts.DPI = e.defaults.DPI
	}
	return opts
}

func (e *Engine) drawChart(a *model.Analysis, opts model.ChartOptions, path string) error {
	opts.Output = path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return chart.Write(a, opts)
}

// Resolve interprets a plan path relative to the plan file's directory.
func Resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) || dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}
