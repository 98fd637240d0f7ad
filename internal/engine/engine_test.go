package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labstat/internal/analysis"
	"github.com/roach88/labstat/internal/model"
	"github.com/roach88/labstat/internal/store"
	"github.com/roach88/labstat/internal/testutil"
)

const threeGroupsCSV = `name,value
A,4.2
A,4.8
A,5.1
A,4.5
B,5.9
B,6.3
B,6.1
C,4.4
C,4.9
C,5.0
C,4.6
C,4.7
`

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
}

// setupPlan writes the CSV into a fresh directory and returns a Dunnett plan
// that reads it and draws fig.png next to it.
func setupPlan(t *testing.T, csv string) *model.Plan {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.csv"), []byte(csv), 0o644))
	return &model.Plan{
		Name:  "fig1",
		Input: "data.csv",
		Request: model.Request{
			Test:        model.TestDunnett,
			GroupCol:    "name",
			ResponseCol: "value",
			Control:     "A",
			Alpha:       0.05,
		},
		Chart: model.ChartOptions{Title: "Fig 1", Output: "out/fig.png", Width: 4, Height: 3, DPI: 72},
		Dir:   dir,
	}
}

func newTestEngine(t *testing.T, s *store.Store, ids ...string) *Engine {
	t.Helper()
	e, err := New(context.Background(), s, NewFixedGenerator(ids...),
		WithLogger(testutil.DiscardLogger()), WithNow(fixedNow))
	require.NoError(t, err)
	return e
}

func TestEngine_Execute_RecordsRunAndChart(t *testing.T) {
	s := setupTestStore(t)
	e := newTestEngine(t, s, "run-1")
	p := setupPlan(t, threeGroupsCSV)

	res, err := e.Execute(context.Background(), p)
	require.NoError(t, err)

	assert.True(t, res.Inserted)
	assert.True(t, res.ChartWritten)
	assert.Equal(t, filepath.Join(p.Dir, "out", "fig.png"), res.ChartPath)
	assert.FileExists(t, res.ChartPath)

	run := res.Run
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, int64(1), run.Seq)
	assert.Equal(t, "data", run.Sheet)
	assert.Equal(t, "data.csv", run.Source)
	assert.Equal(t, "2026-03-04T05:06:07Z", run.CreatedAt)
	assert.Equal(t, model.EngineVersion, run.EngineVersion)
	assert.Equal(t, model.MustPlanHash(*p), run.PlanHash)

	stored, err := s.ReadRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, stored.Analysis.Groups)
	require.Len(t, stored.Analysis.Comparisons, 2)
	assert.True(t, stored.Analysis.Comparisons[0].Reject, "B differs from control A")
	assert.False(t, stored.Analysis.Comparisons[1].Reject, "C does not differ from control A")
}

func TestEngine_Execute_Idempotent(t *testing.T) {
	s := setupTestStore(t)
	e := newTestEngine(t, s, "run-1")
	p := setupPlan(t, threeGroupsCSV)
	ctx := context.Background()

	first, err := e.Execute(ctx, p)
	require.NoError(t, err)
	assert.NotEmpty(t, first.Run.ChartHash)

	// FixedGenerator panics if a second id is requested.
	second, err := e.Execute(ctx, p)
	require.NoError(t, err)
	assert.False(t, second.Inserted)
	assert.False(t, second.ChartWritten, "existing chart is not redrawn")
	assert.Equal(t, first.Run.ID, second.Run.ID)
	assert.Equal(t, first.Run.Seq, second.Run.Seq)
	require.NotNil(t, second.Run.Analysis)

	require.NoError(t, os.Remove(first.ChartPath))
	third, err := e.Execute(ctx, p)
	require.NoError(t, err)
	assert.False(t, third.Inserted)
	assert.True(t, third.ChartWritten, "missing chart is redrawn")
	assert.FileExists(t, first.ChartPath)

	runs, err := s.ListRuns(ctx, store.RunFilter{})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestEngine_Execute_RedrawsWhenChartOptionsChange(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *model.ChartOptions)
	}{
		{"title", func(o *model.ChartOptions) { o.Title = "Fig 1 (revised)" }},
		{"y label", func(o *model.ChartOptions) { o.YLabel = "Fresh weight (mg)" }},
		{"subtitle", func(o *model.ChartOptions) { o.Subtitle = "n = 4" }},
		{"size", func(o *model.ChartOptions) { o.Width = 5 }},
		{"dpi", func(o *model.ChartOptions) { o.DPI = 96 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestStore(t)
			e := newTestEngine(t, s, "run-1")
			p := setupPlan(t, threeGroupsCSV)
			ctx := context.Background()

			first, err := e.Execute(ctx, p)
			require.NoError(t, err)

			tt.mutate(&p.Chart)
			second, err := e.Execute(ctx, p)
			require.NoError(t, err)
			assert.False(t, second.Inserted, "analysis is unchanged")
			assert.Equal(t, first.Run.ID, second.Run.ID)
			assert.True(t, second.ChartWritten, "stale chart is redrawn")
			assert.NotEqual(t, first.Run.ChartHash, second.Run.ChartHash)

			stored, err := s.ReadRun(ctx, first.Run.ID)
			require.NoError(t, err)
			assert.Equal(t, second.Run.ChartHash, stored.ChartHash)

			third, err := e.Execute(ctx, p)
			require.NoError(t, err)
			assert.False(t, third.ChartWritten, "redrawn chart is current")
		})
	}
}

func TestEngine_Execute_DrawsChartSkippedEarlier(t *testing.T) {
	s := setupTestStore(t)
	p := setupPlan(t, threeGroupsCSV)
	ctx := context.Background()

	bare, err := New(ctx, s, NewFixedGenerator("run-1"),
		WithLogger(testutil.DiscardLogger()), WithoutCharts())
	require.NoError(t, err)
	_, err = bare.Execute(ctx, p)
	require.NoError(t, err)

	res, err := newTestEngine(t, s).Execute(ctx, p)
	require.NoError(t, err)
	assert.False(t, res.Inserted)
	assert.True(t, res.ChartWritten)
	assert.FileExists(t, res.ChartPath)
}

func TestEngine_Execute_ChangedDataCreatesRun(t *testing.T) {
	s := setupTestStore(t)
	e := newTestEngine(t, s, "run-1", "run-2")
	p := setupPlan(t, threeGroupsCSV)
	ctx := context.Background()

	_, err := e.Execute(ctx, p)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(p.Dir, "data.csv"), []byte(threeGroupsCSV+"C,9.9\n"), 0o644))
	res, err := e.Execute(ctx, p)
	require.NoError(t, err)
	assert.True(t, res.Inserted)
	assert.Equal(t, "run-2", res.Run.ID)
	assert.Equal(t, int64(2), res.Run.Seq)
}

func TestEngine_New_ResumesClock(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := setupPlan(t, threeGroupsCSV)

	_, err := newTestEngine(t, s, "run-1").Execute(ctx, p)
	require.NoError(t, err)

	e := newTestEngine(t, s, "run-2")
	assert.Equal(t, int64(1), e.Clock().Current())

	p.Request.Alpha = 0.01
	res, err := e.Execute(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Run.Seq)
}

func TestEngine_Execute_SeqFollowsOtherWriters(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	p := setupPlan(t, threeGroupsCSV)

	watcher := newTestEngine(t, s, "run-2")
	other := newTestEngine(t, s, "run-1")

	first, err := other.Execute(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Run.Seq)

	p.Request.Alpha = 0.01
	second, err := watcher.Execute(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Run.Seq, "clock catches up with the store")
}

func TestEngine_WithClock(t *testing.T) {
	s := setupTestStore(t)
	e, err := New(context.Background(), s, NewFixedGenerator(), WithClock(NewClockAt(99)))
	require.NoError(t, err)
	assert.Equal(t, int64(99), e.Clock().Current())
}

func TestEngine_WithoutCharts(t *testing.T) {
	s := setupTestStore(t)
	e, err := New(context.Background(), s, NewFixedGenerator("run-1"),
		WithLogger(testutil.DiscardLogger()), WithoutCharts())
	require.NoError(t, err)
	p := setupPlan(t, threeGroupsCSV)

	res, err := e.Execute(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, res.Inserted)
	assert.False(t, res.ChartWritten)
	assert.NoFileExists(t, res.ChartPath)
}

func TestEngine_Execute_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *model.Plan)
		check  func(t *testing.T, err error)
	}{
		{
			name:   "missing input",
			mutate: func(p *model.Plan) { p.Input = "nope.csv" },
			check: func(t *testing.T, err error) {
				assert.True(t, IsLoadError(err))
			},
		},
		{
			name:   "missing column",
			mutate: func(p *model.Plan) { p.Request.ResponseCol = "weight" },
			check: func(t *testing.T, err error) {
				assert.True(t, IsAnalysisError(err))
				assert.True(t, analysis.IsCode(err, analysis.ErrCodeMissingColumn))
			},
		},
		{
			name:   "unknown control",
			mutate: func(p *model.Plan) { p.Request.Control = "Z" },
			check: func(t *testing.T, err error) {
				assert.True(t, IsAnalysisError(err))
				assert.True(t, analysis.IsCode(err, analysis.ErrCodeUnknownControl))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupTestStore(t)
			e := newTestEngine(t, s)
			p := setupPlan(t, threeGroupsCSV)
			tt.mutate(p)

			res, err := e.Execute(context.Background(), p)
			require.Error(t, err)
			assert.Nil(t, res)
			tt.check(t, err)

			var re *RuntimeError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, "fig1", re.Plan)
		})
	}
}

func TestEngine_Execute_ChartFailureKeepsRun(t *testing.T) {
	s := setupTestStore(t)
	e := newTestEngine(t, s, "run-1")
	p := setupPlan(t, threeGroupsCSV)
	p.Chart.Output = "fig.bmp"

	res, err := e.Execute(context.Background(), p)
	require.Error(t, err)
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeChartFailed, re.Code)

	require.NotNil(t, res)
	assert.True(t, res.Inserted, "run is stored before the chart is drawn")
}

func TestResolve(t *testing.T) {
	assert.Equal(t, filepath.Join("plans", "data.csv"), Resolve("plans", "data.csv"))
	assert.Equal(t, "/abs/data.csv", Resolve("plans", "/abs/data.csv"))
	assert.Equal(t, "data.csv", Resolve("", "data.csv"))
	assert.Equal(t, "", Resolve("plans", ""))
}
