package harness

import (
	"context"
	"fmt"

	"github.com/roach88/labstat/internal/analysis"
	"github.com/roach88/labstat/internal/engine"
	"github.com/roach88/labstat/internal/model"
	"github.com/roach88/labstat/internal/sheet"
	"github.com/roach88/labstat/internal/store"
	"github.com/roach88/labstat/internal/table"
	"github.com/roach88/labstat/internal/testutil"
)

// Harness holds the per-scenario store and deterministic generators.
type Harness struct {
	store *store.Store
	clock *engine.Clock
	ids   *testutil.SequentialIDs
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Build the table (inline rows or the input file)
//  2. Extract observations and run the analysis
//  3. Store the run and read it back
//  4. Evaluate assertions against the stored analysis
//
// The returned error is reserved for infrastructure failures; a failing
// analysis is part of the result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store: st,
		clock: engine.NewClock(),
		ids:   testutil.NewSequentialIDs(scenario.Name),
	}
	return h.run(context.Background(), scenario)
}

func (h *Harness) run(ctx context.Context, s *Scenario) (*Result, error) {
	tbl, err := loadTable(s)
	if err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	result := NewResult()
	req := s.Request.Model()
	obs, dropped, err := analysis.Extract(tbl, req)
	var a *model.Analysis
	if err == nil {
		a, err = analysis.Run(obs, req)
	}
	if err != nil {
		result.Err = err
		result.ErrorCode = string(analysis.CodeOf(err))
	} else {
		a.Dropped = dropped
		run, err := h.record(ctx, s, obs, a)
		if err != nil {
			return nil, err
		}
		result.RunID = run.ID
		result.Analysis = run.Analysis
	}

	for _, msg := range EvaluateAssertions(result, s.Assertions) {
		result.AddError(msg)
	}
	if result.Err != nil && !expectsError(s.Assertions) {
		result.AddError(fmt.Sprintf("analysis failed: %v", result.Err))
	}
	return result, nil
}

// loadTable returns the scenario's data as a table.
func loadTable(s *Scenario) (*table.Table, error) {
	if s.Table != nil {
		return &table.Table{Name: s.Name, Columns: s.Table.Columns, Rows: s.Table.Rows}, nil
	}
	return sheet.Load(s.InputPath(), s.Sheet)
}

// record stores the analysis and reads it back.
func (h *Harness) record(ctx context.Context, s *Scenario, obs []model.Observation, a *model.Analysis) (model.Run, error) {
	source := s.Input
	if source == "" {
		source = "inline"
	}
	plan := model.Plan{Name: s.Name, Input: source, Sheet: s.Sheet, Request: a.Request}
	planHash, err := model.PlanHash(plan)
	if err != nil {
		return model.Run{}, err
	}
	datasetHash, err := model.DatasetHash(obs)
	if err != nil {
		return model.Run{}, err
	}

	id, _, err := h.store.WriteRun(ctx, model.Run{
		ID:            h.ids.Generate(),
		Seq:           h.clock.Next(),
		PlanName:      s.Name,
		PlanHash:      planHash,
		DatasetHash:   datasetHash,
		Source:        source,
		Sheet:         s.Sheet,
		Request:       a.Request,
		EngineVersion: model.EngineVersion,
		CreatedAt:     "1970-01-01T00:00:00Z",
		Analysis:      a,
	})
	if err != nil {
		return model.Run{}, fmt.Errorf("failed to store run: %w", err)
	}
	run, err := h.store.ReadRun(ctx, id)
	if err != nil {
		return model.Run{}, fmt.Errorf("failed to read run back: %w", err)
	}
	return run, nil
}

func expectsError(assertions []Assertion) bool {
	for _, a := range assertions {
		if a.Type == AssertError {
			return true
		}
	}
	return false
}
