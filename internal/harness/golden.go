package harness

import (
	"math"
	"strconv"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/labstat/internal/model"
)

// Snapshot renders a result as canonical JSON for golden comparison.
//
// Numbers are rounded to four significant digits and written as strings,
// so a snapshot pins the published values without depending on the last
// bits of the quadrature. NaN is null.
func Snapshot(name string, result *Result) ([]byte, error) {
	snap := map[string]any{"scenario": name}
	if result.Analysis == nil {
		snap["error_code"] = result.ErrorCode
		return model.MarshalCanonical(snap)
	}
	a := result.Analysis

	summaries := make([]any, len(a.Summaries))
	for i, s := range a.Summaries {
		summaries[i] = map[string]any{
			"factor":       s.Factor,
			"group":        s.Group,
			"n":            s.N,
			"mean":         sig4(s.Mean),
			"se":           sig4(s.SE),
			"p_value":      sig4(s.PValue),
			"significance": s.Significance,
			"stars":        s.Stars,
			"letters":      s.Letters,
		}
	}

	comparisons := make([]any, len(a.Comparisons))
	for i, c := range a.Comparisons {
		comparisons[i] = map[string]any{
			"factor":    c.Factor,
			"group1":    c.Group1,
			"group2":    c.Group2,
			"estimate":  sig4(c.Estimate),
			"statistic": sig4(c.Statistic),
			"p_value":   sig4(c.PValue),
			"reject":    c.Reject,
			"stars":     c.Stars,
		}
	}

	anova := make([]any, len(a.Anova))
	for i, t := range a.Anova {
		anova[i] = map[string]any{
			"factor":  t.Factor,
			"f":       sig4(t.F),
			"p_value": sig4(t.PValue),
		}
	}

	skipped := make([]any, len(a.Skipped))
	for i, s := range a.Skipped {
		skipped[i] = map[string]any{"factor": s.Factor, "reason": s.Reason}
	}

	snap["test"] = string(a.Request.Test)
	snap["groups"] = a.Groups
	snap["factors"] = a.Factors
	snap["summaries"] = summaries
	snap["comparisons"] = comparisons
	snap["anova"] = anova
	snap["skipped"] = skipped
	snap["dropped"] = a.Dropped
	return model.MarshalCanonical(snap)
}

func sig4(f float64) any {
	if math.IsNaN(f) {
		return nil
	}
	return strconv.FormatFloat(f, 'g', 4, 64)
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snap, err := Snapshot(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snap)
	return nil
}
