package store

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/roach88/labstat/internal/model"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a run with a small Dunnett analysis.
func createTestRun(id, planName, datasetHash string, seq int64) model.Run {
	req := model.Request{
		Test:        model.TestDunnett,
		GroupCol:    "name",
		ResponseCol: "value",
		Control:     "WT",
		Alpha:       0.05,
	}
	return model.Run{
		ID:            id,
		Seq:           seq,
		PlanName:      planName,
		PlanHash:      "plan-" + planName,
		DatasetHash:   datasetHash,
		Source:        "data.xlsx",
		Sheet:         "fig1",
		Request:       req,
		ChartPath:     "fig1.png",
		EngineVersion: "0.1.0",
		CreatedAt:     "2026-01-02T03:04:05Z",
		Analysis: &model.Analysis{
			Request: req,
			Groups:  []string{"WT", "mut&1"},
			Comparisons: []model.Comparison{{
				Group1: "WT", Group2: "mut&1", N1: 3, N2: 3,
				Estimate: 1.5, Statistic: 4.2, DF: 4, PValue: 0.013,
				Lower: 0.4, Upper: 2.6, Reject: true, Stars: "*",
			}},
			Summaries: []model.GroupSummary{
				{Group: "WT", N: 3, Mean: 1, SD: 0.1, SE: 0.0577, PValue: math.NaN()},
				{Group: "mut&1", N: 3, Mean: 2.5, SD: 0.3, SE: 0.173, PValue: 0.013, Significance: "*", Stars: "*"},
			},
			Anova: []model.AnovaTable{{
				SSBetween: 3.375, SSWithin: 0.2, DFBetween: 1, DFWithin: 4,
				MSBetween: 3.375, MSWithin: 0.05, F: 67.5, PValue: 0.0012,
			}},
			Skipped: []model.SkippedLevel{{Factor: "0h", Reason: "level has 1 groups"}},
			Dropped: 2,
		},
	}
}
