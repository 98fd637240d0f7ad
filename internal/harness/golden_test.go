package harness

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labstat/internal/model"
)

func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"dunnett_three_groups", "tukey_three_groups", "unknown_control"} {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)

			// Regenerate with: go test ./internal/harness -run TestRunWithGolden -update
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestSnapshot_Deterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/ttest_by_timepoint.yaml")
	require.NoError(t, err)

	r1, err := Run(s)
	require.NoError(t, err)
	r2, err := Run(s)
	require.NoError(t, err)

	b1, err := Snapshot(s.Name, r1)
	require.NoError(t, err)
	b2, err := Snapshot(s.Name, r2)
	require.NoError(t, err)
	assert.Equal(t, string(b1), string(b2))
	assert.Contains(t, string(b1), `"skipped":[{"factor":"24h"`)
	assert.Contains(t, string(b1), `"factors":["2h","10h","24h"]`)
}

func TestSig4(t *testing.T) {
	assert.Nil(t, sig4(math.NaN()))
	assert.Equal(t, "0.0001999", sig4(0.0001999006774))
	assert.Equal(t, "26.66", sig4(26.662598944591))
	assert.Equal(t, "6.1", sig4(6.099999999999999))
	assert.Equal(t, "1.2e-05", sig4(0.000012))
	assert.Equal(t, "+Inf", sig4(math.Inf(1)))
}

func TestSnapshot_Error(t *testing.T) {
	b, err := Snapshot("bad", &Result{ErrorCode: "GROUP_COUNT"})
	require.NoError(t, err)
	assert.Equal(t, `{"error_code":"GROUP_COUNT","scenario":"bad"}`, string(b))
}

func TestSnapshot_EmptyAnalysis(t *testing.T) {
	b, err := Snapshot("empty", &Result{Analysis: &model.Analysis{Request: model.Request{Test: model.TestANOVA}}})
	require.NoError(t, err)
	assert.Equal(t, `{"anova":[],"comparisons":[],"dropped":0,"factors":[],"groups":[],"scenario":"empty","skipped":[],"summaries":[],"test":"anova"}`, string(b))
}
