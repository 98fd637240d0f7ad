package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTestKind(t *testing.T) {
	tests := map[string]TestKind{
		"ttest":   TestTTest,
		"t-test":  TestTTest,
		"teste_t": TestTTest,
		"Tukey":   TestTukey,
		"dunnet":  TestDunnett,
		"DUNNETT": TestDunnett,
		" anova ": TestANOVA,
	}
	for in, want := range tests {
		got, err := ParseTestKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseTestKind("kruskal")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown test")
}

func TestGroupSummaryJSONNaN(t *testing.T) {
	s := GroupSummary{Group: "Col-0", N: 1, Mean: 3, SD: math.NaN(), SE: math.NaN(), PValue: math.NaN()}

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded["sd"])
	assert.Nil(t, decoded["p_value"])
	assert.Equal(t, 3.0, decoded["mean"])
	assert.Equal(t, "Col-0", decoded["group"])
}

func TestComparisonJSONInf(t *testing.T) {
	c := Comparison{Group1: "A", Group2: "B", Statistic: math.Inf(-1), PValue: 0}

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "-Inf", decoded["statistic"])
	assert.Equal(t, 0.0, decoded["p_value"])
}

func TestAnalysisSummaryLookup(t *testing.T) {
	a := &Analysis{Summaries: []GroupSummary{
		{Factor: "1h", Group: "A", Mean: 1},
		{Factor: "2h", Group: "A", Mean: 2},
	}}

	s, ok := a.Summary("2h", "A")
	require.True(t, ok)
	assert.Equal(t, 2.0, s.Mean)

	_, ok = a.Summary("3h", "A")
	assert.False(t, ok)
}
