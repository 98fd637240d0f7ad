package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labstat/internal/compiler"
	"github.com/roach88/labstat/internal/testutil"
)

func TestValidateValidPlans(t *testing.T) {
	isolateConfig(t)
	dir := setupPlansDir(t)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 2 plan(s) valid")
	assert.Contains(t, out, "fig1")
	assert.Contains(t, out, "fig2")
}

func TestValidateValidPlansJSON(t *testing.T) {
	isolateConfig(t)
	dir := setupPlansDir(t)

	resp, err := executeJSON(t, NewValidateCommand(&RootOptions{Format: "json"}), dir)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, true, data["valid"])
	assert.Equal(t, []any{"fig1", "fig2"}, data["plans"])
}

func TestValidateNonExistentPath(t *testing.T) {
	isolateConfig(t)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestValidateReportsAllErrors(t *testing.T) {
	isolateConfig(t)
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "data.csv", threeGroupsCSV)
	testutil.WriteFile(t, dir, "plans.cue", `package plans

plan: bad: {
	input:   "data.csv"
	test:    "tukey"
	columns: {group: "name", response: "value"}
	alpha:   2
	control: "A"
	chart: output: "fig.bmp"
}

plan: missing: {
	input:   "gone.csv"
	test:    "anova"
	columns: {group: "name", response: "value"}
}
`)

	resp, err := executeJSON(t, NewValidateCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "error", resp.Status)

	var codes []string
	for _, e := range resp.Data.(map[string]any)["errors"].([]any) {
		codes = append(codes, e.(map[string]any)["code"].(string))
	}
	assert.ElementsMatch(t, []string{
		compiler.ErrAlphaRange,
		compiler.ErrControlNotDunnett,
		compiler.ErrChartFormat,
		ErrCodeNotFound,
	}, codes)
}

func TestValidateCompileErrorText(t *testing.T) {
	isolateConfig(t)
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "plans.cue", "package plans\n\nplan: p: {\n\tinput: \"d.csv\"\n\ttest: \"kruskal\"\n\tcolumns: {group: \"g\", response: \"y\"}\n}\n")

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "line 5")
	assert.Contains(t, out, compiler.ErrUnknownTest)
	assert.Contains(t, out, "kruskal")
}
