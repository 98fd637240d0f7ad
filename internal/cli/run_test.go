package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labstat/internal/testutil"
)

func TestRunPlans(t *testing.T) {
	isolateConfig(t)
	dir := setupPlansDir(t)
	db := dbPath(t)

	out, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}), "--db", db, dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ fig1: recorded run")
	assert.Contains(t, out, "✓ fig2: recorded run")
	assert.Contains(t, out, "chart "+filepath.Join(dir, "out", "fig1.png"))
	assert.FileExists(t, filepath.Join(dir, "out", "fig1.png"))
	assert.FileExists(t, db)

	// Unchanged plans on unchanged data reuse their runs.
	out, err = execute(t, NewRunCommand(&RootOptions{Format: "text"}), "--db", db, dir)
	require.NoError(t, err)
	assert.Contains(t, out, "= fig1: unchanged")
	assert.Contains(t, out, "= fig2: unchanged")
}

func TestRunPlans_SelectAndJSON(t *testing.T) {
	isolateConfig(t)
	dir := setupPlansDir(t)

	resp, err := executeJSON(t, NewRunCommand(&RootOptions{Format: "json"}),
		"--db", dbPath(t), "--plan", "fig2", "--no-chart", dir)
	require.NoError(t, err)

	runs := resp.Data.([]any)
	require.Len(t, runs, 1)
	run := runs[0].(map[string]any)
	assert.Equal(t, "fig2", run["plan"])
	assert.Equal(t, true, run["inserted"])
	assert.Equal(t, float64(1), run["seq"])
	assert.NotEmpty(t, run["run_id"])
	assert.NoFileExists(t, filepath.Join(dir, "out", "fig1.png"))
}

func TestRunPlans_UnknownPlan(t *testing.T) {
	isolateConfig(t)
	dir := setupPlansDir(t)

	_, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}), "--db", dbPath(t), "--plan", "fig9", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "fig9")
}

func TestRunPlans_FailureExitCode(t *testing.T) {
	isolateConfig(t)
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "data.csv", threeGroupsCSV)
	testutil.WriteFile(t, dir, "plans.cue", `package plans

plan: good: {
	input:   "data.csv"
	test:    "anova"
	columns: {group: "name", response: "value"}
}

plan: bad: {
	input:   "data.csv"
	test:    "dunnett"
	columns: {group: "name", response: "value"}
	control: "WT"
}
`)

	out, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}), "--db", dbPath(t), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 of 2 plan(s) failed")
	assert.Contains(t, out, "✓ good")
	assert.Contains(t, out, "✗ bad")
	assert.Contains(t, out, "UNKNOWN_CONTROL")
}

func TestRunPlans_InvalidPlan(t *testing.T) {
	isolateConfig(t)
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "plans.cue", `package plans

plan: p: {
	input:   "data.csv"
	test:    "tukey"
	columns: {group: "name", response: "name"}
}
`)

	_, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}), "--db", dbPath(t), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed")
}

func TestRunPlans_NonExistentDir(t *testing.T) {
	isolateConfig(t)

	_, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}), "--db", dbPath(t), "/nonexistent/directory")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "plans path not found")
}

func TestRunWatch(t *testing.T) {
	isolateConfig(t)
	dir := setupPlansDir(t)
	db := dbPath(t)

	cmd := NewRunCommand(&RootOptions{Format: "text"})
	buf := &syncBuffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", db, "--watch", "--no-chart", "--debounce", "20ms", "--plan", "fig2", dir})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errChan := make(chan error, 1)
	go func() {
		errChan <- cmd.ExecuteContext(ctx)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "✓ fig2: recorded run")
	}, 5*time.Second, 20*time.Millisecond)

	// A change to the input re-runs the plan on the new data.
	data, err := os.ReadFile(filepath.Join(dir, "data.csv"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.csv"), append(data, []byte("C,4.8\n")...), 0o644))

	require.Eventually(t, func() bool {
		return strings.Count(buf.String(), "✓ fig2: recorded run") == 2
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errChan:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("command did not respect context cancellation")
	}
	assert.Contains(t, buf.String(), "Watching 1 plan(s)")
}

func TestHistoryAndShow(t *testing.T) {
	isolateConfig(t)
	dir := setupPlansDir(t)
	db := dbPath(t)

	_, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}), "--db", db, "--no-chart", dir)
	require.NoError(t, err)

	out, err := execute(t, NewHistoryCommand(&RootOptions{Format: "text"}), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "fig1")
	assert.Contains(t, out, "fig2")

	resp, err := executeJSON(t, NewHistoryCommand(&RootOptions{Format: "json"}), "--db", db, "--plan", "fig1")
	require.NoError(t, err)
	runs := resp.Data.([]any)
	require.Len(t, runs, 1)
	id := runs[0].(map[string]any)["id"].(string)

	out, err = execute(t, NewShowCommand(&RootOptions{Format: "text"}), "--db", db, id[:18])
	require.NoError(t, err)
	assert.Contains(t, out, "run "+id)
	assert.Contains(t, out, "plan fig1")
	assert.Contains(t, out, "dunnett: value by name")

	resp, err = executeJSON(t, NewShowCommand(&RootOptions{Format: "json"}), "--db", db, id)
	require.NoError(t, err)
	run := resp.Data.(map[string]any)
	assert.Equal(t, id, run["id"])
	assert.Len(t, run["analysis"].(map[string]any)["comparisons"], 2)
}

func TestHistory_Limit(t *testing.T) {
	isolateConfig(t)
	dir := setupPlansDir(t)
	db := dbPath(t)

	_, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}), "--db", db, "--no-chart", dir)
	require.NoError(t, err)

	resp, err := executeJSON(t, NewHistoryCommand(&RootOptions{Format: "json"}), "--db", db, "--limit", "1")
	require.NoError(t, err)
	runs := resp.Data.([]any)
	require.Len(t, runs, 1)
	assert.Equal(t, "fig2", runs[0].(map[string]any)["plan_name"])
}

func TestHistory_MissingDatabase(t *testing.T) {
	isolateConfig(t)
	db := dbPath(t)

	_, err := execute(t, NewHistoryCommand(&RootOptions{Format: "text"}), "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")
	assert.NoFileExists(t, db, "history never creates a database")
}

func TestShow_UnknownRun(t *testing.T) {
	isolateConfig(t)
	dir := setupPlansDir(t)
	db := dbPath(t)

	_, err := execute(t, NewRunCommand(&RootOptions{Format: "text"}), "--db", db, "--no-chart", dir)
	require.NoError(t, err)

	out, err := execute(t, NewShowCommand(&RootOptions{Format: "text"}), "--db", db, "zzzz")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}
