package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labstat/internal/testutil"
)

// threeGroupsCSV holds groups A, B and C; B differs from the other two.
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

const plansCUE = `package plans

plan: fig1: {
	input:   "data.csv"
	test:    "dunnett"
	columns: {group: "name", response: "value"}
	control: "A"
	chart: {title: "Fig 1", output: "out/fig1.png", width: 4, height: 3, dpi: 72}
}

plan: fig2: {
	input:   "data.csv"
	test:    "tukey"
	columns: {group: "name", response: "value"}
}
`

// isolateConfig keeps the user's config file and LABSTAT_* variables out
// of a test.
func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	for _, key := range []string{"LABSTAT_ALPHA", "LABSTAT_DB", "LABSTAT_FORMAT", "LABSTAT_CHART_WIDTH", "LABSTAT_CHART_HEIGHT", "LABSTAT_CHART_DPI"} {
		t.Setenv(key, "")
	}
}

// setupPlansDir writes data.csv and plans.cue to a temp directory.
func setupPlansDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "data.csv", threeGroupsCSV)
	testutil.WriteFile(t, dir, "plans.cue", plansCUE)
	return dir
}

// execute runs cmd with args and returns its combined output.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// executeJSON runs cmd with JSON output on stdout only and decodes the envelope.
func executeJSON(t *testing.T, cmd *cobra.Command, args ...string) (CLIResponse, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp), "stdout: %s\nstderr: %s", out.String(), errOut.String())
	return resp, err
}

func dbPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "runs.db")
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
