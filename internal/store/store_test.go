package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_ReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	_, _, err = s.WriteRun(ctx, createTestRun("run-1", "fig1", "data-a", 1))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	for i := 0; i < 2; i++ {
		s, err = Open(path)
		require.NoError(t, err, "reopen %d", i)
		runs, err := s.ListRuns(ctx, RunFilter{})
		require.NoError(t, err)
		assert.Len(t, runs, 1)
		require.NoError(t, s.Close())
	}
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, inserted, err := s.WriteRun(context.Background(), createTestRun("run-1", "fig1", "data-a", 1))
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestOpen_MissingDirectory(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "no", "such", "runs.db"))
	assert.Error(t, err)
}

func TestClose(t *testing.T) {
	assert.NoError(t, (&Store{}).Close(), "zero Store")

	s := createTestStore(t)
	require.NoError(t, s.Close())
	_ = s.Close()
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.pragma, func(t *testing.T) {
			assert.NoError(t, s.verifyPragma(tt.pragma, tt.want))
		})
	}
}

// Schema table tests

func TestSchema_Tables(t *testing.T) {
	s := createTestStore(t)

	want := map[string][]string{
		"runs":        {"id", "seq", "plan_name", "plan_hash", "dataset_hash", "request", "chart_hash", "groups", "dropped"},
		"comparisons": {"run_id", "ordinal", "group1", "group2", "p_value", "reject", "stars"},
		"summaries":   {"run_id", "ordinal", "grp", "mean", "se", "letters"},
		"anova":       {"run_id", "ordinal", "f", "p_value"},
	}
	for table, cols := range want {
		have := columns(t, s, table)
		for _, c := range cols {
			if !have[c] {
				t.Errorf("table %s: column %q missing", table, c)
			}
		}
	}
}

func columns(t *testing.T, s *Store, table string) map[string]bool {
	t.Helper()
	rows, err := s.db.Query("SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		t.Fatalf("table_info(%s): %v", table, err)
	}
	defer rows.Close()
	out := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan: %v", err)
		}
		out[name] = true
	}
	if len(out) == 0 {
		t.Fatalf("table %s does not exist", table)
	}
	return out
}

func TestSchema_RunsIndexes(t *testing.T) {
	s := createTestStore(t)

	for _, idx := range []string{"idx_runs_seq", "idx_runs_plan"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='index' AND name=?", idx,
		).Scan(&name)
		if err != nil {
			t.Errorf("index %q not found: %v", idx, err)
		}
	}
}

// Constraint tests

func TestConstraint_RunsUniquePlanDataset(t *testing.T) {
	s := createTestStore(t)

	insert := func(id string) error {
		_, err := s.db.Exec(`
			INSERT INTO runs (id, seq, plan_name, plan_hash, dataset_hash, source, test, request,
			                  engine_version, created_at)
			VALUES (?, 1, 'p', 'ph', 'dh', 'data.csv', 'tukey', '{}', '0', '')
		`, id)
		return err
	}
	if err := insert("run-1"); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if err := insert("run-2"); err == nil {
		t.Error("expected UNIQUE(plan_hash, dataset_hash) violation")
	}
}

func TestConstraint_ForeignKeyComparisonToRun(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`
		INSERT INTO comparisons (run_id, ordinal, factor, group1, group2, n1, n2, reject, stars)
		VALUES ('missing', 0, '', 'a', 'b', 1, 1, 0, 'ns')
	`)
	if err == nil {
		t.Error("expected foreign key violation for comparison without run")
	}
}

// Schema version tests

func TestSchemaVersion_Stamped(t *testing.T) {
	s := createTestStore(t)

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, schemaVersion, version)
}

func TestSchemaVersion_RejectsNewerDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion+1))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}
