package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/labstat/internal/model"
)

// RunFilter selects runs for ListRuns. Zero fields match everything.
type RunFilter struct {
	PlanName string
	// Limit keeps only the most recent runs; 0 means no limit.
	Limit int
}

const runColumns = `id, seq, plan_name, plan_hash, dataset_hash, source, sheet, request,
	chart_path, chart_hash, engine_version, created_at`

// ListRuns returns run headers without their analysis rows.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if no runs match.
func (s *Store) ListRuns(ctx context.Context, f RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if f.PlanName != "" {
		query += ` WHERE plan_name = ?`
		args = append(args, f.PlanName)
	}
	if f.Limit > 0 {
		// Take the newest runs, then restore ascending order.
		query = `SELECT * FROM (` + query + ` ORDER BY seq DESC, id COLLATE BINARY DESC LIMIT ?)`
		args = append(args, f.Limit)
	}
	query += ` ORDER BY seq ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []model.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun retrieves a run by ID with its complete analysis.
// Returns an error wrapping sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+`, groups, factors, skipped, dropped FROM runs WHERE id = ?`, id)

	var (
		run                      model.Run
		reqJSON                  string
		groups, factors, skipped string
		dropped                  int
	)
	err := row.Scan(&run.ID, &run.Seq, &run.PlanName, &run.PlanHash, &run.DatasetHash,
		&run.Source, &run.Sheet, &reqJSON, &run.ChartPath, &run.ChartHash, &run.EngineVersion, &run.CreatedAt,
		&groups, &factors, &skipped, &dropped)
	if err != nil {
		return model.Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	if run.Request, err = unmarshalRequest(reqJSON); err != nil {
		return model.Run{}, err
	}

	a := &model.Analysis{Request: run.Request, Dropped: dropped}
	if a.Groups, err = unmarshalStrings(groups); err != nil {
		return model.Run{}, err
	}
	if a.Factors, err = unmarshalStrings(factors); err != nil {
		return model.Run{}, err
	}
	if a.Skipped, err = unmarshalSkipped(skipped); err != nil {
		return model.Run{}, err
	}
	if a.Comparisons, err = s.readComparisons(ctx, id); err != nil {
		return model.Run{}, err
	}
	if a.Summaries, err = s.readSummaries(ctx, id); err != nil {
		return model.Run{}, err
	}
	if a.Anova, err = s.readAnova(ctx, id); err != nil {
		return model.Run{}, err
	}
	run.Analysis = a
	return run, nil
}

// FindRun returns the run recorded for a plan and dataset hash, if any.
func (s *Store) FindRun(ctx context.Context, planHash, datasetHash string) (model.Run, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE plan_hash = ? AND dataset_hash = ?`,
		planHash, datasetHash)
	run, err := scanRun(row)
	if IsNotFound(err) {
		return model.Run{}, false, nil
	}
	if err != nil {
		return model.Run{}, false, err
	}
	return run, true, nil
}

// ResolveRunID expands a unique ID prefix to the full run ID.
func (s *Store) ResolveRunID(ctx context.Context, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", fmt.Errorf("empty run id")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM runs WHERE substr(id, 1, ?) = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC LIMIT 2
	`, len(prefix), prefix)
	if err != nil {
		return "", fmt.Errorf("resolve run id: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("resolve run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("resolve run id: %w", err)
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("run %q: %w", prefix, sql.ErrNoRows)
	case 1:
		return ids[0], nil
	}
	return "", fmt.Errorf("run id prefix %q is ambiguous", prefix)
}

// MaxSeq returns the highest seq recorded, or 0 for an empty store.
// Used to resume the logical clock.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM runs`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq.Int64, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (model.Run, error) {
	var run model.Run
	var reqJSON string
	err := sc.Scan(&run.ID, &run.Seq, &run.PlanName, &run.PlanHash, &run.DatasetHash,
		&run.Source, &run.Sheet, &reqJSON, &run.ChartPath, &run.ChartHash, &run.EngineVersion, &run.CreatedAt)
	if err != nil {
		return model.Run{}, fmt.Errorf("scan run: %w", err)
	}
	if run.Request, err = unmarshalRequest(reqJSON); err != nil {
		return model.Run{}, err
	}
	return run, nil
}

func (s *Store) readComparisons(ctx context.Context, runID string) ([]model.Comparison, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT factor, group1, group2, n1, n2, estimate, statistic, df, p_value,
		       lower_ci, upper_ci, reject, stars
		FROM comparisons
		WHERE run_id = ?
		ORDER BY ordinal ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query comparisons: %w", err)
	}
	defer rows.Close()

	out := []model.Comparison{}
	for rows.Next() {
		var c model.Comparison
		var est, stat, df, p, lo, hi sql.NullFloat64
		if err := rows.Scan(&c.Factor, &c.Group1, &c.Group2, &c.N1, &c.N2,
			&est, &stat, &df, &p, &lo, &hi, &c.Reject, &c.Stars); err != nil {
			return nil, fmt.Errorf("scan comparison: %w", err)
		}
		c.Estimate, c.Statistic, c.DF = fromNullable(est), fromNullable(stat), fromNullable(df)
		c.PValue, c.Lower, c.Upper = fromNullable(p), fromNullable(lo), fromNullable(hi)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comparisons: %w", err)
	}
	return out, nil
}

func (s *Store) readSummaries(ctx context.Context, runID string) ([]model.GroupSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT factor, grp, n, mean, sd, se, p_value, significance, stars, letters
		FROM summaries
		WHERE run_id = ?
		ORDER BY ordinal ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	out := []model.GroupSummary{}
	for rows.Next() {
		var g model.GroupSummary
		var mean, sd, se, p sql.NullFloat64
		if err := rows.Scan(&g.Factor, &g.Group, &g.N, &mean, &sd, &se, &p,
			&g.Significance, &g.Stars, &g.Letters); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		g.Mean, g.SD, g.SE, g.PValue = fromNullable(mean), fromNullable(sd), fromNullable(se), fromNullable(p)
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return out, nil
}

func (s *Store) readAnova(ctx context.Context, runID string) ([]model.AnovaTable, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT factor, ss_between, ss_within, df_between, df_within, ms_between, ms_within, f, p_value
		FROM anova
		WHERE run_id = ?
		ORDER BY ordinal ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query anova: %w", err)
	}
	defer rows.Close()

	var out []model.AnovaTable
	for rows.Next() {
		var t model.AnovaTable
		var ssb, ssw, msb, msw, f, p sql.NullFloat64
		if err := rows.Scan(&t.Factor, &ssb, &ssw, &t.DFBetween, &t.DFWithin, &msb, &msw, &f, &p); err != nil {
			return nil, fmt.Errorf("scan anova: %w", err)
		}
		t.SSBetween, t.SSWithin = fromNullable(ssb), fromNullable(ssw)
		t.MSBetween, t.MSWithin = fromNullable(msb), fromNullable(msw)
		t.F, t.PValue = fromNullable(f), fromNullable(p)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate anova: %w", err)
	}
	return out, nil
}
