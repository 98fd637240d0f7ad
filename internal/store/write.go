package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/labstat/internal/model"
)

// WriteRun inserts a run with its analysis rows in one transaction.
// Returns the run ID and whether a new record was inserted.
//
// Uses ON CONFLICT(plan_hash, dataset_hash) DO NOTHING for idempotency: if
// the same plan already ran on the same data, returns the existing ID and
// inserted=false without touching the child tables.
func (s *Store) WriteRun(ctx context.Context, run model.Run) (id string, inserted bool, err error) {
	if run.Analysis == nil {
		return "", false, fmt.Errorf("write run: analysis is required")
	}
	a := run.Analysis

	reqJSON, err := marshalRequest(run.Request)
	if err != nil {
		return "", false, fmt.Errorf("write run: %w", err)
	}
	groupsJSON, err := marshalStrings(a.Groups)
	if err != nil {
		return "", false, fmt.Errorf("write run: %w", err)
	}
	factorsJSON, err := marshalStrings(a.Factors)
	if err != nil {
		return "", false, fmt.Errorf("write run: %w", err)
	}
	skippedJSON, err := marshalSkipped(a.Skipped)
	if err != nil {
		return "", false, fmt.Errorf("write run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, plan_name, plan_hash, dataset_hash, source, sheet, test, request,
		 chart_path, chart_hash, engine_version, created_at, groups, factors, skipped, dropped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(plan_hash, dataset_hash) DO NOTHING
	`,
		run.ID,
		run.Seq,
		run.PlanName,
		run.PlanHash,
		run.DatasetHash,
		run.Source,
		run.Sheet,
		string(run.Request.Test),
		reqJSON,
		run.ChartPath,
		run.ChartHash,
		run.EngineVersion,
		run.CreatedAt,
		groupsJSON,
		factorsJSON,
		skippedJSON,
		a.Dropped,
	)
	if err != nil {
		return "", false, fmt.Errorf("write run: insert: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("write run: rows affected: %w", err)
	}
	if rows == 0 {
		err = tx.QueryRowContext(ctx, `
			SELECT id FROM runs WHERE plan_hash = ? AND dataset_hash = ?
		`, run.PlanHash, run.DatasetHash).Scan(&id)
		if err != nil {
			return "", false, fmt.Errorf("write run: query existing: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return "", false, fmt.Errorf("write run: commit: %w", err)
		}
		return id, false, nil
	}

	if err := writeComparisons(ctx, tx, run.ID, a.Comparisons); err != nil {
		return "", false, err
	}
	if err := writeSummaries(ctx, tx, run.ID, a.Summaries); err != nil {
		return "", false, err
	}
	if err := writeAnova(ctx, tx, run.ID, a.Anova); err != nil {
		return "", false, err
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("write run: commit: %w", err)
	}
	return run.ID, true, nil
}

func writeComparisons(ctx context.Context, tx *sql.Tx, runID string, cs []model.Comparison) error {
	for i, c := range cs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO comparisons
			(run_id, ordinal, factor, group1, group2, n1, n2, estimate, statistic, df,
			 p_value, lower_ci, upper_ci, reject, stars)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			runID, i, c.Factor, c.Group1, c.Group2, c.N1, c.N2,
			nullable(c.Estimate), nullable(c.Statistic), nullable(c.DF),
			nullable(c.PValue), nullable(c.Lower), nullable(c.Upper),
			c.Reject, c.Stars,
		)
		if err != nil {
			return fmt.Errorf("write comparison %d: %w", i, err)
		}
	}
	return nil
}

func writeSummaries(ctx context.Context, tx *sql.Tx, runID string, ss []model.GroupSummary) error {
	for i, g := range ss {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO summaries
			(run_id, ordinal, factor, grp, n, mean, sd, se, p_value, significance, stars, letters)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			runID, i, g.Factor, g.Group, g.N,
			nullable(g.Mean), nullable(g.SD), nullable(g.SE), nullable(g.PValue),
			g.Significance, g.Stars, g.Letters,
		)
		if err != nil {
			return fmt.Errorf("write summary %d: %w", i, err)
		}
	}
	return nil
}

func writeAnova(ctx context.Context, tx *sql.Tx, runID string, ts []model.AnovaTable) error {
	for i, t := range ts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO anova
			(run_id, ordinal, factor, ss_between, ss_within, df_between, df_within,
			 ms_between, ms_within, f, p_value)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			runID, i, t.Factor,
			nullable(t.SSBetween), nullable(t.SSWithin), t.DFBetween, t.DFWithin,
			nullable(t.MSBetween), nullable(t.MSWithin), nullable(t.F), nullable(t.PValue),
		)
		if err != nil {
			return fmt.Errorf("write anova %d: %w", i, err)
		}
	}
	return nil
}

// SetChartHash records the options of the chart last drawn for a run.
func (s *Store) SetChartHash(ctx context.Context, id, hash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET chart_hash = ? WHERE id = ?`, hash, id)
	if err != nil {
		return fmt.Errorf("set chart hash: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set chart hash: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("set chart hash: run %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// IsNotFound reports whether err means a run does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
