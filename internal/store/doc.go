// Package store provides SQLite-backed run history for labstat.
//
// Every execution of a plan is recorded as a run with its comparisons,
// group summaries and ANOVA tables:
//   - runs: one row per (plan, dataset) pair, identified by a UUIDv7
//   - comparisons, summaries, anova: child rows in analysis order
//
// # Idempotency
//
// UNIQUE(plan_hash, dataset_hash) makes re-running an unchanged plan on
// unchanged data a no-op: WriteRun returns the existing run id.
//
// # Ordering
//
// Runs are ordered by the logical seq column, never by created_at, and all
// list queries use ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// NaN statistics are stored as NULL; infinities are stored as REAL values.
package store
