// Package engine executes analysis plans and records their runs.
//
// Execute is the whole pipeline for one plan:
//  1. Load the plan's sheet (xlsx or csv)
//  2. Extract observations and run the requested test
//  3. Record the run in the store (idempotent per plan and dataset hash)
//  4. Render the chart when the plan names an output file
//
// Watch keeps a set of plans current: it watches their input files with
// fsnotify, debounces bursts of writes (spreadsheet programs save in several
// steps) and re-executes the affected plans from a single goroutine.
//
// Runs are stamped with a logical seq from Clock, resumed from the store's
// highest seq, and identified by UUIDv7 ids. Ordering never depends on wall
// time; created_at is informational.
package engine
