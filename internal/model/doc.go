// Package model provides the shared types for labstat.
//
// This package contains type definitions plus canonical JSON and content
// hashing. All other internal packages import model; model imports nothing
// internal, so it stays the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - All JSON tags use snake_case
//   - NaN and infinite floats never reach encoding/json directly (see json.go)
//   - Logical clocks (seq) order stored runs, never wall-clock timestamps
package model
