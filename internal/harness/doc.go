// Package harness runs conformance scenarios against the comparison engine.
//
// A scenario pairs a small data set with a request and the outcome a
// statistician has checked by hand (or against a reference package).
// Scenarios guard the numerics: a change to the quadrature, the letter
// display or the skip rules shows up as a failed expectation.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: dunnett_three_groups
//	description: "B differs from control A, C does not"
//	table:                       # inline data, or `input:` a file
//	  columns: [name, value]
//	  rows:
//	    - [A, 4.2]
//	    - [B, 5.9]
//	request:
//	  test: dunnett
//	  group: name
//	  response: value
//	  control: A
//	assertions:
//	  - type: significant
//	    groups: [B]
//	  - type: p_value
//	    group: B
//	    expect: 0.0002
//	    tolerance: 0.00001
//
// # Assertion Types
//
//   - significant / not_significant: groups (summary marker) or pairs (comparison reject)
//   - letters: compact letter display per group
//   - p_value: summary p of a group, or adjusted p of a pair, within tolerance
//   - error: the analysis fails with the given code
//   - skipped: the factor levels that could not be tested
//   - dropped: the number of incomplete rows ignored
//
// # Determinism
//
// Each scenario runs against a fresh in-memory store with sequential run ids
// and a logical clock, and assertions read the analysis back from the store,
// so persistence is covered by every scenario. RunWithGolden snapshots the
// analysis as canonical JSON with values rounded to four significant digits.
package harness
