// Package testutil provides deterministic helpers shared by tests and the
// scenario harness: predictable run ids, fixture files and a silent logger.
package testutil
