package harness

import "github.com/roach88/labstat/internal/model"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every assertion held.
	Pass bool `json:"pass"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// RunID is the id the analysis was stored under.
	RunID string `json:"run_id,omitempty"`

	// Analysis is the stored analysis, read back from the store.
	// Nil when the analysis failed.
	Analysis *model.Analysis `json:"analysis,omitempty"`

	// ErrorCode is the analysis error code when the analysis failed.
	ErrorCode string `json:"error_code,omitempty"`

	// Err is the analysis error, if any.
	Err error `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
