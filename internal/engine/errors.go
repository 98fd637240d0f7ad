package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents a failure while executing a plan.
//
// Runtime errors include:
//   - Load failure: the input file or sheet could not be read
//   - Analysis failure: the data does not support the requested test
//   - Store failure: the run could not be recorded
//   - Chart failure: the figure could not be written
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Plan names the plan being executed.
	Plan string

	// Err is the underlying error.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeLoadFailed indicates the input could not be loaded.
	ErrCodeLoadFailed RuntimeErrorCode = "LOAD_FAILED"

	// ErrCodeAnalysisFailed indicates the analysis rejected the data.
	ErrCodeAnalysisFailed RuntimeErrorCode = "ANALYSIS_FAILED"

	// ErrCodeStoreFailed indicates the run could not be stored.
	ErrCodeStoreFailed RuntimeErrorCode = "STORE_FAILED"

	// ErrCodeChartFailed indicates the chart could not be rendered or saved.
	ErrCodeChartFailed RuntimeErrorCode = "CHART_FAILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Plan != "" {
		return fmt.Sprintf("%s: %s (plan=%s)", e.Code, e.Message, e.Plan)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func newRuntimeError(code RuntimeErrorCode, plan string, err error) *RuntimeError {
	return &RuntimeError{Code: code, Message: err.Error(), Plan: plan, Err: err}
}

// IsLoadError returns true if the error is an input load failure.
// Uses errors.As to handle wrapped errors.
func IsLoadError(err error) bool {
	return hasCode(err, ErrCodeLoadFailed)
}

// IsAnalysisError returns true if the analysis rejected the data.
// Uses errors.As to handle wrapped errors.
func IsAnalysisError(err error) bool {
	return hasCode(err, ErrCodeAnalysisFailed)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}
