package analysis

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes analysis errors.
type ErrorCode string

const (
	// ErrCodeMissingColumn indicates a requested column is not in the table.
	ErrCodeMissingColumn ErrorCode = "MISSING_COLUMN"

	// ErrCodeGroupCount indicates the test cannot run on this many groups.
	ErrCodeGroupCount ErrorCode = "GROUP_COUNT"

	// ErrCodeInsufficientData indicates too few observations for the test.
	ErrCodeInsufficientData ErrorCode = "INSUFFICIENT_DATA"

	// ErrCodeUnknownControl indicates the control group has no observations.
	ErrCodeUnknownControl ErrorCode = "UNKNOWN_CONTROL"

	// ErrCodeUnknownGroup indicates the group order names an absent group.
	ErrCodeUnknownGroup ErrorCode = "UNKNOWN_GROUP"

	// ErrCodeInvalidAlpha indicates a significance level outside (0, 1).
	ErrCodeInvalidAlpha ErrorCode = "INVALID_ALPHA"

	// ErrCodeNonNumeric indicates a response cell that is not a number.
	ErrCodeNonNumeric ErrorCode = "NON_NUMERIC"

	// ErrCodeUnknownTest indicates an unsupported test name.
	ErrCodeUnknownTest ErrorCode = "UNKNOWN_TEST"
)

// Error is an analysis failure with a stable code.
type Error struct {
	Code    ErrorCode
	Message string
	// Factor is the factor level being analysed, if any.
	Factor string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Factor != "" {
		return fmt.Sprintf("%s: %s (factor=%s)", e.Code, e.Message, e.Factor)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
