package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/roach88/labstat/internal/compiler"
	"github.com/roach88/labstat/internal/engine"
	"github.com/roach88/labstat/internal/model"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Plans  []string                   `json:"plans,omitempty"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <plans>",
		Short: "Check analysis plans without running them",
		Long: `Compile and check CUE analysis plans without loading any data.

<plans> is a directory of .cue files or a single file. Every plan is
checked (test name, columns, alpha, group order, chart format) and its
input file must exist. All problems are reported, not just the first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	if err := opts.setup(cmd); err != nil {
		return err
	}
	formatter := opts.formatter(cmd)

	loadResult, loadErrors := LoadPlans(path, LoadModeCollectAll)

	// Handle load errors (path not found, no files, CUE syntax, etc.)
	if loadResult == nil {
		return outputValidateError(formatter, loadErrors[0])
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, path)

	var validationErrors []compiler.ValidationError
	for _, err := range loadErrors {
		validationErrors = append(validationErrors, toValidationError(err))
	}
	for _, p := range loadResult.Plans {
		formatter.VerboseLog("Validating plan: %s", p.Name)
	}
	validationErrors = append(validationErrors, compiler.ValidatePlans(loadResult.Plans)...)
	validationErrors = append(validationErrors, checkInputs(loadResult.Plans)...)

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}
	return outputValidateSuccess(formatter, loadResult.Plans)
}

// checkInputs reports plans whose input file does not exist.
func checkInputs(plans []*model.Plan) []compiler.ValidationError {
	var errs []compiler.ValidationError
	for _, p := range plans {
		if p.Input == "" {
			continue
		}
		path := engine.Resolve(p.Dir, p.Input)
		if _, err := os.Stat(path); err != nil {
			errs = append(errs, compiler.ValidationError{
				Plan:    p.Name,
				Field:   "input",
				Message: fmt.Sprintf("input file not found: %s", path),
				Code:    ErrCodeNotFound,
			})
		}
	}
	return errs
}

// toValidationError converts a loader error to a validation error.
func toValidationError(err error) compiler.ValidationError {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return compiler.ValidationError{
			Field:   "load",
			Message: loadErr.Message,
			Code:    loadErr.Code,
			Line:    getLineFromCuePos(loadErr.Pos),
		}
	}
	return compiler.ValidationError{Field: "load", Message: err.Error(), Code: ErrCodeGeneric}
}

// getLineFromCuePos extracts line number from a token.Pos.
func getLineFromCuePos(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, plans []*model.Plan) error {
	names := make([]string, len(plans))
	for i, p := range plans {
		names[i] = p.Name
	}
	if formatter.Format == FormatJSON {
		return formatter.Success(ValidationResult{Valid: true, Plans: names})
	}

	fmt.Fprintf(formatter.Writer, "✓ %d plan(s) valid\n", len(plans))
	for _, n := range names {
		fmt.Fprintf(formatter.Writer, "  %s\n", n)
	}
	return nil
}

// outputValidateError outputs a load failure that prevented validation.
func outputValidateError(formatter *OutputFormatter, err error) error {
	code, message := ErrCodeGeneric, err.Error()
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		code, message = loadErr.Code, loadErr.Message
	}
	_ = formatter.Error(code, message, nil)
	// Load errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == FormatJSON {
		data := ValidationResult{Valid: false, Errors: errs}
		if err := formatter.ErrorWithData(errs[0].Code, errs[0].Message, data); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s\n\n", err.Error())
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
