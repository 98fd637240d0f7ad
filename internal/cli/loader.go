package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/labstat/internal/compiler"
	"github.com/roach88/labstat/internal/model"
)

// LoadMode controls how errors are handled during plan loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the plans loaded from a directory or file.
type LoadResult struct {
	Plans     []*model.Plan
	Dir       string // absolute directory plan inputs resolve against
	FileCount int    // number of CUE files found
}

// LoadError represents an error that occurred during plan loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadPlans loads and compiles the plans declared in path, a directory of
// CUE files or a single .cue file. Every plan's Dir is set to the absolute
// directory of its file.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadPlans(path string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("plans path not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing plans path: %v", err)}}
	}

	dir, args := path, []string{"."}
	cueFiles := []string{path}
	if info.IsDir() {
		cueFiles, err = FindCUEFiles(path)
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
		}
	} else {
		if filepath.Ext(path) != ".cue" {
			return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("not a CUE file: %s", path)}}
		}
		dir, args = filepath.Dir(path), []string{filepath.Base(path)}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}}
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("resolving %s: %v", dir, err)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances(args, &load.Config{Dir: absDir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{Dir: absDir, FileCount: len(cueFiles)}

	plansVal := value.LookupPath(cue.ParsePath("plan"))
	if !plansVal.Exists() {
		return result, []error{&LoadError{Code: ErrCodeNoPlans, Message: fmt.Sprintf("no plans found in %s", path)}}
	}
	iter, err := plansVal.Fields()
	if err != nil {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating plans: %v", err)}}
	}

	var errs []error
	for iter.Next() {
		p, err := compiler.CompilePlan(iter.Value())
		if err != nil {
			errs = append(errs, convertCompileError(err, "plan."+iter.Label()))
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		p.Dir = absDir
		result.Plans = append(result.Plans, p)
	}

	if len(result.Plans) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoPlans, Message: fmt.Sprintf("no plans found in %s", path)})
	}
	return result, errs
}

// SelectPlans returns the plans whose names are listed, in listing order.
// An empty list selects every plan.
func SelectPlans(plans []*model.Plan, names []string) ([]*model.Plan, error) {
	if len(names) == 0 {
		return plans, nil
	}
	byName := make(map[string]*model.Plan, len(plans))
	for _, p := range plans {
		byName[p.Name] = p
	}
	out := make([]*model.Plan, 0, len(names))
	for _, n := range names {
		p, ok := byName[n]
		if !ok {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("no plan named %q", n)}
		}
		out = append(out, p)
	}
	return out, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s.%s: %s", context, compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeNoPlans     = "E008" // No plan declared
	ErrCodeDatabase    = "E009" // Run store unavailable
	ErrCodeInput       = "E010" // Spreadsheet could not be read
	ErrCodeInvalidFlag = "E011" // Flag value rejected
)

// MapFieldToErrorCode maps a compiler error field to a validation error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "input":
		return compiler.ErrInputEmpty
	case "test":
		return compiler.ErrUnknownTest
	case "columns", "columns.group":
		return compiler.ErrGroupColumnEmpty
	case "columns.response":
		return compiler.ErrResponseColumn
	case "columns.factor":
		return compiler.ErrFactorColumn
	case "alpha":
		return compiler.ErrAlphaRange
	case "chart.output":
		return compiler.ErrChartFormat
	case "chart.width", "chart.height", "chart.dpi":
		return compiler.ErrChartSize
	default:
		return ErrCodeGeneric
	}
}
