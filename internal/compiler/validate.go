package compiler

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/labstat/internal/model"
)

// Validation error codes (E100-E199)
const (
	ErrPlanNameEmpty      = "E100" // plan must be named
	ErrInputEmpty         = "E101" // input path is required
	ErrUnknownTest        = "E102" // test is not supported
	ErrGroupColumnEmpty   = "E103" // group column is required
	ErrResponseColumn     = "E104" // response column missing or reused
	ErrAlphaRange         = "E105" // alpha outside (0, 1)
	ErrFactorColumn       = "E106" // factor column reuses another column
	ErrDuplicateOrder     = "E107" // group listed twice in order
	ErrControlNotDunnett  = "E108" // control given for a test without one
	ErrChartFormat        = "E109" // unsupported chart output extension
	ErrChartSize          = "E110" // negative chart width, height or dpi
	ErrInputFormat        = "E111" // input is not a spreadsheet
	ErrDuplicatePlanName  = "E112" // two plans share a name
	ErrSheetOnDelimited   = "E114" // sheet given for a csv input
	ErrOrderContainsEmpty = "E115" // empty group name in order
)

// inputFormats lists the spreadsheet extensions accepted as plan input.
var inputFormats = []string{"xlsx", "xlsm", "xltx", "xltm", "csv", "tsv", "txt"}

// ValidationError represents a plan validation error.
type ValidationError struct {
	Plan    string `json:"plan,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"` // source line when known
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Plan != "" {
		return fmt.Sprintf("[%s] %s: %s: %s", e.Code, e.Plan, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidatePlans validates every plan and checks that names are unique.
// Returns all errors found (does not fail-fast).
func ValidatePlans(plans []*model.Plan) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool, len(plans))
	for _, p := range plans {
		if seen[p.Name] {
			errs = append(errs, ValidationError{
				Plan:    p.Name,
				Field:   "name",
				Message: fmt.Sprintf("duplicate plan name %q", p.Name),
				Code:    ErrDuplicatePlanName,
			})
		}
		seen[p.Name] = true
		errs = append(errs, ValidatePlan(p)...)
	}
	return errs
}

// ValidatePlan validates a compiled plan.
// Returns all errors found (does not fail-fast).
func ValidatePlan(p *model.Plan) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Plan:    p.Name,
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
		})
	}
	req := p.Request

	if strings.TrimSpace(p.Name) == "" {
		add("name", ErrPlanNameEmpty, "plan name is required")
	}

	if strings.TrimSpace(p.Input) == "" {
		add("input", ErrInputEmpty, "input is required and must be non-empty")
	} else {
		ext := extension(p.Input)
		if !slices.Contains(inputFormats, ext) {
			add("input", ErrInputFormat, "unsupported input type %q (supported: %s)", ext, strings.Join(inputFormats, ", "))
		}
		if p.Sheet != "" && (ext == "csv" || ext == "tsv" || ext == "txt") {
			add("sheet", ErrSheetOnDelimited, "sheet %q given but %s files have a single sheet", p.Sheet, ext)
		}
	}

	if _, err := model.ParseTestKind(string(req.Test)); err != nil {
		add("test", ErrUnknownTest, "%s", err.Error())
	}

	group := strings.TrimSpace(req.GroupCol)
	response := strings.TrimSpace(req.ResponseCol)
	factor := strings.TrimSpace(req.FactorCol)
	if group == "" {
		add("columns.group", ErrGroupColumnEmpty, "group column is required")
	}
	switch {
	case response == "":
		add("columns.response", ErrResponseColumn, "response column is required")
	case response == group:
		add("columns.response", ErrResponseColumn, "response column %q is also the group column", response)
	}
	if factor != "" && (factor == group || factor == response) {
		add("columns.factor", ErrFactorColumn, "factor column %q reuses another column", factor)
	}

	if !(req.Alpha > 0 && req.Alpha < 1) {
		add("alpha", ErrAlphaRange, "alpha %v must lie in (0, 1)", req.Alpha)
	}

	seen := make(map[string]bool, len(req.Order))
	for i, g := range req.Order {
		g = strings.TrimSpace(g)
		if g == "" {
			add(fmt.Sprintf("order[%d]", i), ErrOrderContainsEmpty, "group name must be non-empty")
			continue
		}
		if seen[g] {
			add(fmt.Sprintf("order[%d]", i), ErrDuplicateOrder, "group %q listed twice", g)
		}
		seen[g] = true
	}

	if req.Control != "" && req.Test != model.TestDunnett {
		add("control", ErrControlNotDunnett, "control only applies to the dunnett test, not %q", req.Test)
	}

	if p.Chart.Output != "" {
		ext := extension(p.Chart.Output)
		if !slices.Contains(model.ChartFormats, ext) {
			add("chart.output", ErrChartFormat, "unsupported chart format %q (supported: %s)", ext, strings.Join(model.ChartFormats, ", "))
		}
	}
	if p.Chart.Width < 0 || p.Chart.Height < 0 || p.Chart.DPI < 0 {
		add("chart", ErrChartSize, "width, height and dpi must not be negative")
	}

	return errs
}

func extension(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}
