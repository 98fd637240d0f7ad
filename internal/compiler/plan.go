package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/labstat/internal/model"
)

// CompilePlans compiles every plan declared under the top-level "plan"
// struct, in declaration order. A value without a "plan" field yields no
// plans.
//
//	plan: fig1a: {
//		input: "data.xlsx"
//		test:  "tukey"
//		columns: {group: "name", response: "value"}
//	}
func CompilePlans(v cue.Value) ([]*model.Plan, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	plansVal := v.LookupPath(cue.ParsePath("plan"))
	if !plansVal.Exists() {
		return nil, nil
	}

	iter, err := plansVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var plans []*model.Plan
	for iter.Next() {
		p, err := CompilePlan(iter.Value())
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, nil
}

// CompilePlan parses a CUE value into a Plan. The plan name is the struct
// label; test names are normalised and alpha defaults to 0.05.
func CompilePlan(v cue.Value) (*model.Plan, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	plan := &model.Plan{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		plan.Name = labels[len(labels)-1].Unquoted()
	}

	var err error
	if plan.Input, err = requiredString(v, "input"); err != nil {
		return nil, err
	}
	if plan.Sheet, err = optionalString(v, "sheet"); err != nil {
		return nil, err
	}

	testName, err := requiredString(v, "test")
	if err != nil {
		return nil, err
	}
	kind, err := model.ParseTestKind(testName)
	if err != nil {
		return nil, &CompileError{Field: "test", Message: err.Error(), Pos: v.LookupPath(cue.ParsePath("test")).Pos()}
	}
	plan.Request.Test = kind

	cols := v.LookupPath(cue.ParsePath("columns"))
	if !cols.Exists() {
		return nil, &CompileError{Field: "columns", Message: "columns is required", Pos: v.Pos()}
	}
	if plan.Request.GroupCol, err = requiredString(cols, "group"); err != nil {
		return nil, prefixField(err, "columns.")
	}
	if plan.Request.ResponseCol, err = requiredString(cols, "response"); err != nil {
		return nil, prefixField(err, "columns.")
	}
	if plan.Request.FactorCol, err = optionalString(cols, "factor"); err != nil {
		return nil, prefixField(err, "columns.")
	}

	if plan.Request.Control, err = optionalString(v, "control"); err != nil {
		return nil, err
	}
	plan.Request.Alpha = model.DefaultAlpha
	if a, ok, err := optionalFloat(v, "alpha"); err != nil {
		return nil, err
	} else if ok {
		plan.Request.Alpha = a
	}
	if plan.Request.Order, err = optionalStrings(v, "order"); err != nil {
		return nil, err
	}

	if chartVal := v.LookupPath(cue.ParsePath("chart")); chartVal.Exists() {
		plan.Chart, err = parseChart(chartVal)
		if err != nil {
			return nil, prefixField(err, "chart.")
		}
	}
	return plan, nil
}

func parseChart(v cue.Value) (model.ChartOptions, error) {
	var c model.ChartOptions
	var err error
	strs := []struct {
		field string
		dst   *string
	}{
		{"title", &c.Title},
		{"subtitle", &c.Subtitle},
		{"x_label", &c.XLabel},
		{"y_label", &c.YLabel},
		{"output", &c.Output},
	}
	for _, s := range strs {
		if *s.dst, err = optionalString(v, s.field); err != nil {
			return c, err
		}
	}
	if c.Width, _, err = optionalFloat(v, "width"); err != nil {
		return c, err
	}
	if c.Height, _, err = optionalFloat(v, "height"); err != nil {
		return c, err
	}
	if dpi := v.LookupPath(cue.ParsePath("dpi")); dpi.Exists() {
		n, err := dpi.Int64()
		if err != nil {
			return c, &CompileError{Field: "dpi", Message: "dpi must be an integer", Pos: dpi.Pos()}
		}
		c.DPI = int(n)
	}
	return c, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := f.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: field + " must be a string", Pos: f.Pos()}
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: field + " must be a string", Pos: f.Pos()}
	}
	return s, nil
}

// optionalFloat accepts both int and float literals.
func optionalFloat(v cue.Value, field string) (float64, bool, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return 0, false, nil
	}
	x, err := f.Float64()
	if err != nil {
		return 0, false, &CompileError{Field: field, Message: field + " must be a number", Pos: f.Pos()}
	}
	return x, true, nil
}

func optionalStrings(v cue.Value, field string) ([]string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return nil, nil
	}
	iter, err := f.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: field + " must be a list of strings", Pos: f.Pos()}
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{Field: field, Message: field + " must be a list of strings", Pos: iter.Value().Pos()}
		}
		out = append(out, s)
	}
	return out, nil
}

func prefixField(err error, prefix string) error {
	if ce, ok := err.(*CompileError); ok {
		ce.Field = prefix + ce.Field
	}
	return err
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
