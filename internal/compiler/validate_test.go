package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/labstat/internal/model"
)

func validPlan() *model.Plan {
	return &model.Plan{
		Name:  "fig1a",
		Input: "data.xlsx",
		Sheet: "fig1a",
		Request: model.Request{
			Test:        model.TestDunnett,
			GroupCol:    "name",
			ResponseCol: "value",
			Control:     "Col-0",
			Alpha:       0.05,
		},
		Chart: model.ChartOptions{Output: "fig1a.png"},
	}
}

func codes(errs []ValidationError) []string {
	var out []string
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func TestValidatePlanValid(t *testing.T) {
	assert.Empty(t, ValidatePlan(validPlan()))
}

func TestValidatePlanErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *model.Plan)
		want   []string
	}{
		{"empty name", func(p *model.Plan) { p.Name = " " }, []string{ErrPlanNameEmpty}},
		{"empty input", func(p *model.Plan) { p.Input = "" }, []string{ErrInputEmpty}},
		{"legacy input", func(p *model.Plan) { p.Input = "data.xls" }, []string{ErrInputFormat}},
		{"sheet on csv", func(p *model.Plan) { p.Input = "data.csv" }, []string{ErrSheetOnDelimited}},
		{"unknown test", func(p *model.Plan) { p.Request.Test = "kruskal"; p.Request.Control = "" }, []string{ErrUnknownTest}},
		{"no group", func(p *model.Plan) { p.Request.GroupCol = "" }, []string{ErrGroupColumnEmpty}},
		{"no response", func(p *model.Plan) { p.Request.ResponseCol = "" }, []string{ErrResponseColumn}},
		{"response is group", func(p *model.Plan) { p.Request.ResponseCol = "name" }, []string{ErrResponseColumn}},
		{"factor reuse", func(p *model.Plan) { p.Request.FactorCol = "value" }, []string{ErrFactorColumn}},
		{"alpha zero", func(p *model.Plan) { p.Request.Alpha = 0 }, []string{ErrAlphaRange}},
		{"alpha one", func(p *model.Plan) { p.Request.Alpha = 1 }, []string{ErrAlphaRange}},
		{"duplicate order", func(p *model.Plan) { p.Request.Order = []string{"a", "b", "a "} }, []string{ErrDuplicateOrder}},
		{"empty order", func(p *model.Plan) { p.Request.Order = []string{""} }, []string{ErrOrderContainsEmpty}},
		{"control on tukey", func(p *model.Plan) { p.Request.Test = model.TestTukey }, []string{ErrControlNotDunnett}},
		{"chart format", func(p *model.Plan) { p.Chart.Output = "fig.bmp" }, []string{ErrChartFormat}},
		{"chart size", func(p *model.Plan) { p.Chart.DPI = -1 }, []string{ErrChartSize}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPlan()
			tt.mutate(p)
			assert.Equal(t, tt.want, codes(ValidatePlan(p)))
		})
	}
}

func TestValidatePlanCollectsAll(t *testing.T) {
	p := &model.Plan{Name: "bad"}
	errs := ValidatePlan(p)
	assert.Equal(t, []string{ErrInputEmpty, ErrUnknownTest, ErrGroupColumnEmpty, ErrResponseColumn, ErrAlphaRange}, codes(errs))
	for _, e := range errs {
		assert.Equal(t, "bad", e.Plan)
	}
}

func TestValidatePlansDuplicateNames(t *testing.T) {
	errs := ValidatePlans([]*model.Plan{validPlan(), validPlan()})
	assert.Equal(t, []string{ErrDuplicatePlanName}, codes(errs))
}

func TestValidationErrorFormatting(t *testing.T) {
	e := ValidationError{Plan: "p", Field: "alpha", Message: "bad", Code: ErrAlphaRange}
	assert.Equal(t, "[E105] p: alpha: bad", e.Error())
	e.Plan = ""
	assert.Equal(t, "[E105] alpha: bad", e.Error())
}
