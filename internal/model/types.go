package model

import (
	"fmt"
	"strings"
)

// TestKind names a statistical procedure.
type TestKind string

const (
	TestTTest   TestKind = "ttest"
	TestTukey   TestKind = "tukey"
	TestDunnett TestKind = "dunnett"
	TestANOVA   TestKind = "anova"
)

// ValidTestKinds lists the accepted test names in display order.
var ValidTestKinds = []TestKind{TestTukey, TestDunnett, TestTTest, TestANOVA}

// ParseTestKind accepts the canonical names plus the spellings found in
// lab spreadsheets ("t-test", "teste_t", "dunnet").
func ParseTestKind(s string) (TestKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ttest", "t-test", "t_test", "teste_t", "welch":
		return TestTTest, nil
	case "tukey", "tukeyhsd", "hsd":
		return TestTukey, nil
	case "dunnett", "dunnet":
		return TestDunnett, nil
	case "anova":
		return TestANOVA, nil
	}
	return "", fmt.Errorf("unknown test %q: must be one of %v", s, ValidTestKinds)
}

// DefaultAlpha is the significance level used when none is configured.
const DefaultAlpha = 0.05

// TotalFactor labels the single comparison of an unstratified t-test.
const TotalFactor = "Total"

// Observation is one row of a tidy table.
type Observation struct {
	Group  string  `json:"group"`
	Factor string  `json:"factor,omitempty"`
	Value  float64 `json:"value"`
}

// Request describes which columns to compare and how.
type Request struct {
	Test        TestKind `json:"test" yaml:"test"`
	GroupCol    string   `json:"group_col" yaml:"group"`
	FactorCol   string   `json:"factor_col,omitempty" yaml:"factor,omitempty"`
	ResponseCol string   `json:"response_col" yaml:"response"`
	Control     string   `json:"control,omitempty" yaml:"control,omitempty"`
	Alpha       float64  `json:"alpha" yaml:"alpha,omitempty"`
	// Order fixes the group order; groups not listed follow in appearance order.
	Order []string `json:"order,omitempty" yaml:"order,omitempty"`
}

// HasFactor reports whether comparisons are stratified by a factor column.
func (r Request) HasFactor() bool {
	return r.FactorCol != ""
}

// Comparison is the result of one pairwise test.
type Comparison struct {
	Factor    string  `json:"factor,omitempty"`
	Group1    string  `json:"group1"`
	Group2    string  `json:"group2"`
	N1        int     `json:"n1"`
	N2        int     `json:"n2"`
	Estimate  float64 `json:"estimate"` // mean(group2) - mean(group1)
	Statistic float64 `json:"statistic"`
	DF        float64 `json:"df"`
	PValue    float64 `json:"p_value"`
	Lower     float64 `json:"lower"`
	Upper     float64 `json:"upper"`
	Reject    bool    `json:"reject"`
	Stars     string  `json:"stars"`
}

// GroupSummary holds the per-group values plotted as one bar.
type GroupSummary struct {
	Factor string  `json:"factor,omitempty"`
	Group  string  `json:"group"`
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	SD     float64 `json:"sd"`
	SE     float64 `json:"se"`
	// PValue is NaN when the group is not compared (the control, anova-only).
	PValue       float64 `json:"p_value"`
	Significance string  `json:"significance"`
	Stars        string  `json:"stars,omitempty"`
	Letters      string  `json:"letters,omitempty"`
}

// AnovaTable is a one-way analysis of variance.
type AnovaTable struct {
	Factor    string  `json:"factor,omitempty"`
	SSBetween float64 `json:"ss_between"`
	SSWithin  float64 `json:"ss_within"`
	DFBetween int     `json:"df_between"`
	DFWithin  int     `json:"df_within"`
	MSBetween float64 `json:"ms_between"`
	MSWithin  float64 `json:"ms_within"`
	F         float64 `json:"f"`
	PValue    float64 `json:"p_value"`
}

// SkippedLevel records a factor level that could not be tested.
type SkippedLevel struct {
	Factor string `json:"factor"`
	Reason string `json:"reason"`
}

// Analysis is the complete output of the comparison engine.
type Analysis struct {
	Request     Request        `json:"request"`
	Groups      []string       `json:"groups"`
	Factors     []string       `json:"factors,omitempty"`
	Comparisons []Comparison   `json:"comparisons"`
	Summaries   []GroupSummary `json:"summaries"`
	Anova       []AnovaTable   `json:"anova,omitempty"`
	Skipped     []SkippedLevel `json:"skipped,omitempty"`
	Dropped     int            `json:"dropped,omitempty"` // rows without a response value
}

// Summary returns the summary for a group within a factor level.
func (a *Analysis) Summary(factor, group string) (GroupSummary, bool) {
	for _, s := range a.Summaries {
		if s.Factor == factor && s.Group == group {
			return s, true
		}
	}
	return GroupSummary{}, false
}

// ChartOptions configures the rendered figure.
type ChartOptions struct {
	Title    string  `json:"title,omitempty"`
	Subtitle string  `json:"subtitle,omitempty"`
	XLabel   string  `json:"x_label,omitempty"`
	YLabel   string  `json:"y_label,omitempty"`
	Output   string  `json:"output,omitempty"`
	Width    float64 `json:"width,omitempty"`  // inches
	Height   float64 `json:"height,omitempty"` // inches
	DPI      int     `json:"dpi,omitempty"`
}

// ChartFormats lists the chart file extensions that can be written.
var ChartFormats = []string{"png", "svg", "pdf", "eps", "jpg", "jpeg", "tif", "tiff"}

// Plan is a named, reproducible analysis: where the data lives, what to
// compare and where to draw it.
type Plan struct {
	Name    string       `json:"name"`
	Input   string       `json:"input"`
	Sheet   string       `json:"sheet,omitempty"`
	Request Request      `json:"request"`
	Chart   ChartOptions `json:"chart"`
	// Dir is the directory of the file that declared the plan.
	Dir string `json:"-"`
}
