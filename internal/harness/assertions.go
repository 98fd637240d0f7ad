package harness

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/labstat/internal/model"
)

// AssertionError is returned when an assertion fails.
// It includes the summaries so a failure can be read without rerunning.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Analysis *model.Analysis
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Analysis != nil && len(e.Analysis.Summaries) > 0 {
		fmt.Fprintf(&buf, "\nSummaries:\n")
		for _, s := range e.Analysis.Summaries {
			fmt.Fprintf(&buf, "  %s/%s n=%d mean=%.4g p=%.4g %s%s\n",
				s.Factor, s.Group, s.N, s.Mean, s.PValue, s.Stars, s.Letters)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against the result and returns
// the failure messages, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	if a.Type == AssertError {
		return assertError(result, a)
	}
	if result.Analysis == nil {
		return &AssertionError{
			Type:     a.Type,
			Expected: "a successful analysis",
			Actual:   fmt.Sprintf("analysis failed: %v", result.Err),
		}
	}

	switch a.Type {
	case AssertSignificant:
		return assertSignificance(result.Analysis, a, true)
	case AssertNotSignificant:
		return assertSignificance(result.Analysis, a, false)
	case AssertLetters:
		return assertLetters(result.Analysis, a)
	case AssertPValue:
		return assertPValue(result.Analysis, a)
	case AssertSkipped:
		return assertSkipped(result.Analysis, a)
	case AssertDropped:
		return assertDropped(result.Analysis, a)
	}
	return fmt.Errorf("unknown assertion type: %s", a.Type)
}

// factorMatches treats an empty expected factor as the unstratified level,
// which t-tests label "Total".
func factorMatches(want, got string) bool {
	return want == got || (want == "" && got == model.TotalFactor)
}

func findSummary(an *model.Analysis, factor, group string) (model.GroupSummary, bool) {
	for _, s := range an.Summaries {
		if s.Group == group && factorMatches(factor, s.Factor) {
			return s, true
		}
	}
	return model.GroupSummary{}, false
}

// findComparison matches a pair in either order.
func findComparison(an *model.Analysis, factor string, pair [2]string) (model.Comparison, bool) {
	for _, c := range an.Comparisons {
		if !factorMatches(factor, c.Factor) {
			continue
		}
		if (c.Group1 == pair[0] && c.Group2 == pair[1]) || (c.Group1 == pair[1] && c.Group2 == pair[0]) {
			return c, true
		}
	}
	return model.Comparison{}, false
}

func describe(label string, want bool) string {
	if want {
		return label + " significant"
	}
	return label + " not significant"
}

func assertSignificance(an *model.Analysis, a Assertion, want bool) error {
	for _, g := range a.Groups {
		s, ok := findSummary(an, a.Factor, g)
		if !ok {
			return missing(an, a.Type, fmt.Sprintf("summary for group %q", g))
		}
		if got := s.Significance == "*"; got != want {
			return &AssertionError{
				Type:     a.Type,
				Expected: describe(fmt.Sprintf("group %q", g), want),
				Actual:   fmt.Sprintf("p=%.6g significance=%q", s.PValue, s.Significance),
				Analysis: an,
			}
		}
	}
	for _, pair := range a.Pairs {
		c, ok := findComparison(an, a.Factor, pair)
		if !ok {
			return missing(an, a.Type, fmt.Sprintf("comparison %s-%s", pair[0], pair[1]))
		}
		if c.Reject != want {
			return &AssertionError{
				Type:     a.Type,
				Expected: describe(fmt.Sprintf("pair %s-%s", pair[0], pair[1]), want),
				Actual:   fmt.Sprintf("p=%.6g reject=%v", c.PValue, c.Reject),
				Analysis: an,
			}
		}
	}
	return nil
}

func assertLetters(an *model.Analysis, a Assertion) error {
	groups := make([]string, 0, len(a.Letters))
	for g := range a.Letters {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	for _, g := range groups {
		s, ok := findSummary(an, a.Factor, g)
		if !ok {
			return missing(an, a.Type, fmt.Sprintf("summary for group %q", g))
		}
		if s.Letters != a.Letters[g] {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("group %q letters %q", g, a.Letters[g]),
				Actual:   fmt.Sprintf("letters %q", s.Letters),
				Analysis: an,
			}
		}
	}
	return nil
}

func assertPValue(an *model.Analysis, a Assertion) error {
	tol := a.Tolerance
	if tol == 0 {
		tol = DefaultTolerance
	}

	var (
		got   float64
		label string
	)
	if a.Group != "" {
		s, ok := findSummary(an, a.Factor, a.Group)
		if !ok {
			return missing(an, a.Type, fmt.Sprintf("summary for group %q", a.Group))
		}
		got, label = s.PValue, fmt.Sprintf("group %q", a.Group)
	} else {
		c, ok := findComparison(an, a.Factor, a.Pair)
		if !ok {
			return missing(an, a.Type, fmt.Sprintf("comparison %s-%s", a.Pair[0], a.Pair[1]))
		}
		got, label = c.PValue, fmt.Sprintf("pair %s-%s", a.Pair[0], a.Pair[1])
	}

	if math.IsNaN(got) || math.Abs(got-*a.Expect) > tol {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s p=%.6g ± %g", label, *a.Expect, tol),
			Actual:   fmt.Sprintf("p=%.6g", got),
			Analysis: an,
		}
	}
	return nil
}

func assertSkipped(an *model.Analysis, a Assertion) error {
	got := make([]string, len(an.Skipped))
	for i, s := range an.Skipped {
		got[i] = s.Factor
	}
	want := a.Factors
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("skipped levels %v", want),
			Actual:   fmt.Sprintf("skipped levels %v", got),
			Analysis: an,
		}
	}
	return nil
}

func assertDropped(an *model.Analysis, a Assertion) error {
	if an.Dropped != *a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d dropped rows", *a.Count),
			Actual:   fmt.Sprintf("%d dropped rows", an.Dropped),
		}
	}
	return nil
}

func assertError(result *Result, a Assertion) error {
	if result.Err == nil {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("error %s", a.Code),
			Actual:   "analysis succeeded",
			Analysis: result.Analysis,
		}
	}
	if result.ErrorCode != a.Code {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("error %s", a.Code),
			Actual:   fmt.Sprintf("error %s: %v", result.ErrorCode, result.Err),
		}
	}
	return nil
}

func missing(an *model.Analysis, typ, what string) error {
	return &AssertionError{
		Type:     typ,
		Expected: what,
		Actual:   "not found in analysis",
		Analysis: an,
	}
}
