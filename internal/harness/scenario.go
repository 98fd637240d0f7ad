package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/labstat/internal/model"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario; it names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Input is a spreadsheet path, relative to the scenario file.
	// Exactly one of Input and Table is set.
	Input string `yaml:"input,omitempty"`

	// Sheet selects a workbook sheet; empty means the first.
	Sheet string `yaml:"sheet,omitempty"`

	// Table holds inline data.
	Table *InlineTable `yaml:"table,omitempty"`

	// Request is the analysis to run.
	Request RequestSpec `yaml:"request"`

	// Assertions validate the analysis.
	Assertions []Assertion `yaml:"assertions"`

	// Dir is the directory of the scenario file.
	Dir string `yaml:"-"`
}

// InlineTable is tabular data written in the scenario itself.
type InlineTable struct {
	Columns []string   `yaml:"columns"`
	Rows    [][]string `yaml:"rows"`
}

// RequestSpec mirrors model.Request with the column names used in plans.
type RequestSpec struct {
	Test     string   `yaml:"test"`
	Group    string   `yaml:"group"`
	Factor   string   `yaml:"factor,omitempty"`
	Response string   `yaml:"response"`
	Control  string   `yaml:"control,omitempty"`
	Alpha    float64  `yaml:"alpha,omitempty"`
	Order    []string `yaml:"order,omitempty"`
}

// Model converts the YAML request block to a model.Request. The test name
// is not checked here; an unknown test is an analysis error scenarios can
// assert on.
func (r RequestSpec) Model() model.Request {
	return model.Request{
		Test:        model.TestKind(r.Test),
		GroupCol:    r.Group,
		FactorCol:   r.Factor,
		ResponseCol: r.Response,
		Control:     r.Control,
		Alpha:       r.Alpha,
		Order:       r.Order,
	}
}

// Assertion validates one aspect of the analysis.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Factor selects the factor level; empty for unstratified analyses
	// ("Total" is accepted as well for t-tests).
	Factor string `yaml:"factor,omitempty"`

	// Groups name summaries (significant, not_significant).
	Groups []string `yaml:"groups,omitempty"`

	// Pairs name comparisons (significant, not_significant).
	Pairs [][2]string `yaml:"pairs,omitempty"`

	// Letters maps group to its expected letters (letters).
	Letters map[string]string `yaml:"letters,omitempty"`

	// Group or Pair selects the p-value to check (p_value).
	Group string    `yaml:"group,omitempty"`
	Pair  [2]string `yaml:"pair,omitempty"`

	// Expect is the expected p-value (p_value).
	Expect *float64 `yaml:"expect,omitempty"`

	// Tolerance is the allowed absolute difference (p_value).
	// Default: DefaultTolerance.
	Tolerance float64 `yaml:"tolerance,omitempty"`

	// Code is the expected analysis error code (error).
	Code string `yaml:"code,omitempty"`

	// Factors lists the expected skipped levels (skipped).
	Factors []string `yaml:"factors,omitempty"`

	// Count is the expected number of dropped rows (dropped).
	Count *int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertSignificant    = "significant"
	AssertNotSignificant = "not_significant"
	AssertLetters        = "letters"
	AssertPValue         = "p_value"
	AssertError          = "error"
	AssertSkipped        = "skipped"
	AssertDropped        = "dropped"
)

// DefaultTolerance is the p-value tolerance when a scenario gives none.
const DefaultTolerance = 1e-6

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	scenario.Dir = filepath.Dir(path)

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml and *.yml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		m, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, m...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenarios found in %s", dir)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// InputPath returns the scenario's input resolved against its directory.
func (s *Scenario) InputPath() string {
	if s.Input == "" || filepath.IsAbs(s.Input) || s.Dir == "" {
		return s.Input
	}
	return filepath.Join(s.Dir, s.Input)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Input == "" && s.Table == nil:
		return fmt.Errorf("one of input or table is required")
	case s.Input != "" && s.Table != nil:
		return fmt.Errorf("input and table are mutually exclusive")
	}
	if s.Input != "" {
		if _, err := os.Stat(s.InputPath()); os.IsNotExist(err) {
			return fmt.Errorf("input file not found: %s", s.InputPath())
		}
	}
	if s.Table != nil {
		if len(s.Table.Columns) == 0 {
			return fmt.Errorf("table.columns is required and must be non-empty")
		}
		for i, row := range s.Table.Rows {
			if len(row) > len(s.Table.Columns) {
				return fmt.Errorf("table.rows[%d]: %d cells for %d columns", i, len(row), len(s.Table.Columns))
			}
		}
	}

	if s.Request.Test == "" {
		return fmt.Errorf("request.test is required")
	}
	if s.Request.Group == "" {
		return fmt.Errorf("request.group is required")
	}
	if s.Request.Response == "" {
		return fmt.Errorf("request.response is required")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertSignificant, AssertNotSignificant:
		if len(a.Groups) == 0 && len(a.Pairs) == 0 {
			return fmt.Errorf("assertions[%d]: groups or pairs is required for %s", index, a.Type)
		}
	case AssertLetters:
		if len(a.Letters) == 0 {
			return fmt.Errorf("assertions[%d]: letters is required for letters", index)
		}
	case AssertPValue:
		hasPair := a.Pair[0] != "" || a.Pair[1] != ""
		if (a.Group == "") == !hasPair {
			return fmt.Errorf("assertions[%d]: exactly one of group or pair is required for p_value", index)
		}
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for p_value", index)
		}
		if a.Tolerance < 0 {
			return fmt.Errorf("assertions[%d]: tolerance must be non-negative", index)
		}
	case AssertError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error", index)
		}
	case AssertSkipped:
		// An empty list asserts that nothing was skipped.
	case AssertDropped:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for dropped", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
