// Package table gives tidy-table access to spreadsheet data: column lookup,
// level ordering and extraction of (group, factor, response) observations.
package table

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/labstat/internal/model"
)

// Table is a sheet of string cells under a header row.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
	// Lines holds the 1-based source row of each entry in Rows. When nil
	// the header is taken to be row 1 with no blank rows below it.
	Lines []int
}

// Line returns the source row number of Rows[i].
func (t *Table) Line(i int) int {
	if i < len(t.Lines) {
		return t.Lines[i]
	}
	return i + 2
}

// ColumnError reports a column the table does not have.
type ColumnError struct {
	Column    string
	Available []string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("column %q not found (available: %s)", e.Column, strings.Join(e.Available, ", "))
}

// CellError reports a response cell that is not a number.
type CellError struct {
	Row    int // source row number, as shown by the spreadsheet
	Column string
	Value  string
}

func (e *CellError) Error() string {
	return fmt.Sprintf("row %d: column %q: %q is not a number", e.Row, e.Column, e.Value)
}

// Index returns the position of a column, matching names after trimming.
func (t *Table) Index(name string) (int, error) {
	want := strings.TrimSpace(name)
	for i, c := range t.Columns {
		if strings.TrimSpace(c) == want {
			return i, nil
		}
	}
	return -1, &ColumnError{Column: name, Available: t.Columns}
}

// cell returns row[i] or "" for ragged rows.
func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

// Unique returns the distinct non-empty values of a column in first-appearance order.
func (t *Table) Unique(column string) ([]string, error) {
	idx, err := t.Index(column)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, row := range t.Rows {
		v := cell(row, idx)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out, nil
}

// Observations extracts the rows selected by req. Rows with an empty group
// or response cell are dropped and counted; a response that does not parse
// as a number is an error.
func (t *Table) Observations(req model.Request) (obs []model.Observation, dropped int, err error) {
	gi, err := t.Index(req.GroupCol)
	if err != nil {
		return nil, 0, err
	}
	ri, err := t.Index(req.ResponseCol)
	if err != nil {
		return nil, 0, err
	}
	fi := -1
	if req.HasFactor() {
		if fi, err = t.Index(req.FactorCol); err != nil {
			return nil, 0, err
		}
	}

	for n, row := range t.Rows {
		group, raw := cell(row, gi), cell(row, ri)
		factor := ""
		if fi >= 0 {
			factor = cell(row, fi)
		}
		if group == "" || raw == "" || (fi >= 0 && factor == "") {
			dropped++
			continue
		}
		v, ok := ParseNumber(raw)
		if !ok {
			return nil, 0, &CellError{Row: t.Line(n), Column: req.ResponseCol, Value: raw}
		}
		obs = append(obs, model.Observation{Group: group, Factor: factor, Value: v})
	}
	return obs, dropped, nil
}

// ParseNumber parses a response cell. A lone decimal comma ("1,5") is
// accepted since lab exports in pt-BR and de-DE locales use it.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var firstNumber = regexp.MustCompile(`[-+]?\d*\.\d+|\d+`)

// FactorLess orders factor levels: labels containing a number come first,
// by the first number found ("2h" < "10h"); the rest follow by lower-cased text.
func FactorLess(a, b string) bool {
	na, aok := leadingValue(a)
	nb, bok := leadingValue(b)
	switch {
	case aok && bok:
		return na < nb
	case aok != bok:
		return aok
	}
	return strings.ToLower(a) < strings.ToLower(b)
}

func leadingValue(s string) (float64, bool) {
	m := firstNumber.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	return v, err == nil
}

// SortFactors returns levels in FactorLess order; ties keep input order.
func SortFactors(levels []string) []string {
	out := append([]string(nil), levels...)
	sort.SliceStable(out, func(i, j int) bool { return FactorLess(out[i], out[j]) })
	return out
}

// GroupOrder returns the distinct groups of obs. Groups named in order come
// first, in that order; the rest follow in first-appearance order. Naming a
// group that has no observations is an error.
func GroupOrder(obs []model.Observation, order []string) ([]string, error) {
	present := make(map[string]bool)
	var appearance []string
	for _, o := range obs {
		if !present[o.Group] {
			present[o.Group] = true
			appearance = append(appearance, o.Group)
		}
	}

	placed := make(map[string]bool, len(order))
	out := make([]string, 0, len(appearance))
	for _, g := range order {
		g = strings.TrimSpace(g)
		if !present[g] {
			return nil, fmt.Errorf("group %q in order has no observations", g)
		}
		if !placed[g] {
			placed[g] = true
			out = append(out, g)
		}
	}
	for _, g := range appearance {
		if !placed[g] {
			out = append(out, g)
		}
	}
	return out, nil
}

// FactorOrder returns the distinct factor levels of obs in FactorLess order.
func FactorOrder(obs []model.Observation) []string {
	seen := make(map[string]bool)
	var levels []string
	for _, o := range obs {
		if !seen[o.Factor] {
			seen[o.Factor] = true
			levels = append(levels, o.Factor)
		}
	}
	return SortFactors(levels)
}
