// Package report renders analyses, run history and sheet listings as text
// tables for the terminal.
package report

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/roach88/labstat/internal/model"
)

// Num formats a statistic with four significant digits; NaN prints as "-".
func Num(f float64) string {
	switch {
	case math.IsNaN(f):
		return "-"
	case math.IsInf(f, 1):
		return "Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(f, 'g', 4, 64)
}

// P formats a p-value; values below 0.0001 print as "<0.0001".
func P(p float64) string {
	if !math.IsNaN(p) && p < 1e-4 {
		return "<0.0001"
	}
	return Num(p)
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	if title != "" {
		t.SetTitle(title)
	}
	return t
}

func rightAligned(cols ...int) []table.ColumnConfig {
	cfgs := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		cfgs[i] = table.ColumnConfig{Number: c, Align: text.AlignRight}
	}
	return cfgs
}

// Analysis writes the summary, comparison and ANOVA tables of an analysis,
// followed by notes on skipped levels and dropped rows.
func Analysis(w io.Writer, a *model.Analysis) {
	req := a.Request
	header := fmt.Sprintf("%s: %s by %s", req.Test, req.ResponseCol, req.GroupCol)
	if req.HasFactor() {
		header += " within " + req.FactorCol
	}
	fmt.Fprintf(w, "%s (alpha=%s)\n", header, Num(req.Alpha))

	summaries(w, a)
	if len(a.Comparisons) > 0 {
		comparisons(w, a)
	}
	if len(a.Anova) > 0 {
		anova(w, a)
	}
	for _, s := range a.Skipped {
		fmt.Fprintf(w, "skipped %s: %s\n", s.Factor, s.Reason)
	}
	if a.Dropped > 0 {
		fmt.Fprintf(w, "%d incomplete row(s) ignored\n", a.Dropped)
	}
}

func summaries(w io.Writer, a *model.Analysis) {
	t := newTable(w, "Groups")
	factor := a.Request.HasFactor() || a.Request.Test == model.TestTTest
	row := table.Row{}
	if factor {
		row = append(row, "Factor")
	}
	row = append(row, "Group", "N", "Mean", "SD", "SE")
	switch a.Request.Test {
	case model.TestTukey:
		row = append(row, "Letters")
	case model.TestDunnett, model.TestTTest:
		row = append(row, "P", "Sig")
	}
	t.AppendHeader(row)

	offset := 0
	if factor {
		offset = 1
	}
	t.SetColumnConfigs(rightAligned(offset+2, offset+3, offset+4, offset+5, offset+7))

	for _, s := range a.Summaries {
		row := table.Row{}
		if factor {
			row = append(row, s.Factor)
		}
		row = append(row, s.Group, s.N, Num(s.Mean), Num(s.SD), Num(s.SE))
		switch a.Request.Test {
		case model.TestTukey:
			row = append(row, s.Letters)
		case model.TestDunnett, model.TestTTest:
			row = append(row, P(s.PValue), s.Stars)
		}
		t.AppendRow(row)
	}
	t.Render()
}

func comparisons(w io.Writer, a *model.Analysis) {
	t := newTable(w, "Comparisons")
	stat := "t"
	if a.Request.Test == model.TestTukey {
		stat = "q"
	}
	t.AppendHeader(table.Row{"Factor", "Comparison", "Diff", "Lower", "Upper", stat, "DF", "P", "Sig"})
	t.SetColumnConfigs(rightAligned(3, 4, 5, 6, 7, 8))
	for _, c := range a.Comparisons {
		t.AppendRow(table.Row{
			c.Factor,
			c.Group2 + " - " + c.Group1,
			Num(c.Estimate), Num(c.Lower), Num(c.Upper), Num(c.Statistic), Num(c.DF), P(c.PValue),
			c.Stars,
		})
	}
	t.Render()
}

func anova(w io.Writer, a *model.Analysis) {
	t := newTable(w, "ANOVA")
	t.AppendHeader(table.Row{"Factor", "Source", "DF", "SS", "MS", "F", "P"})
	t.SetColumnConfigs(rightAligned(3, 4, 5, 6, 7))
	for _, at := range a.Anova {
		t.AppendRow(table.Row{at.Factor, "Between", at.DFBetween, Num(at.SSBetween), Num(at.MSBetween), Num(at.F), P(at.PValue)})
		t.AppendRow(table.Row{at.Factor, "Within", at.DFWithin, Num(at.SSWithin), Num(at.MSWithin), "", ""})
	}
	t.Render()
}

// Runs writes run history, oldest first.
func Runs(w io.Writer, runs []model.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return
	}
	t := newTable(w, "")
	t.AppendHeader(table.Row{"Seq", "ID", "Plan", "Test", "Source", "Sheet", "Created"})
	t.SetColumnConfigs(rightAligned(1))
	for _, r := range runs {
		t.AppendRow(table.Row{r.Seq, ShortID(r.ID), r.PlanName, r.Request.Test, r.Source, r.Sheet, r.CreatedAt})
	}
	t.Render()
}

// Run writes a run header followed by its analysis.
func Run(w io.Writer, r model.Run) {
	fmt.Fprintf(w, "run %s (seq %d) plan %s\n", r.ID, r.Seq, r.PlanName)
	fmt.Fprintf(w, "source %s", r.Source)
	if r.Sheet != "" {
		fmt.Fprintf(w, " [%s]", r.Sheet)
	}
	fmt.Fprintf(w, ", created %s, engine %s\n", r.CreatedAt, r.EngineVersion)
	if r.ChartPath != "" {
		fmt.Fprintf(w, "chart %s\n", r.ChartPath)
	}
	if r.Analysis != nil {
		Analysis(w, r.Analysis)
	}
}

// ShortID shortens a UUIDv7 to its millisecond timestamp and sub-millisecond
// sequence, which is unique among the runs of one database in practice.
// `labstat show` accepts it as a prefix.
func ShortID(id string) string {
	if len(id) > 18 {
		return id[:18]
	}
	return id
}

// SheetInfo describes one sheet of a spreadsheet file.
type SheetInfo struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    int      `json:"rows"`
}

// Sheets writes one line per sheet with its size and column headers.
func Sheets(w io.Writer, sheets []SheetInfo) {
	t := newTable(w, "")
	t.AppendHeader(table.Row{"Sheet", "Rows", "Columns"})
	t.SetColumnConfigs(rightAligned(2))
	for _, s := range sheets {
		t.AppendRow(table.Row{s.Name, s.Rows, strings.Join(s.Columns, ", ")})
	}
	t.Render()
}
