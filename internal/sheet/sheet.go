// Package sheet reads spreadsheet files into tables.
//
// Workbooks (.xlsx, .xlsm) are read with excelize; delimited text (.csv,
// .tsv, .txt) with encoding/csv after sniffing the delimiter from the header.
package sheet

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/roach88/labstat/internal/table"
)

// ErrLegacyFormat is returned for binary .xls workbooks.
var ErrLegacyFormat = errors.New("legacy .xls workbooks are not supported; save as .xlsx or .csv")

// ErrEmptySheet is returned when a sheet has no header row.
var ErrEmptySheet = errors.New("sheet has no header row")

type kind int

const (
	kindWorkbook kind = iota
	kindDelimited
)

func detect(path string) (kind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return kindWorkbook, nil
	case ".csv", ".tsv", ".txt":
		return kindDelimited, nil
	case ".xls":
		return 0, ErrLegacyFormat
	}
	return 0, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
}

// Sheets lists the sheet names of a file. Delimited files have a single
// sheet named after the file.
func Sheets(path string) ([]string, error) {
	k, err := detect(path)
	if err != nil {
		return nil, err
	}
	if k == kindDelimited {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
		return []string{delimitedSheetName(path)}, nil
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// Load reads one sheet. An empty name selects the first sheet.
func Load(path, sheetName string) (*table.Table, error) {
	k, err := detect(path)
	if err != nil {
		return nil, err
	}
	if k == kindDelimited {
		return loadDelimited(path)
	}
	return loadWorkbook(path, sheetName)
}

func loadWorkbook(path, sheetName string) (*table.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	if sheetName == "" {
		sheetName = sheets[0]
	} else if !contains(sheets, sheetName) {
		return nil, fmt.Errorf("sheet %q not found (available: %s)", sheetName, strings.Join(sheets, ", "))
	}

	// Raw values: displayed text would round "0.00" cells and turn
	// percentages into "46%".
	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheetName, err)
	}
	return fromRows(sheetName, rows, nil)
}

func loadDelimited(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	head, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	r := csv.NewReader(br)
	r.Comma = sniffDelimiter(string(head))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	var rows [][]string
	var lines []int
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		line, _ := r.FieldPos(0)
		rows = append(rows, rec)
		lines = append(lines, line)
	}
	return fromRows(delimitedSheetName(path), rows, lines)
}

// sniffDelimiter picks the most frequent of tab, semicolon and comma on the
// first line. Ties favour tab, then semicolon: a semicolon file with decimal
// commas has both on every line.
func sniffDelimiter(sample string) rune {
	line, _, _ := strings.Cut(sample, "\n")
	best, bestCount := ',', 0
	for _, d := range []rune{'\t', ';', ','} {
		if n := strings.Count(line, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// fromRows builds a table from raw rows: the first non-empty row is the
// header and blank rows are skipped. A UTF-8 BOM on the first cell is removed.
// Each kept row remembers its source line: lines[i] when given, otherwise
// its 1-based position in rows.
func fromRows(name string, rows [][]string, lines []int) (*table.Table, error) {
	t := &table.Table{Name: name}
	for i, row := range rows {
		if blank(row) {
			continue
		}
		if t.Columns == nil {
			header := make([]string, len(row))
			for i, c := range row {
				header[i] = strings.TrimSpace(strings.TrimPrefix(c, "\uFEFF"))
			}
			t.Columns = header
			continue
		}
		t.Rows = append(t.Rows, row)
		line := i + 1
		if i < len(lines) {
			line = lines[i]
		}
		t.Lines = append(t.Lines, line)
	}
	if t.Columns == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptySheet)
	}
	return t, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func delimitedSheetName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
