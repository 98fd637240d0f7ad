package sheet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeWorkbook(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "fig1a"))
	rows := [][]any{
		{"name", "value"},
		{"Col-0", 1.5},
		{"mut1", 2.25},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("fig1a", cell, &row))
	}

	_, err := f.NewSheet("fig1b")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("fig1b", "A3", "genotype"))
	require.NoError(t, f.SetCellValue("fig1b", "B3", "length"))
	require.NoError(t, f.SetCellValue("fig1b", "A4", "WT"))
	require.NoError(t, f.SetCellValue("fig1b", "B4", 10))

	path := filepath.Join(t.TempDir(), "data.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestSheetsWorkbook(t *testing.T) {
	path := writeWorkbook(t)

	names, err := Sheets(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"fig1a", "fig1b"}, names)
}

func TestLoadWorkbook(t *testing.T) {
	path := writeWorkbook(t)

	tbl, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "fig1a", tbl.Name)
	assert.Equal(t, []string{"name", "value"}, tbl.Columns)
	assert.Equal(t, [][]string{{"Col-0", "1.5"}, {"mut1", "2.25"}}, tbl.Rows)
}

func TestLoadWorkbookSkipsLeadingBlankRows(t *testing.T) {
	path := writeWorkbook(t)

	tbl, err := Load(path, "fig1b")
	require.NoError(t, err)
	assert.Equal(t, []string{"genotype", "length"}, tbl.Columns)
	assert.Equal(t, [][]string{{"WT", "10"}}, tbl.Rows)
}

func TestLoadWorkbookReadsStoredValues(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"name", "value"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"a", 1.23456}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"b", 0.456}))
	fixed, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	require.NoError(t, err)
	percent, err := f.NewStyle(&excelize.Style{NumFmt: 9})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Sheet1", "B2", "B2", fixed))
	require.NoError(t, f.SetCellStyle("Sheet1", "B3", "B3", percent))

	path := filepath.Join(t.TempDir(), "formatted.xlsx")
	require.NoError(t, f.SaveAs(path))

	tbl, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "1.23456"}, {"b", "0.456"}}, tbl.Rows)
}

func TestLoadKeepsSourceLines(t *testing.T) {
	t.Run("workbook", func(t *testing.T) {
		tbl, err := Load(writeWorkbook(t), "fig1b")
		require.NoError(t, err)
		assert.Equal(t, []int{4}, tbl.Lines)
	})

	t.Run("delimited", func(t *testing.T) {
		path := writeFile(t, "gaps.csv", "name,value\nA,1\n\n\nB,x\n")
		tbl, err := Load(path, "")
		require.NoError(t, err)
		assert.Equal(t, []int{2, 5}, tbl.Lines)
	})
}

func TestLoadWorkbookUnknownSheet(t *testing.T) {
	path := writeWorkbook(t)

	_, err := Load(path, "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "nope" not found`)
	assert.Contains(t, err.Error(), "fig1a, fig1b")
}

func TestLoadDelimited(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    [][]string
	}{
		{
			name:    "comma",
			file:    "a.csv",
			content: "name,value\nA,1.5\nB,2\n",
			want:    [][]string{{"A", "1.5"}, {"B", "2"}},
		},
		{
			name:    "semicolon with decimal comma",
			file:    "b.csv",
			content: "name;value\nA;1,5\nB;2,0\n",
			want:    [][]string{{"A", "1,5"}, {"B", "2,0"}},
		},
		{
			name:    "tab",
			file:    "c.tsv",
			content: "name\tvalue\nA\t1.5\n\nB\t2\n",
			want:    [][]string{{"A", "1.5"}, {"B", "2"}},
		},
		{
			name:    "bom and trailing blank lines",
			file:    "d.txt",
			content: "\uFEFFname,value\nA,1\n,\n\n",
			want:    [][]string{{"A", "1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			tbl, err := Load(path, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"name", "value"}, tbl.Columns)
			assert.Equal(t, tt.want, tbl.Rows)
		})
	}
}

func TestSheetsDelimited(t *testing.T) {
	path := writeFile(t, "plate_3.csv", "a,b\n1,2\n")

	names, err := Sheets(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"plate_3"}, names)

	tbl, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "plate_3", tbl.Name)
}

func TestLoadRejectsLegacyAndUnknown(t *testing.T) {
	_, err := Load("old.xls", "")
	assert.ErrorIs(t, err, ErrLegacyFormat)

	_, err = Sheets("data.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestLoadEmpty(t *testing.T) {
	path := writeFile(t, "empty.csv", "\n\n")

	_, err := Load(path, "")
	assert.ErrorIs(t, err, ErrEmptySheet)
}

func TestSniffDelimiter(t *testing.T) {
	assert.Equal(t, ',', sniffDelimiter("a,b,c\n1;2"))
	assert.Equal(t, ';', sniffDelimiter("a;b;c\n"))
	assert.Equal(t, '\t', sniffDelimiter("a\tb"))
	assert.Equal(t, ',', sniffDelimiter("single"))
}
