package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/labstat/internal/report"
	"github.com/roach88/labstat/internal/sheet"
)

// NewSheetsCommand creates the sheets command.
func NewSheetsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets <spreadsheet>",
		Short: "List the sheets and columns of a spreadsheet",
		Long: `List every sheet of a workbook with its data row count and column
headers, to pick the --sheet, --group and --response values for analyze.

Delimited files (.csv, .tsv, .txt) have a single sheet named after the file.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSheets(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runSheets(opts *RootOptions, path string, cmd *cobra.Command) error {
	if err := opts.setup(cmd); err != nil {
		return err
	}
	formatter := opts.formatter(cmd)

	names, err := sheet.Sheets(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInput, "failed to read spreadsheet", err)
	}

	infos := make([]report.SheetInfo, 0, len(names))
	for _, name := range names {
		tbl, err := sheet.Load(path, name)
		if err != nil {
			// Blank sheets are listed without columns.
			opts.Logger.Debug("sheet not loaded", "sheet", name, "error", err)
			infos = append(infos, report.SheetInfo{Name: name, Columns: []string{}})
			continue
		}
		infos = append(infos, report.SheetInfo{Name: name, Columns: tbl.Columns, Rows: len(tbl.Rows)})
	}

	return formatter.Render(infos, func(w io.Writer) {
		report.Sheets(w, infos)
	})
}
