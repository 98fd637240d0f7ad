// Command labstat runs significance tests on lab spreadsheets and draws
// annotated bar charts.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/labstat/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "labstat:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
