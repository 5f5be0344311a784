package commands

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/loopvinyl/tco2eq-v3/internal/insights"
)

// NewDescribeCommand creates the describe command.
func NewDescribeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <workbook> <sheet>",
		Short: "Descriptive statistics for numeric columns",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDescribe(cmd, args[0], args[1])
		},
	}
}

func runDescribe(cmd *cobra.Command, path, sheet string) error {
	f, closeFn, err := openWorkbook(path)
	if err != nil {
		return err
	}
	defer closeFn()

	tbl, p, err := loadProfiled(f, sheet)
	if err != nil {
		return err
	}
	cols, err := insights.Describe(tbl, p)
	if err != nil {
		return fmt.Errorf("describe %q: %w", sheet, err)
	}
	if jsonMode(cmd) {
		return writeJSON(cmd.OutOrStdout(), cols)
	}

	out := cmd.OutOrStdout()
	if len(cols) == 0 {
		fmt.Fprintln(out, "no numeric columns")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Column", "Count", "Mean", "Std", "Min", "25%", "Median", "75%", "Max"})
	for _, c := range cols {
		t.AppendRow(table.Row{
			c.Column, c.Count,
			fmtStat(c.Mean), optFloat(c.Std),
			fmtStat(c.Min), fmtStat(c.Q25), fmtStat(c.Median), fmtStat(c.Q75), fmtStat(c.Max),
		})
	}
	t.Render()
	return nil
}

func fmtStat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
