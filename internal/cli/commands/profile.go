package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewProfileCommand creates the profile command.
func NewProfileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "profile <workbook> <sheet>",
		Short: "Profile one sheet's columns",
		Long: `Type every column of a sheet and report non-null counts, null rates,
and variance and maximum for numeric columns, plus the table fill rate.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfile(cmd, args[0], args[1])
		},
	}
}

func runProfile(cmd *cobra.Command, path, sheet string) error {
	f, closeFn, err := openWorkbook(path)
	if err != nil {
		return err
	}
	defer closeFn()

	_, p, err := loadProfiled(f, sheet)
	if err != nil {
		return err
	}
	if jsonMode(cmd) {
		return writeJSON(cmd.OutOrStdout(), p)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: rows=%d cols=%d numeric=%d fill=%.2f%%\n", sheet, p.Rows, p.Cols, p.NumericCols, p.FillRate)

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Column", "Kind", "Non-null", "Null rate", "Variance", "Max"})
	for _, c := range p.Columns {
		t.AppendRow(table.Row{c.Name, string(c.Kind), c.NonNull, fmt.Sprintf("%.2f", c.NullRate), optFloat(c.Variance), optFloat(c.Max)})
	}
	t.Render()
	return nil
}
