package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/loopvinyl/tco2eq-v3/internal/insights"
)

// NewMissingCommand creates the missing command.
func NewMissingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "missing <workbook> <sheet>",
		Short: "Per-column null diagnostics, worst first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMissing(cmd, args[0], args[1])
		},
	}
}

func runMissing(cmd *cobra.Command, path, sheet string) error {
	f, closeFn, err := openWorkbook(path)
	if err != nil {
		return err
	}
	defer closeFn()

	_, p, err := loadProfiled(f, sheet)
	if err != nil {
		return err
	}
	cols, err := insights.MissingReport(p)
	if err != nil {
		return fmt.Errorf("missing report %q: %w", sheet, err)
	}
	if jsonMode(cmd) {
		return writeJSON(cmd.OutOrStdout(), cols)
	}

	out := cmd.OutOrStdout()
	if len(cols) == 0 {
		fmt.Fprintln(out, "all columns fully populated")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Column", "Nulls", "Missing %"})
	for _, c := range cols {
		t.AppendRow(table.Row{c.Column, c.Nulls, fmt.Sprintf("%.1f", c.Pct)})
	}
	t.Render()
	return nil
}
