package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/loopvinyl/tco2eq-v3/internal/insights"
	"github.com/loopvinyl/tco2eq-v3/internal/workbooks"
)

// NewValuesCommand creates the values command.
func NewValuesCommand() *cobra.Command {
	var topN int

	cmd := &cobra.Command{
		Use:   "values <workbook> <sheet> <column>",
		Short: "Top distinct values of one column with concentration",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValues(cmd, args[0], args[1], args[2], topN)
		},
	}
	cmd.Flags().IntVar(&topN, "top", 10, "Distinct values to report")
	return cmd
}

func runValues(cmd *cobra.Command, path, sheet, column string, topN int) error {
	f, closeFn, err := openWorkbook(path)
	if err != nil {
		return err
	}
	defer closeFn()

	tbl, err := workbooks.SheetTable(f, sheet)
	if err != nil {
		return fmt.Errorf("sheet %q: %w", sheet, err)
	}
	dist, err := insights.TopValues(tbl, column, topN)
	if err != nil {
		return fmt.Errorf("values %q: %w", column, err)
	}
	if jsonMode(cmd) {
		return writeJSON(cmd.OutOrStdout(), dist)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: distinct=%d non_null=%d HHI=%.3f band=%s\n", column, dist.Distinct, dist.NonNull, dist.HHI, dist.Band)

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Value", "Count", "Share"})
	for _, vc := range dist.Top {
		t.AppendRow(table.Row{vc.Value, vc.Count, fmt.Sprintf("%.3f", vc.Share)})
	}
	t.Render()

	if dist.OtherShare > 0 {
		fmt.Fprintf(out, "other values: %.3f of non-null cells\n", dist.OtherShare)
	}
	return nil
}
