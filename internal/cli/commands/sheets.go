package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/loopvinyl/tco2eq-v3/internal/workbooks"
)

// NewSheetsCommand creates the sheets command.
func NewSheetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sheets <workbook>",
		Short: "List sheets with their dimensions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSheets(cmd, args[0])
		},
	}
}

func runSheets(cmd *cobra.Command, path string) error {
	f, closeFn, err := openWorkbook(path)
	if err != nil {
		return err
	}
	defer closeFn()

	metas, err := workbooks.ListSheets(f)
	if err != nil {
		return fmt.Errorf("list sheets: %w", err)
	}
	if jsonMode(cmd) {
		return writeJSON(cmd.OutOrStdout(), metas)
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Sheet", "Rows", "Cols", "Visible"})
	for _, m := range metas {
		t.AppendRow(table.Row{m.Index, m.Name, m.Rows, m.Cols, m.Visible})
	}
	t.Render()
	return nil
}
