package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/loopvinyl/tco2eq-v3/internal/insights"
	"github.com/loopvinyl/tco2eq-v3/internal/workbooks"
)

type sheetSummary struct {
	Sheet       string  `json:"sheet"`
	Rows        int     `json:"rows"`
	Cols        int     `json:"cols"`
	NumericCols int     `json:"numeric_cols"`
	FillRate    float64 `json:"fill_rate"`
	Headline    string  `json:"headline,omitempty"`
}

// NewSummaryCommand creates the summary command.
func NewSummaryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "summary <workbook>",
		Short: "Roll up every sheet with its leading insight",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummary(cmd, args[0])
		},
	}
}

func runSummary(cmd *cobra.Command, path string) error {
	f, closeFn, err := openWorkbook(path)
	if err != nil {
		return err
	}
	defer closeFn()

	wb, err := workbooks.Tables(f)
	if err != nil {
		return fmt.Errorf("read workbook: %w", err)
	}

	summaries := make([]sheetSummary, 0, wb.Len())
	for _, name := range wb.Names() {
		tbl, _ := wb.Table(name)
		p, err := insights.Profile(tbl)
		if err != nil {
			return fmt.Errorf("profile %q: %w", name, err)
		}
		list, err := insights.Insights(tbl, p, insights.Options{})
		if err != nil {
			return fmt.Errorf("insights %q: %w", name, err)
		}
		s := sheetSummary{
			Sheet:       name,
			Rows:        p.Rows,
			Cols:        p.Cols,
			NumericCols: p.NumericCols,
			FillRate:    p.FillRate,
		}
		if len(list) > 0 {
			s.Headline = list[0].Message
		}
		summaries = append(summaries, s)
	}

	if jsonMode(cmd) {
		return writeJSON(cmd.OutOrStdout(), summaries)
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Sheet", "Rows", "Cols", "Numeric", "Fill %", "Headline"})
	for _, s := range summaries {
		t.AppendRow(table.Row{s.Sheet, s.Rows, s.Cols, s.NumericCols, fmt.Sprintf("%.2f", s.FillRate), s.Headline})
	}
	t.Render()
	return nil
}
