package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loopvinyl/tco2eq-v3/internal/export"
	"github.com/loopvinyl/tco2eq-v3/internal/insights"
)

// NewReportCommand creates the report command.
func NewReportCommand() *cobra.Command {
	var (
		format string
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "report <workbook> <sheet>",
		Short: "Render a full sheet report",
		Long: `Render the sheet's shape summary, per-column profile, and ordered
insight list as plain text or markdown.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, args[0], args[1], format, strict)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Report format (text|markdown)")
	cmd.Flags().BoolVar(&strict, "strict", false, "Strict null mode for the insights section")
	return cmd
}

func runReport(cmd *cobra.Command, path, sheet, format string, strict bool) error {
	f, closeFn, err := openWorkbook(path)
	if err != nil {
		return err
	}
	defer closeFn()

	tbl, p, err := loadProfiled(f, sheet)
	if err != nil {
		return err
	}
	list, err := insights.Insights(tbl, p, insights.Options{StrictNulls: strict})
	if err != nil {
		return fmt.Errorf("insights %q: %w", sheet, err)
	}

	r := export.Report{Title: sheet, Profile: p, Insights: list}
	if jsonMode(cmd) {
		return writeJSON(cmd.OutOrStdout(), r)
	}
	text, err := export.RenderString(r, format)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), text)
	return nil
}
