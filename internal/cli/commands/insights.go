package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loopvinyl/tco2eq-v3/internal/insights"
)

// NewInsightsCommand creates the insights command.
func NewInsightsCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "insights <workbook> <sheet>",
		Short: "Generate ordered insights for one sheet",
		Long: `Report the highest-variability numeric column with its maximum, warn on
columns with excessive missing values, and fall back to a data-shape note
when nothing else fires. The list is never empty.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInsights(cmd, args[0], args[1], strict)
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Count columns above 50% missing instead of flagging above 30%")
	return cmd
}

func runInsights(cmd *cobra.Command, path, sheet string, strict bool) error {
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
	if jsonMode(cmd) {
		return writeJSON(cmd.OutOrStdout(), list)
	}

	out := cmd.OutOrStdout()
	for _, ins := range list {
		fmt.Fprintf(out, "- [%s] %s\n", ins.Kind, ins.Message)
	}
	return nil
}
