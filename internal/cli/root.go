// Package cli provides the command-line interface for tco2eq.
package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/loopvinyl/tco2eq-v3/internal/cli/commands"
	"github.com/loopvinyl/tco2eq-v3/pkg/version"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "tco2eq",
		Short: "Profile spreadsheets and surface emissions-data insights",
		Long: `tco2eq analyzes Excel workbooks of emissions and activity data.

It types each sheet's columns, reports fill rates and missing values,
ranks numeric columns by variability, and renders plain-text or
markdown reports suitable for review or export.`,
		Version: version.Version(),
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			// Logs go to stderr so table and JSON output stay pipeable
			zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr})
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.WarnLevel)
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`tco2eq {{.Version}}
Workbook profiling and insight generation
`)

	rootCmd.PersistentFlags().BoolP("json", "j", false, "Emit JSON instead of tables")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(commands.NewSheetsCommand())
	rootCmd.AddCommand(commands.NewSummaryCommand())
	rootCmd.AddCommand(commands.NewProfileCommand())
	rootCmd.AddCommand(commands.NewInsightsCommand())
	rootCmd.AddCommand(commands.NewDescribeCommand())
	rootCmd.AddCommand(commands.NewMissingCommand())
	rootCmd.AddCommand(commands.NewValuesCommand())
	rootCmd.AddCommand(commands.NewExportCommand())
	rootCmd.AddCommand(commands.NewReportCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
