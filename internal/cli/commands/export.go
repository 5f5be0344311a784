package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/loopvinyl/tco2eq-v3/internal/export"
	"github.com/loopvinyl/tco2eq-v3/internal/workbooks"
)

type exportResult struct {
	Path  string `json:"path"`
	Rows  int    `json:"rows"`
	Bytes int64  `json:"bytes"`
}

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "export <workbook> <sheet>",
		Short: "Write one sheet as a dated CSV file",
		Long: `Write a sheet to {sheet}_{YYYYMMDD}.csv in the destination directory.
Numbers render locale-free and null cells stay empty.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, args[0], args[1], dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "Destination directory")
	return cmd
}

func runExport(cmd *cobra.Command, path, sheet, dir string) error {
	f, closeFn, err := openWorkbook(path)
	if err != nil {
		return err
	}
	defer closeFn()

	tbl, err := workbooks.SheetTable(f, sheet)
	if err != nil {
		return fmt.Errorf("sheet %q: %w", sheet, err)
	}

	dest := filepath.Join(dir, export.DatedFilename(sheet, time.Now()))
	rows, bytes, err := export.WriteCSV(dest, tbl)
	if err != nil {
		return fmt.Errorf("export %q: %w", sheet, err)
	}

	if jsonMode(cmd) {
		return writeJSON(cmd.OutOrStdout(), exportResult{Path: dest, Rows: rows, Bytes: bytes})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows (%d bytes) to %s\n", rows, bytes, dest)
	return nil
}
