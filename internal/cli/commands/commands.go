// Package commands implements the tco2eq subcommands.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"github.com/loopvinyl/tco2eq-v3/internal/insights"
	"github.com/loopvinyl/tco2eq-v3/internal/tabular"
	"github.com/loopvinyl/tco2eq-v3/internal/workbooks"
)

// openWorkbook opens a workbook from disk and returns a close func for defer.
func openWorkbook(path string) (*excelize.File, func(), error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	closeFn := func() {
		if cerr := f.Close(); cerr != nil {
			zlog.Warn().Err(cerr).Str("path", path).Msg("close workbook")
		}
	}
	return f, closeFn, nil
}

// loadProfiled opens one sheet as a typed table and profiles it.
func loadProfiled(f *excelize.File, sheet string) (*tabular.Table, *insights.TableProfile, error) {
	tbl, err := workbooks.SheetTable(f, sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("sheet %q: %w", sheet, err)
	}
	p, err := insights.Profile(tbl)
	if err != nil {
		return nil, nil, fmt.Errorf("profile %q: %w", sheet, err)
	}
	return tbl, p, nil
}

// jsonMode reports whether the persistent --json flag was set.
func jsonMode(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

// writeJSON pretty-prints v.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// optFloat renders an optional statistic, "-" when absent.
func optFloat(f *float64) string {
	if f == nil {
		return "-"
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
