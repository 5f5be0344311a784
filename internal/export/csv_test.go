package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loopvinyl/tco2eq-v3/internal/tabular"
)

func emissionsTable(t *testing.T) *tabular.Table {
	t.Helper()
	tbl, err := tabular.NewTable("Scope 1", []tabular.Column{
		{Name: "site", Values: []tabular.Value{tabular.Text("north"), tabular.Text("south"), tabular.Text("west")}},
		{Name: "tons", Values: []tabular.Value{tabular.Number(1200.5), tabular.Number(980), tabular.Null()}},
	})
	require.NoError(t, err)
	return tbl
}

func TestDatedFilename(t *testing.T) {
	at := time.Date(2024, 3, 15, 23, 30, 0, 0, time.UTC)
	require.Equal(t, "Scope_1_20240315.csv", DatedFilename("Scope 1", at))
	require.Equal(t, "sheet_20240315.csv", DatedFilename("  ", at))
	require.Equal(t, "r_d_20240315.csv", DatedFilename("r&d", at))
}

func TestDatedFilename_UsesUTCDate(t *testing.T) {
	// 23:30 on Mar 15 in UTC-5 is already Mar 16 in UTC.
	loc := time.FixedZone("UTC-5", -5*3600)
	at := time.Date(2024, 3, 15, 23, 30, 0, 0, loc)
	require.Equal(t, "x_20240316.csv", DatedFilename("x", at))
}

func TestWriteCSV(t *testing.T) {
	tbl := emissionsTable(t)
	dest := filepath.Join(t.TempDir(), "out.csv")

	rows, bytes, err := WriteCSV(dest, tbl)
	require.NoError(t, err)
	require.Equal(t, 3, rows)
	require.Greater(t, bytes, int64(0))

	raw, err := os.ReadFile(dest)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	require.Len(t, lines, 4)
	require.Equal(t, "site,tons", lines[0])
	require.Equal(t, "north,1200.5", lines[1])
	require.Equal(t, "south,980", lines[2])
	// Null cells stay empty
	require.Equal(t, "west,", lines[3])
}

func TestWriteCSV_InvalidTable(t *testing.T) {
	bad := &tabular.Table{Name: "x", Columns: []tabular.Column{
		{Name: "a", Values: []tabular.Value{tabular.Number(1)}},
		{Name: "a", Values: []tabular.Value{tabular.Number(2)}},
	}}
	_, _, err := WriteCSV(filepath.Join(t.TempDir(), "x.csv"), bad)
	require.ErrorIs(t, err, tabular.ErrInvalidInput)
}
