package workbooks

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/loopvinyl/tco2eq-v3/internal/tabular"
)

func openFixture(t *testing.T, build func(f *excelize.File)) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	build(f)
	path := filepath.Join(t.TempDir(), "fixture.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	opened, err := excelize.OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = opened.Close() })
	return opened
}

func TestSheetTable_TypedColumns(t *testing.T) {
	f := openFixture(t, func(f *excelize.File) {
		sh := f.GetSheetName(0)
		require.NoError(t, f.SetSheetRow(sh, "A1", &[]string{"site", "tons", "audited"}))
		require.NoError(t, f.SetSheetRow(sh, "A2", &[]interface{}{"north", 12.5, "yes"}))
		require.NoError(t, f.SetSheetRow(sh, "A3", &[]interface{}{"south", 7, ""}))
		require.NoError(t, f.SetSheetRow(sh, "A4", &[]interface{}{"west", 3.25, "no"}))
	})

	tbl, err := SheetTable(f, f.GetSheetName(0))
	require.NoError(t, err)
	require.Equal(t, 3, tbl.Rows())
	require.Equal(t, 3, tbl.Cols())

	site, ok := tbl.Column("site")
	require.True(t, ok)
	require.Equal(t, tabular.KindText, site.Values[0].Kind)

	tons, ok := tbl.Column("tons")
	require.True(t, ok)
	require.Equal(t, tabular.KindNumber, tons.Values[0].Kind)
	require.InDelta(t, 12.5, tons.Values[0].Num, 1e-9)

	audited, ok := tbl.Column("audited")
	require.True(t, ok)
	require.True(t, audited.Values[1].IsNull())
}

func TestSheetTable_SheetMissing(t *testing.T) {
	f := openFixture(t, func(f *excelize.File) {
		sh := f.GetSheetName(0)
		require.NoError(t, f.SetSheetRow(sh, "A1", &[]string{"a"}))
	})

	_, err := SheetTable(f, "NoSuchSheet")
	require.Error(t, err)
}

func TestListSheets(t *testing.T) {
	f := openFixture(t, func(f *excelize.File) {
		sh := f.GetSheetName(0)
		require.NoError(t, f.SetSheetRow(sh, "A1", &[]string{"a", "b"}))
		require.NoError(t, f.SetSheetRow(sh, "A2", &[]interface{}{1, 2}))
		_, err := f.NewSheet("Empty")
		require.NoError(t, err)
	})

	metas, err := ListSheets(f)
	require.NoError(t, err)
	require.Len(t, metas, 2)
	require.Equal(t, 0, metas[0].Index)
	require.Equal(t, 2, metas[0].Rows)
	require.Equal(t, 2, metas[0].Cols)
	require.True(t, metas[0].Visible)
	require.Equal(t, "Empty", metas[1].Name)
	require.Equal(t, 0, metas[1].Rows)
}

func TestTables_AllSheets(t *testing.T) {
	f := openFixture(t, func(f *excelize.File) {
		sh := f.GetSheetName(0)
		require.NoError(t, f.SetSheetRow(sh, "A1", &[]string{"a"}))
		require.NoError(t, f.SetSheetRow(sh, "A2", &[]interface{}{1}))
		_, err := f.NewSheet("Second")
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Second", "A1", &[]string{"x"}))
	})

	wb, err := Tables(f)
	require.NoError(t, err)
	require.Equal(t, 2, wb.Len())
	first, ok := wb.Table(f.GetSheetName(0))
	require.True(t, ok)
	require.Equal(t, 1, first.Rows())
}
