package insights

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loopvinyl/tco2eq-v3/internal/tabular"
)

func TestMissingReport_WorstFirst(t *testing.T) {
	tbl := mustTable(t, "S", []tabular.Column{
		col("reading", append([]tabular.Value{
			tabular.Number(1), tabular.Number(2), tabular.Number(3), tabular.Number(4),
		}, nulls(6)...)...),
		col("site", append([]tabular.Value{
			tabular.Text("a"), tabular.Text("b"), tabular.Text("c"), tabular.Text("d"),
			tabular.Text("e"), tabular.Text("f"), tabular.Text("g"),
		}, nulls(3)...)...),
		numCol("tons", 1, 2, 3, 4, 5, 6, 7, 8, 9, 10),
	})
	p, err := Profile(tbl)
	require.NoError(t, err)

	cols, err := MissingReport(p)
	require.NoError(t, err)
	require.Len(t, cols, 2)

	require.Equal(t, "reading", cols[0].Column)
	require.Equal(t, 6, cols[0].Nulls)
	require.Equal(t, 60.0, cols[0].Pct)

	require.Equal(t, "site", cols[1].Column)
	require.Equal(t, 3, cols[1].Nulls)
	require.Equal(t, 30.0, cols[1].Pct)
}

func TestMissingReport_TiesKeepTableOrder(t *testing.T) {
	tbl := mustTable(t, "S", []tabular.Column{
		col("b", tabular.Text("x"), tabular.Null()),
		col("a", tabular.Text("y"), tabular.Null()),
	})
	p, err := Profile(tbl)
	require.NoError(t, err)

	cols, err := MissingReport(p)
	require.NoError(t, err)
	require.Len(t, cols, 2)
	require.Equal(t, "b", cols[0].Column)
	require.Equal(t, "a", cols[1].Column)
}

func TestMissingReport_FullyPopulated(t *testing.T) {
	tbl := mustTable(t, "S", []tabular.Column{
		textCol("site", "north", "south"),
		numCol("tons", 1, 2),
	})
	p, err := Profile(tbl)
	require.NoError(t, err)

	cols, err := MissingReport(p)
	require.NoError(t, err)
	require.Empty(t, cols)
}

func TestMissingReport_NilProfile(t *testing.T) {
	_, err := MissingReport(nil)
	require.ErrorIs(t, err, tabular.ErrInvalidInput)
}
