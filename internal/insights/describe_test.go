package insights

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loopvinyl/tco2eq-v3/internal/tabular"
)

func TestDescribe_Statistics(t *testing.T) {
	tbl := mustTable(t, "S", []tabular.Column{
		col("tons", tabular.Number(1), tabular.Number(2), tabular.Number(3), tabular.Number(4), tabular.Null()),
	})
	p, err := Profile(tbl)
	require.NoError(t, err)

	cols, err := Describe(tbl, p)
	require.NoError(t, err)
	require.Len(t, cols, 1)

	s := cols[0]
	require.Equal(t, "tons", s.Column)
	require.Equal(t, 4, s.Count)
	require.InDelta(t, 2.5, s.Mean, 1e-12)
	require.NotNil(t, s.Std)
	require.InDelta(t, math.Sqrt(5.0/3.0), *s.Std, 1e-12)
	require.Equal(t, 1.0, s.Min)
	require.InDelta(t, 1.75, s.Q25, 1e-12)
	require.InDelta(t, 2.5, s.Median, 1e-12)
	require.InDelta(t, 3.25, s.Q75, 1e-12)
	require.Equal(t, 4.0, s.Max)
}

func TestDescribe_SingleObservation(t *testing.T) {
	tbl := mustTable(t, "S", []tabular.Column{numCol("tons", 5)})
	p, err := Profile(tbl)
	require.NoError(t, err)

	cols, err := Describe(tbl, p)
	require.NoError(t, err)
	require.Len(t, cols, 1)

	s := cols[0]
	require.Equal(t, 1, s.Count)
	require.Nil(t, s.Std)
	require.Equal(t, 5.0, s.Min)
	require.Equal(t, 5.0, s.Median)
	require.Equal(t, 5.0, s.Max)
}

func TestDescribe_SkipsNonNumericColumns(t *testing.T) {
	tbl := mustTable(t, "S", []tabular.Column{
		textCol("site", "north", "south"),
		numCol("scope1", 10, 20),
		{Name: "scope2", Values: nulls(2), Declared: tabular.KindNumeric},
		numCol("scope3", 1, 2),
	})
	p, err := Profile(tbl)
	require.NoError(t, err)

	cols, err := Describe(tbl, p)
	require.NoError(t, err)
	require.Len(t, cols, 2)
	require.Equal(t, "scope1", cols[0].Column)
	require.Equal(t, "scope3", cols[1].Column)
}

func TestDescribe_InvalidInput(t *testing.T) {
	tbl := mustTable(t, "S", []tabular.Column{numCol("tons", 1)})
	_, err := Describe(tbl, nil)
	require.ErrorIs(t, err, tabular.ErrInvalidInput)

	p, err := Profile(tbl)
	require.NoError(t, err)
	_, err = Describe(nil, p)
	require.ErrorIs(t, err, tabular.ErrInvalidInput)
}
