package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loopvinyl/tco2eq-v3/internal/insights"
	"github.com/loopvinyl/tco2eq-v3/internal/runtime"
	"github.com/loopvinyl/tco2eq-v3/internal/tabular"
)

func analysisFixture(t *testing.T) (*Analyzer, *tabular.Table) {
	t.Helper()
	tbl, err := tabular.NewTable("Scope 1", []tabular.Column{
		{Name: "site", Values: []tabular.Value{tabular.Text("north"), tabular.Text("south"), tabular.Text("west")}},
		{Name: "tons", Values: []tabular.Value{tabular.Number(1200.5), tabular.Number(980), tabular.Number(1010)}},
	})
	require.NoError(t, err)
	a := &Analyzer{
		Limits: runtime.NewLimits(4, 4),
		Cache:  insights.NewProfileCache(8),
	}
	return a, tbl
}

func TestAnalyzer_ProfileCaching(t *testing.T) {
	a, tbl := analysisFixture(t)

	p1, fp, cached, errRes := a.profileFor(tbl, false)
	require.Nil(t, errRes)
	require.False(t, cached)
	require.NotEmpty(t, fp)

	p2, fp2, cached, errRes := a.profileFor(tbl, false)
	require.Nil(t, errRes)
	require.True(t, cached)
	require.Equal(t, fp, fp2)
	require.Same(t, p1, p2)
}

func TestAnalyzer_RefreshInvalidates(t *testing.T) {
	a, tbl := analysisFixture(t)

	p1, _, _, errRes := a.profileFor(tbl, false)
	require.Nil(t, errRes)

	p2, _, cached, errRes := a.profileFor(tbl, true)
	require.Nil(t, errRes)
	require.False(t, cached)
	require.NotSame(t, p1, p2)
}

func TestAnalyzer_InsightCaching(t *testing.T) {
	a, tbl := analysisFixture(t)
	p, fp, _, errRes := a.profileFor(tbl, false)
	require.Nil(t, errRes)

	first, hit, errRes := a.insightsFor(tbl, p, fp, false)
	require.Nil(t, errRes)
	require.False(t, hit)
	require.NotEmpty(t, first)

	second, hit, errRes := a.insightsFor(tbl, p, fp, false)
	require.Nil(t, errRes)
	require.True(t, hit)
	require.Equal(t, first, second)
}

func TestAnalyzer_StrictRunsBypassCache(t *testing.T) {
	a, tbl := analysisFixture(t)
	p, fp, _, errRes := a.profileFor(tbl, false)
	require.Nil(t, errRes)

	_, _, errRes = a.insightsFor(tbl, p, fp, false)
	require.Nil(t, errRes)

	// Strict output depends on the mode, so it is recomputed every time
	// and never replaces the canonical entry
	_, hit, errRes := a.insightsFor(tbl, p, fp, true)
	require.Nil(t, errRes)
	require.False(t, hit)

	_, hit, errRes = a.insightsFor(tbl, p, fp, false)
	require.Nil(t, errRes)
	require.True(t, hit)
}
