package tabular

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseValue_Nulls(t *testing.T) {
	require.True(t, ParseValue("").IsNull())
	require.True(t, ParseValue("   ").IsNull())
	require.True(t, ParseValue("\t").IsNull())
}

func TestParseValue_Numbers(t *testing.T) {
	v := ParseValue("1,200.5")
	require.Equal(t, KindNumber, v.Kind)
	require.Equal(t, 1200.5, v.Num)

	v = ParseValue("$980")
	require.Equal(t, KindNumber, v.Kind)
	require.Equal(t, 980.0, v.Num)

	v = ParseValue("-42")
	require.Equal(t, KindNumber, v.Kind)
	require.Equal(t, -42.0, v.Num)

	v = ParseValue("15%")
	require.Equal(t, KindNumber, v.Kind)
	require.Equal(t, 0.15, v.Num)
}

func TestParseValue_NonFiniteTokensStayText(t *testing.T) {
	// ParseFloat accepts these spellings; column statistics must not.
	for _, s := range []string{"NaN", "nan", "Inf", "+Inf", "-Infinity"} {
		v := ParseValue(s)
		require.Equal(t, KindText, v.Kind, "token %q", s)
		require.Equal(t, s, v.Str)
	}
}

func TestParseValue_Timestamps(t *testing.T) {
	v := ParseValue("2024-01-02")
	require.Equal(t, KindTime, v.Kind)
	require.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), v.TS)

	v = ParseValue("1/2/2006")
	require.Equal(t, KindTime, v.Kind)
}

func TestParseValue_Text(t *testing.T) {
	v := ParseValue("north plant")
	require.Equal(t, KindText, v.Kind)
	require.Equal(t, "north plant", v.Str)

	// Trimmed before classification
	v = ParseValue("  south  ")
	require.Equal(t, "south", v.Str)
}

func TestDisplay(t *testing.T) {
	require.Equal(t, "", Null().Display())
	require.Equal(t, "1200.5", Number(1200.5).Display())
	require.Equal(t, "980", Number(980).Display())
	// No exponent notation for large values
	require.Equal(t, "1000000", Number(1e6).Display())
	require.Equal(t, "plant", Text("plant").Display())

	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "2024-03-15", Timestamp(day).Display())
	stamp := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	require.Equal(t, "2024-03-15T10:30:00Z", Timestamp(stamp).Display())
}
