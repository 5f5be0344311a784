package tabular

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// ValueKind discriminates the cell variants a column may hold.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindNumber
	KindText
	KindTime
)

// Value is a single cell: a number, free text, a timestamp, or null.
// The zero Value is null.
type Value struct {
	Kind ValueKind
	Num  float64
	Str  string
	TS   time.Time
}

// Null returns the absent-cell value.
func Null() Value { return Value{} }

// Number wraps a numeric cell.
func Number(f float64) Value { return Value{Kind: KindNumber, Num: f} }

// Text wraps a textual cell.
func Text(s string) Value { return Value{Kind: KindText, Str: s} }

// Timestamp wraps a temporal cell.
func Timestamp(ts time.Time) Value { return Value{Kind: KindTime, TS: ts} }

// IsNull reports whether the cell is absent.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// ParseValue coerces raw cell text into a typed Value. Empty or
// whitespace-only text is null. Numbers may carry thousands separators, a
// currency marker, or a trailing percent sign (interpreted as a fraction).
// Anything that parses as neither a number nor a timestamp stays text;
// malformed numeric-looking input never produces an error.
func ParseValue(raw string) Value {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Null()
	}
	if f, ok := parseNumber(s); ok {
		return Number(f)
	}
	if ts, ok := parseTime(s); ok {
		return Timestamp(ts)
	}
	return Text(s)
}

func parseNumber(s string) (float64, bool) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ',':
			return -1
		case '$':
			return -1
		default:
			return r
		}
	}, s)
	clean = strings.TrimSpace(clean)
	if strings.HasSuffix(clean, "%") {
		v := strings.TrimSpace(strings.TrimSuffix(clean, "%"))
		if f, err := strconv.ParseFloat(v, 64); err == nil && isFinite(f) {
			return f / 100.0, true
		}
		return 0, false
	}
	if f, err := strconv.ParseFloat(clean, 64); err == nil && isFinite(f) {
		return f, true
	}
	return 0, false
}

// isFinite rejects NaN and the infinities, which ParseFloat accepts as
// spelled-out tokens but which have no place in column statistics.
func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"1/2/06",
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// Display renders the cell for human-facing output. Nulls render empty,
// numbers locale-free without exponent notation, timestamps as dates when
// they carry no clock component.
func (v Value) Display() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindTime:
		if v.TS.Hour() == 0 && v.TS.Minute() == 0 && v.TS.Second() == 0 {
			return v.TS.Format("2006-01-02")
		}
		return v.TS.Format(time.RFC3339)
	default:
		return v.Str
	}
}
