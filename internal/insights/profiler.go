package insights

import (
	"math"

	"github.com/loopvinyl/tco2eq-v3/internal/tabular"
)

// ColumnProfile summarizes inferred kind and quality statistics for one
// column. Variance and Max are nil when the column has no values to compute
// them from; downstream logic must treat nil as "skip", never as zero.
type ColumnProfile struct {
	Name     string       `json:"name"`
	Kind     tabular.Kind `json:"kind"`
	NonNull  int          `json:"non_null"`
	NullRate float64      `json:"null_rate"`
	Variance *float64     `json:"variance,omitempty"`
	Max      *float64     `json:"max,omitempty"`
}

// TableProfile aggregates shape and per-column statistics for one table.
// FillRate is a percentage in [0,100] and is 100 for tables with no cells.
type TableProfile struct {
	Table       string          `json:"table"`
	Rows        int             `json:"rows"`
	Cols        int             `json:"cols"`
	NumericCols int             `json:"numeric_cols"`
	FillRate    float64         `json:"fill_rate"`
	Columns     []ColumnProfile `json:"columns"`
}

// Profile derives a TableProfile from a table alone. It is deterministic,
// never mutates its input, and absorbs all data irregularities; the only
// error is tabular.ErrInvalidInput for a structurally invalid table.
func Profile(t *tabular.Table) (*TableProfile, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	rows := t.Rows()
	cols := t.Cols()
	p := &TableProfile{
		Table:   t.Name,
		Rows:    rows,
		Cols:    cols,
		Columns: make([]ColumnProfile, 0, cols),
	}

	nonNullTotal := 0
	for i := range t.Columns {
		cp := profileColumn(&t.Columns[i], rows)
		if cp.Kind == tabular.KindNumeric {
			p.NumericCols++
		}
		nonNullTotal += cp.NonNull
		p.Columns = append(p.Columns, cp)
	}

	if rows*cols == 0 {
		p.FillRate = 100.0
	} else {
		p.FillRate = round2(float64(nonNullTotal) / float64(rows*cols) * 100.0)
	}
	return p, nil
}

func profileColumn(c *tabular.Column, rows int) ColumnProfile {
	cp := ColumnProfile{Name: c.Name}

	var hasNumber, hasText, hasTime bool
	var acc welford
	var max float64
	for _, v := range c.Values {
		switch v.Kind {
		case tabular.KindNull:
			continue
		case tabular.KindNumber:
			hasNumber = true
			if acc.n == 0 || v.Num > max {
				max = v.Num
			}
			acc.observe(v.Num)
		case tabular.KindTime:
			hasTime = true
		default:
			hasText = true
		}
		cp.NonNull++
	}

	if rows > 0 {
		cp.NullRate = float64(rows-cp.NonNull) / float64(rows)
	}

	switch {
	case cp.NonNull == 0:
		if c.Declared != "" {
			cp.Kind = c.Declared
		} else {
			cp.Kind = tabular.KindOther
		}
	case hasNumber && !hasText && !hasTime:
		cp.Kind = tabular.KindNumeric
	case hasTime && !hasText && !hasNumber:
		cp.Kind = tabular.KindOther
	default:
		cp.Kind = tabular.KindCategorical
	}

	if cp.Kind == tabular.KindNumeric && acc.n > 0 {
		m := max
		cp.Max = &m
		if v, ok := acc.variance(); ok {
			cp.Variance = &v
		}
	}
	return cp
}

// welford accumulates mean and squared deviation in a single pass.
type welford struct {
	n    int
	mean float64
	m2   float64
}

func (w *welford) observe(x float64) {
	w.n++
	delta := x - w.mean
	w.mean += delta / float64(w.n)
	w.m2 += delta * (x - w.mean)
}

// variance returns the sample variance; undefined below two observations.
func (w *welford) variance() (float64, bool) {
	if w.n < 2 {
		return 0, false
	}
	return w.m2 / float64(w.n-1), true
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }

func round3(x float64) float64 { return math.Round(x*1000) / 1000 }
