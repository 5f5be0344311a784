package insights

import (
	"fmt"
	"math"
	"sort"

	"github.com/loopvinyl/tco2eq-v3/internal/tabular"
)

// NumericSummary carries descriptive statistics for one numeric column.
// Std is nil below two observations.
type NumericSummary struct {
	Column string   `json:"column"`
	Count  int      `json:"count"`
	Mean   float64  `json:"mean"`
	Std    *float64 `json:"std,omitempty"`
	Min    float64  `json:"min"`
	Q25    float64  `json:"q25"`
	Median float64  `json:"median"`
	Q75    float64  `json:"q75"`
	Max    float64  `json:"max"`
}

// Describe computes descriptive statistics for every numeric column with at
// least one value. Columns appear in table order; non-numeric and all-null
// columns are skipped.
func Describe(t *tabular.Table, p *TableProfile) ([]NumericSummary, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: nil profile", tabular.ErrInvalidInput)
	}

	out := make([]NumericSummary, 0, p.NumericCols)
	for i := range p.Columns {
		cp := &p.Columns[i]
		if cp.Kind != tabular.KindNumeric || cp.NonNull == 0 {
			continue
		}
		col, ok := t.Column(cp.Name)
		if !ok {
			continue
		}
		vals := numericValues(col)
		if len(vals) == 0 {
			continue
		}
		sort.Float64s(vals)

		var acc welford
		for _, x := range vals {
			acc.observe(x)
		}
		s := NumericSummary{
			Column: cp.Name,
			Count:  len(vals),
			Mean:   acc.mean,
			Min:    vals[0],
			Q25:    quantile(vals, 0.25),
			Median: quantile(vals, 0.5),
			Q75:    quantile(vals, 0.75),
			Max:    vals[len(vals)-1],
		}
		if v, ok := acc.variance(); ok {
			std := math.Sqrt(v)
			s.Std = &std
		}
		out = append(out, s)
	}
	return out, nil
}

func numericValues(c *tabular.Column) []float64 {
	out := make([]float64, 0, len(c.Values))
	for _, v := range c.Values {
		if v.Kind == tabular.KindNumber {
			out = append(out, v.Num)
		}
	}
	return out
}

// quantile interpolates linearly over sorted values.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
