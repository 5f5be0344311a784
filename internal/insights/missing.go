package insights

import (
	"fmt"
	"sort"

	"github.com/loopvinyl/tco2eq-v3/internal/tabular"
)

// MissingColumn reports the null load of one column. Pct is a percentage of
// the row count, 0-100.
type MissingColumn struct {
	Column string  `json:"column"`
	Nulls  int     `json:"nulls"`
	Pct    float64 `json:"pct"`
}

// MissingReport lists only the columns that actually carry nulls, worst
// first. Ties keep table order. An empty slice means the table is fully
// populated.
func MissingReport(p *TableProfile) ([]MissingColumn, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil profile", tabular.ErrInvalidInput)
	}
	out := make([]MissingColumn, 0, len(p.Columns))
	for i := range p.Columns {
		cp := &p.Columns[i]
		nulls := p.Rows - cp.NonNull
		if nulls <= 0 {
			continue
		}
		out = append(out, MissingColumn{
			Column: cp.Name,
			Nulls:  nulls,
			Pct:    round2(cp.NullRate * 100),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Pct > out[j].Pct })
	return out, nil
}
