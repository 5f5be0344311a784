package insights

import (
	"fmt"

	"github.com/loopvinyl/tco2eq-v3/internal/tabular"
)

// InsightKind tags the heuristic that produced an insight.
type InsightKind string

const (
	InsightVariability InsightKind = "variability"
	InsightExtremum    InsightKind = "extremum"
	InsightDataQuality InsightKind = "data-quality-warning"
	InsightFallback    InsightKind = "no-data-fallback"
)

// Insight is one human-readable observation about a table. Column is set for
// column-specific kinds and empty otherwise.
type Insight struct {
	Kind    InsightKind `json:"kind"`
	Column  string      `json:"column,omitempty"`
	Message string      `json:"message"`
}

// NullWarnThreshold is the canonical missing-data threshold: a warning fires
// when any column's null rate is strictly greater than this fraction.
const NullWarnThreshold = 0.30

// StrictNullThreshold is the opt-in stricter threshold: the warning reports
// the count of columns whose null rate is strictly greater than this.
const StrictNullThreshold = 0.50

// Options selects insight generation variants.
type Options struct {
	// StrictNulls switches the data-quality rule from "any column above 30%
	// missing" to "count columns above 50% missing".
	StrictNulls bool
}

// Insights derives an ordered, finite list of observations from a table and
// its profile. The rules fire in a fixed order: highest-variance numeric
// column (a variability insight followed by an extremum insight), then the
// missing-data warning, then exactly one fallback when nothing else fired.
// The result is never empty, recomputation from the same inputs yields the
// same list, and neither input is mutated.
func Insights(t *tabular.Table, p *TableProfile, opts Options) ([]Insight, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: nil profile", tabular.ErrInvalidInput)
	}

	out := make([]Insight, 0, 3)

	// Highest variance among numeric columns; ties keep the earlier column.
	best := -1
	for i := range p.Columns {
		cp := &p.Columns[i]
		if cp.Kind != tabular.KindNumeric || cp.Variance == nil {
			continue
		}
		if best == -1 || *cp.Variance > *p.Columns[best].Variance {
			best = i
		}
	}
	if best >= 0 {
		cp := &p.Columns[best]
		out = append(out, Insight{
			Kind:    InsightVariability,
			Column:  cp.Name,
			Message: fmt.Sprintf("%s has the highest variability among numeric columns", cp.Name),
		})
		if cp.Max != nil {
			out = append(out, Insight{
				Kind:    InsightExtremum,
				Column:  cp.Name,
				Message: fmt.Sprintf("max in %s: %s", cp.Name, formatAmount(*cp.Max)),
			})
		}
	}

	if w, ok := nullWarning(p, opts); ok {
		out = append(out, w)
	}

	if len(out) == 0 {
		out = append(out, Insight{
			Kind:    InsightFallback,
			Message: "no actionable pattern found in this table",
		})
	}
	return out, nil
}

func nullWarning(p *TableProfile, opts Options) (Insight, bool) {
	if opts.StrictNulls {
		count := 0
		for i := range p.Columns {
			if p.Columns[i].NullRate > StrictNullThreshold {
				count++
			}
		}
		if count == 0 {
			return Insight{}, false
		}
		return Insight{
			Kind:    InsightDataQuality,
			Message: fmt.Sprintf("%d column(s) exceed 50%% missing values", count),
		}, true
	}

	for i := range p.Columns {
		if p.Columns[i].NullRate > NullWarnThreshold {
			return Insight{
				Kind:    InsightDataQuality,
				Message: "columns with more than 30% missing values detected",
			}, true
		}
	}
	return Insight{}, false
}
