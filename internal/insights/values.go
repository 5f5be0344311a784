package insights

import (
	"errors"
	"fmt"
	"sort"

	"github.com/loopvinyl/tco2eq-v3/internal/tabular"
)

// ErrColumnNotFound reports a value-distribution request against a column
// the table does not carry.
var ErrColumnNotFound = errors.New("insights: column not found")

// ValueCount is one distinct value with its frequency and share of the
// non-null cells.
type ValueCount struct {
	Value string  `json:"value"`
	Count int     `json:"count"`
	Share float64 `json:"share"`
}

// ValueDistribution summarizes how one column's values spread: the top
// distinct values by frequency, the share left outside them, and an HHI
// concentration score with its band.
type ValueDistribution struct {
	Column     string       `json:"column"`
	Distinct   int          `json:"distinct"`
	NonNull    int          `json:"non_null"`
	Top        []ValueCount `json:"top"`
	OtherShare float64      `json:"other_share"`
	HHI        float64      `json:"hhi"`
	Band       string       `json:"band"`
}

// TopValues counts the distinct rendered values of one column and reports
// the topN most frequent. Nulls are excluded from the counts. Frequency ties
// break on value text ascending so the result is deterministic. HHI is the
// sum of squared shares over all distinct values; bands follow the common
// antitrust thresholds.
func TopValues(t *tabular.Table, column string, topN int) (*ValueDistribution, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	col, ok := t.Column(column)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, column)
	}
	if topN <= 0 {
		topN = 10
	}

	counts := map[string]int{}
	nonNull := 0
	for _, v := range col.Values {
		if v.IsNull() {
			continue
		}
		nonNull++
		counts[v.Display()]++
	}

	out := &ValueDistribution{
		Column:   col.Name,
		Distinct: len(counts),
		NonNull:  nonNull,
		Top:      []ValueCount{},
	}
	if nonNull == 0 {
		out.Band = "unconcentrated"
		return out, nil
	}

	type kv struct {
		k string
		v int
	}
	arr := make([]kv, 0, len(counts))
	for k, v := range counts {
		arr = append(arr, kv{k: k, v: v})
	}
	sort.Slice(arr, func(i, j int) bool {
		if arr[i].v != arr[j].v {
			return arr[i].v > arr[j].v
		}
		return arr[i].k < arr[j].k
	})

	keep := topN
	if keep > len(arr) {
		keep = len(arr)
	}
	var topShare float64
	for i := 0; i < keep; i++ {
		sh := float64(arr[i].v) / float64(nonNull)
		out.Top = append(out.Top, ValueCount{Value: arr[i].k, Count: arr[i].v, Share: round3(sh)})
		topShare += sh
	}
	out.OtherShare = round3(1.0 - topShare)
	if out.OtherShare < 0 {
		out.OtherShare = 0
	}

	var hhi float64
	for _, kvp := range arr {
		sh := float64(kvp.v) / float64(nonNull)
		hhi += sh * sh
	}
	out.HHI = round3(hhi)
	switch {
	case hhi < 0.15:
		out.Band = "unconcentrated"
	case hhi < 0.25:
		out.Band = "moderately_concentrated"
	default:
		out.Band = "highly_concentrated"
	}
	return out, nil
}
