package tabular

import (
	"fmt"
	"strconv"
	"strings"
)

// FromGrid converts a raw cell grid, as read from a sheet, into a Table.
// Trailing all-empty rows and columns are dropped, the first row is used as
// the header when it looks like one, and remaining cells are coerced with
// ParseValue. Blank or duplicate header labels fall back to positional names
// so the table invariants always hold.
func FromGrid(name string, grid [][]string) (*Table, error) {
	rows := trimGrid(grid)
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	if width == 0 {
		return NewTable(name, nil)
	}

	// A fully numeric first row scores exactly 0.5; strict comparison keeps
	// it as data.
	var header []string
	data := rows
	if len(rows) > 0 && headerConfidence(rows[0]) > 0.5 {
		header = rows[0]
		data = rows[1:]
	}
	names := headerNames(header, width)

	cols := make([]Column, width)
	for i := range cols {
		cols[i] = Column{Name: names[i], Values: make([]Value, len(data))}
	}
	for r, row := range data {
		for c := 0; c < width; c++ {
			var cell string
			if c < len(row) {
				cell = row[c]
			}
			cols[c].Values[r] = ParseValue(cell)
		}
	}
	return NewTable(name, cols)
}

// trimGrid removes trailing all-empty rows and each row's trailing empty
// cells.
func trimGrid(grid [][]string) [][]string {
	out := make([][]string, 0, len(grid))
	for _, row := range grid {
		out = append(out, trimTrailingEmpties(row))
	}
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	return out
}

func trimTrailingEmpties(xs []string) []string {
	i := len(xs)
	for i > 0 {
		if strings.TrimSpace(xs[i-1]) != "" {
			break
		}
		i--
	}
	return xs[:i]
}

// headerConfidence scores how header-like a row is: unique, mostly non-numeric
// labels score high.
func headerConfidence(hdr []string) float64 {
	nonEmpty := 0
	numeric := 0
	uniq := map[string]struct{}{}
	for _, v := range hdr {
		s := strings.TrimSpace(v)
		if s == "" {
			continue
		}
		nonEmpty++
		if _, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
			numeric++
		}
		uniq[strings.ToLower(s)] = struct{}{}
	}
	if nonEmpty == 0 {
		return 0
	}
	uniqRatio := float64(len(uniq)) / float64(nonEmpty)
	numericRatio := float64(numeric) / float64(nonEmpty)
	return clamp01(0.5*uniqRatio + 0.5*(1.0-numericRatio))
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// headerNames resolves final column names from a detected header row,
// synthesizing positional labels for blanks and suffixing duplicates.
func headerNames(header []string, width int) []string {
	names := make([]string, width)
	used := make(map[string]struct{}, width)
	for i := 0; i < width; i++ {
		name := ""
		if i < len(header) {
			name = strings.TrimSpace(header[i])
		}
		if name == "" {
			name = fmt.Sprintf("Column %d", i+1)
		}
		final := name
		for n := 2; ; n++ {
			if _, taken := used[final]; !taken {
				break
			}
			final = fmt.Sprintf("%s (%d)", name, n)
		}
		used[final] = struct{}{}
		names[i] = final
	}
	return names
}
