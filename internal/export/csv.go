package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/loopvinyl/tco2eq-v3/internal/tabular"
)

// DatedFilename builds the export name "{sheet}_{YYYYMMDD}.csv" using the
// UTC date. Characters unsafe in filenames are replaced with underscores.
func DatedFilename(sheet string, now time.Time) string {
	base := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(sheet))
	if base == "" {
		base = "sheet"
	}
	return fmt.Sprintf("%s_%s.csv", base, now.UTC().Format("20060102"))
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// WriteCSV writes the table to dest with a header row. Numbers render
// locale-free without exponent notation; nulls render as empty cells.
// Returns the data row count and bytes written.
func WriteCSV(dest string, t *tabular.Table) (int, int64, error) {
	if err := t.Validate(); err != nil {
		return 0, 0, err
	}
	f, err := os.Create(dest)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cw := &countingWriter{w: f}
	rows, err := writeCSVTo(cw, t)
	if err != nil {
		return 0, cw.n, err
	}
	if err := f.Sync(); err != nil {
		return rows, cw.n, err
	}
	return rows, cw.n, nil
}

func writeCSVTo(w io.Writer, t *tabular.Table) (int, error) {
	cw := csv.NewWriter(w)

	header := make([]string, len(t.Columns))
	for i := range t.Columns {
		header[i] = t.Columns[i].Name
	}
	if err := cw.Write(header); err != nil {
		return 0, err
	}

	rows := t.Rows()
	record := make([]string, len(t.Columns))
	for r := 0; r < rows; r++ {
		for ci := range t.Columns {
			record[ci] = t.Columns[ci].Values[r].Display()
		}
		if err := cw.Write(record); err != nil {
			return r, err
		}
	}
	cw.Flush()
	return rows, cw.Error()
}
