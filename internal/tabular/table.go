package tabular

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
)

// Kind classifies a column for downstream numeric analysis.
type Kind string

const (
	KindNumeric     Kind = "numeric"
	KindCategorical Kind = "categorical"
	KindOther       Kind = "other"
)

// ErrInvalidInput indicates the caller supplied something that is not a
// well-formed table. It is the only error the analysis core produces; data
// irregularities inside a valid table are absorbed, never surfaced as errors.
var ErrInvalidInput = errors.New("tabular: not a valid table")

// Column is an ordered sequence of cells under one name. Declared optionally
// records the ingest layer's kind hint; it is consulted only when every cell
// is null and content-based inference has nothing to work with.
type Column struct {
	Name     string
	Values   []Value
	Declared Kind
}

// Table is an ordered collection of equally-sized named columns. Tables are
// treated as immutable once built; analysis never mutates them.
type Table struct {
	Name    string
	Columns []Column
}

// NewTable validates column shape and returns the assembled table. Columns
// must carry unique non-blank names and equal lengths; violations surface as
// ErrInvalidInput.
func NewTable(name string, cols []Column) (*Table, error) {
	t := &Table{Name: name, Columns: cols}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks the structural invariants NewTable enforces.
func (t *Table) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil table", ErrInvalidInput)
	}
	seen := make(map[string]struct{}, len(t.Columns))
	rows := -1
	for i, c := range t.Columns {
		if c.Name == "" {
			return fmt.Errorf("%w: column %d has no name", ErrInvalidInput, i+1)
		}
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("%w: duplicate column name %q", ErrInvalidInput, c.Name)
		}
		seen[c.Name] = struct{}{}
		if rows == -1 {
			rows = len(c.Values)
		} else if len(c.Values) != rows {
			return fmt.Errorf("%w: column %q has %d rows, expected %d", ErrInvalidInput, c.Name, len(c.Values), rows)
		}
	}
	return nil
}

// Rows returns the row count shared by all columns.
func (t *Table) Rows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Values)
}

// Cols returns the column count.
func (t *Table) Cols() int { return len(t.Columns) }

// Column returns the named column when present.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// Fingerprint returns a stable hex digest over the table's shape, column
// names, declared kinds, and cell contents. Equal tables produce equal
// fingerprints across processes; any content change produces a new one.
func (t *Table) Fingerprint() string {
	h := sha256.New()
	var buf [8]byte
	writeInt := func(n uint64) {
		binary.LittleEndian.PutUint64(buf[:], n)
		h.Write(buf[:])
	}
	writeStr := func(s string) {
		writeInt(uint64(len(s)))
		io.WriteString(h, s)
	}
	writeStr(t.Name)
	writeInt(uint64(len(t.Columns)))
	writeInt(uint64(t.Rows()))
	for _, c := range t.Columns {
		writeStr(c.Name)
		writeStr(string(c.Declared))
		for _, v := range c.Values {
			writeInt(uint64(v.Kind))
			switch v.Kind {
			case KindNumber:
				writeInt(math.Float64bits(v.Num))
			case KindText:
				writeStr(v.Str)
			case KindTime:
				writeInt(uint64(v.TS.UnixNano()))
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Workbook is an ordered mapping from sheet name to table. Insertion order is
// presentation order.
type Workbook struct {
	names  []string
	tables map[string]*Table
}

// NewWorkbook returns an empty workbook.
func NewWorkbook() *Workbook {
	return &Workbook{tables: make(map[string]*Table)}
}

// Add appends a table under its name. Names must be unique within the
// workbook.
func (w *Workbook) Add(t *Table) error {
	if t == nil {
		return fmt.Errorf("%w: nil table", ErrInvalidInput)
	}
	if _, dup := w.tables[t.Name]; dup {
		return fmt.Errorf("%w: duplicate sheet name %q", ErrInvalidInput, t.Name)
	}
	w.names = append(w.names, t.Name)
	w.tables[t.Name] = t
	return nil
}

// Names returns sheet names in insertion order.
func (w *Workbook) Names() []string {
	out := make([]string, len(w.names))
	copy(out, w.names)
	return out
}

// Table returns the named sheet's table when present.
func (w *Workbook) Table(name string) (*Table, bool) {
	t, ok := w.tables[name]
	return t, ok
}

// Len returns the number of sheets.
func (w *Workbook) Len() int { return len(w.names) }
