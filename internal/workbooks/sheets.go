package workbooks

import (
	"fmt"

	"github.com/loopvinyl/tco2eq-v3/internal/tabular"
	"github.com/xuri/excelize/v2"
)

// SheetMeta summarizes one sheet without exposing its cells.
type SheetMeta struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Rows    int    `json:"rows"`
	Cols    int    `json:"cols"`
	Visible bool   `json:"visible"`
}

// SheetGrid returns the formatted cell text of a sheet, row-major. Excel
// trims trailing empty cells per row; downstream table construction
// squares the grid back up.
func SheetGrid(f *excelize.File, sheet string) ([][]string, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SheetTable extracts one sheet as a typed table. Header detection and cell
// coercion follow the tabular package rules.
func SheetTable(f *excelize.File, sheet string) (*tabular.Table, error) {
	grid, err := SheetGrid(f, sheet)
	if err != nil {
		return nil, err
	}
	return tabular.FromGrid(sheet, grid)
}

// ListSheets describes every sheet in workbook order.
func ListSheets(f *excelize.File) ([]SheetMeta, error) {
	names := f.GetSheetList()
	out := make([]SheetMeta, 0, len(names))
	for i, name := range names {
		grid, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
		rows, cols := gridDims(grid)
		visible, err := f.GetSheetVisible(name)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
		out = append(out, SheetMeta{
			Index:   i,
			Name:    name,
			Rows:    rows,
			Cols:    cols,
			Visible: visible,
		})
	}
	return out, nil
}

// Tables extracts every sheet into a named table collection.
func Tables(f *excelize.File) (*tabular.Workbook, error) {
	wb := tabular.NewWorkbook()
	for _, name := range f.GetSheetList() {
		t, err := SheetTable(f, name)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
		if err := wb.Add(t); err != nil {
			return nil, err
		}
	}
	return wb, nil
}

func gridDims(grid [][]string) (rows, cols int) {
	rows = len(grid)
	for _, r := range grid {
		if len(r) > cols {
			cols = len(r)
		}
	}
	return rows, cols
}
