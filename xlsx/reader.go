// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package xlsx

import (
	"fmt"
	"io"

	"github.com/UNO-SOFT/calcsheet"
	"github.com/xuri/excelize/v2"
)

// ReadSheet reads the named worksheet (the first one if name is empty)
// of the workbook in r into a new sheet, and computes it.
//
// Cells are read as their formatted text. Workbook formulas are not
// translated: their cached results are loaded as literals.
func ReadSheet(r io.Reader, name string, ev calcsheet.Evaluator, options ...calcsheet.Option) (*calcsheet.Sheet, error) {
	xl, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer xl.Close()
	if name == "" {
		name = xl.GetSheetName(0)
	}
	rows, err := xl.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", name, err)
	}

	var width int
	for _, row := range rows {
		width = max(width, len(row))
	}
	doc := calcsheet.Document{Name: name, Rows: len(rows), Cells: make(map[string]string)}
	for i := range width {
		doc.Columns = append(doc.Columns, calcsheet.ColumnLabel(i))
	}
	for r, row := range rows {
		for c, text := range row {
			if text == "" {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			doc.Cells[axis] = text
		}
	}
	return calcsheet.FromDocument(doc, ev, options...)
}
