// Copyright 2020, 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

// Package calcsheet is a spreadsheet of cells holding literals or formulas,
// recomputed incrementally.
//
// Dependencies between cells are discovered while formulas are evaluated:
// every cell read by a formula is recorded, and editing a cell recomputes
// exactly the cells that read it, directly or transitively.
// Circular dependencies evaluate to the #CYCLE! error value.
//
// The evaluated sheet can be exported through a Writer
// (see the xlsx, ods and pdf subpackages).
package calcsheet

import (
	"errors"
	"fmt"
	"io"
)

// Writer writes the spreadsheet consisting of the sheets created
// with NewSheet. The write finishes when Close is called.
//
// The writer SHOULD allow writing to separate sheets concurrently,
// and document if it does not provide this functionality.
type Writer interface {
	io.Closer
	NewSheet(name string, cols []Column) (RowWriter, error)
}

// RowWriter should be Closed when finished.
type RowWriter interface {
	io.Closer
	AppendRow(values ...any) error
}

// Style is a style for a column/row/cell.
type Style struct {
	// Format is the number format
	Format string
	// FontBold is true if the font is bold
	FontBold bool
}

// Column contains the Name of the column and header's style and column's style.
type Column struct {
	Name           string
	Header, Column Style
}

var ErrTooManyRows = errors.New("too many rows")

// Export writes the evaluated values of the sheet into a new sheet of w,
// one row per sheet row. Error values are written as their codes.
//
// With header, the column labels are written as a bold header row.
func (s *Sheet) Export(w Writer, header bool) error {
	s.UpdateAll()
	cols := make([]Column, len(s.columns))
	if header {
		for i, label := range s.columns {
			cols[i] = Column{Name: label, Header: Style{FontBold: true}}
		}
	}
	rw, err := w.NewSheet(s.name, cols)
	if err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	values := make([]any, len(s.columns))
	for row := 0; row < s.rows; row++ {
		for i, col := range s.columns {
			values[i] = exportValue(s.At(Position{Column: col, Row: row}))
		}
		if err := rw.AppendRow(values...); err != nil {
			rw.Close()
			return fmt.Errorf("%s row %d: %w", s.name, row+1, err)
		}
	}
	return rw.Close()
}

func exportValue(c *Cell) any {
	if c == nil {
		return nil
	}
	switch v := c.CurrentValue().(type) {
	case nil, float64, string, bool:
		return v
	case *Error:
		return v.Code.String()
	default:
		return FormatValue(v)
	}
}
