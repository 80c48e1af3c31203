// Copyright 2020, 2023, 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

// Package xlsx writes calcsheet exports as Office Open XML workbooks,
// and reads such workbooks into sheets.
package xlsx

import (
	"database/sql/driver"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/UNO-SOFT/calcsheet"
	"github.com/xuri/excelize/v2"
)

var _ = (calcsheet.Writer)((*XLSXWriter)(nil))

type XLSXWriter struct {
	w      io.Writer
	xl     *excelize.File
	styles map[string]int
	sheets []string
	mu     sync.Mutex
}

type XLSXSheet struct {
	xl       *excelize.File
	Name     string
	row      int64
	errStyle int
	mu       sync.Mutex
}

// NewWriter returns a new calcsheet.Writer.
//
// This writer allows concurrent writes to separate sheets.
//
// This writer collects everything in memory, so big sheets may impose problems.
func NewWriter(w io.Writer) *XLSXWriter {
	return &XLSXWriter{w: w, xl: excelize.NewFile()}
}

func (xlw *XLSXWriter) Close() error {
	if xlw == nil {
		return nil
	}
	xlw.mu.Lock()
	defer xlw.mu.Unlock()
	xl, w := xlw.xl, xlw.w
	xlw.xl, xlw.w = nil, nil
	if xl == nil || w == nil {
		return nil
	}
	_, err := xl.WriteTo(w)
	return err
}

// NewSheet adds a new worksheet. The first one takes the place of the default "Sheet1".
func (xlw *XLSXWriter) NewSheet(name string, columns []calcsheet.Column) (calcsheet.RowWriter, error) {
	xlw.mu.Lock()
	defer xlw.mu.Unlock()
	xlw.sheets = append(xlw.sheets, name)
	if len(xlw.sheets) == 1 { // first
		if err := xlw.xl.SetSheetName("Sheet1", name); err != nil {
			return nil, err
		}
	} else if _, err := xlw.xl.NewSheet(name); err != nil {
		return nil, err
	}
	var hasHeader bool
	for i, c := range columns {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if s, err := xlw.getStyle(c.Column); err != nil {
			return nil, err
		} else if s != 0 {
			if err = xlw.xl.SetColStyle(name, col, s); err != nil {
				return nil, err
			}
		}
		if s, err := xlw.getStyle(c.Header); err != nil {
			return nil, err
		} else if s != 0 {
			if err = xlw.xl.SetCellStyle(name, col+"1", col+"1", s); err != nil {
				return nil, err
			}
		}
		if c.Name != "" {
			hasHeader = true
			if err = xlw.xl.SetCellStr(name, col+"1", c.Name); err != nil {
				return nil, err
			}
		}
	}
	errStyle, err := xlw.errorStyle()
	if err != nil {
		return nil, err
	}
	xls := &XLSXSheet{xl: xlw.xl, Name: name, errStyle: errStyle}
	if hasHeader {
		xls.row++
	}
	return xls, nil
}

func (xlw *XLSXWriter) getStyle(style calcsheet.Style) (int, error) {
	if !style.FontBold && style.Format == "" {
		return 0, nil
	}
	k := fmt.Sprintf("%t\t%s", style.FontBold, style.Format)
	var st excelize.Style
	if style.FontBold {
		st.Font = &excelize.Font{Bold: true}
	}
	if style.Format != "" {
		st.CustomNumFmt = &style.Format
	}
	return xlw.cachedStyle(k, &st)
}

// errorStyle marks cells holding error values.
func (xlw *XLSXWriter) errorStyle() (int, error) {
	return xlw.cachedStyle("error", &excelize.Style{
		Font: &excelize.Font{Color: ErrorColor, Italic: true},
	})
}

func (xlw *XLSXWriter) cachedStyle(k string, st *excelize.Style) (int, error) {
	if s, ok := xlw.styles[k]; ok {
		return s, nil
	}
	s, err := xlw.xl.NewStyle(st)
	if err != nil {
		return 0, err
	}
	if xlw.styles == nil {
		xlw.styles = make(map[string]int)
	}
	xlw.styles[k] = s
	return s, nil
}

// MaxRowCount is the number of maximum rows.
const MaxRowCount = 1_048_576

// ErrorColor is the font color of error values.
const ErrorColor = "C00000"

func (xls *XLSXSheet) Close() error { return nil }

// AppendRow writes values into the next row. Nil values leave the cell empty.
func (xls *XLSXSheet) AppendRow(values ...any) error {
	xls.mu.Lock()
	defer xls.mu.Unlock()
	if xls.row >= MaxRowCount {
		return calcsheet.ErrTooManyRows
	}
	xls.row++
	for i, v := range values {
		if v == nil {
			continue
		}
		axis, err := excelize.CoordinatesToCellName(i+1, int(xls.row))
		if err != nil {
			return fmt.Errorf("%d/%d: %w", i, int(xls.row), err)
		}
		if err = xls.setCell(axis, v); err != nil {
			return fmt.Errorf("%s[%s]: %w", xls.Name, axis, err)
		}
	}
	return nil
}

// setCell writes one value. Numbers and booleans keep their cell type;
// error values and arrays are written as their display text.
func (xls *XLSXSheet) setCell(axis string, v any) error {
	if vr, ok := v.(driver.Valuer); ok {
		if vv, err := vr.Value(); err == nil {
			v = vv
		}
	}
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		return xls.xl.SetCellFloat(xls.Name, axis, x, -1, 64)
	case int:
		return xls.xl.SetCellInt(xls.Name, axis, int64(x))
	case int64:
		return xls.xl.SetCellInt(xls.Name, axis, x)
	case bool:
		return xls.xl.SetCellBool(xls.Name, axis, x)
	case string:
		return xls.xl.SetCellStr(xls.Name, axis, x)
	case *calcsheet.Error:
		if err := xls.xl.SetCellStr(xls.Name, axis, x.Code.String()); err != nil {
			return err
		}
		return xls.xl.SetCellStyle(xls.Name, axis, axis, xls.errStyle)
	case []any:
		return xls.xl.SetCellStr(xls.Name, axis, calcsheet.FormatValue(x))
	case time.Time:
		if x.IsZero() {
			return nil
		}
		return xls.xl.SetCellStr(xls.Name, axis, x.Format("2006-01-02"))
	case fmt.Stringer:
		return xls.xl.SetCellStr(xls.Name, axis, x.String())
	}
	return xls.xl.SetCellValue(xls.Name, axis, v)
}
