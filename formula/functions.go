// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package formula

import (
	"errors"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/montanaflynn/stats"

	"github.com/UNO-SOFT/calcsheet"
)

func (e *Evaluator) functions() []expr.Option {
	fns := []struct {
		name string
		fn   func(params ...any) (any, error)
	}{
		{"cell", e.cell},
		{"cells", e.cells},
		{"row", e.row},
		{"column", e.column},
		{"average", statFunc(stats.Mean)},
		{"stdev", statFunc(stats.StandardDeviationSample)},
		{"variance", statFunc(stats.SampleVariance)},
		{"percentile", percentile},
	}
	options := make([]expr.Option, len(fns))
	for i, f := range fns {
		options[i] = expr.Function(f.name, e.guard(f.fn))
	}
	return options
}

// guard records the error values returned by fn in the current frame.
func (e *Evaluator) guard(fn func(params ...any) (any, error)) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		v, err := fn(params...)
		if err != nil {
			return nil, e.fail(err)
		}
		return v, nil
	}
}

// cell("A1") returns the value of A1; empty cells are 0.
func (e *Evaluator) cell(params ...any) (any, error) {
	if len(params) != 1 {
		return nil, calcsheet.Errorf(calcsheet.ErrorCodeNA, "cell: want 1 argument, got %d", len(params))
	}
	p, err := positionArg(params[0])
	if err != nil {
		return nil, err
	}
	ctx, err := e.context()
	if err != nil {
		return nil, err
	}
	v, err := ctx.ReadCell(p)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return 0.0, nil
	}
	return v, nil
}

// cells("A1:B3") or cells("A1", "B3") returns the non-empty values of
// the rectangle, row by row.
func (e *Evaluator) cells(params ...any) (any, error) {
	var from, to calcsheet.Position
	var err error
	switch len(params) {
	case 1:
		s, ok := params[0].(string)
		if !ok {
			return nil, calcsheet.Errorf(calcsheet.ErrorCodeValue, "cells: want string, got %T", params[0])
		}
		a, b, ok := strings.Cut(s, ":")
		if !ok {
			b = a
		}
		if from, err = positionArg(a); err != nil {
			return nil, err
		}
		if to, err = positionArg(b); err != nil {
			return nil, err
		}
	case 2:
		if from, err = positionArg(params[0]); err != nil {
			return nil, err
		}
		if to, err = positionArg(params[1]); err != nil {
			return nil, err
		}
	default:
		return nil, calcsheet.Errorf(calcsheet.ErrorCodeNA, "cells: want 1 or 2 arguments, got %d", len(params))
	}
	ctx, err := e.context()
	if err != nil {
		return nil, err
	}

	// The corners bound the loop, so they must lie within the sheet.
	// Reading them records the dependency until the sheet grows.
	for _, p := range []calcsheet.Position{from, to} {
		if !ctx.Sheet().InRange(p) {
			if _, err := ctx.ReadCell(p); err != nil {
				return nil, err
			}
			return nil, calcsheet.Errorf(calcsheet.ErrorCodeRef, "%s: %v", p, calcsheet.ErrOutOfRange)
		}
	}
	c0, c1 := calcsheet.ColumnIndex(from.Column), calcsheet.ColumnIndex(to.Column)
	c0, c1 = min(c0, c1), max(c0, c1)
	r0, r1 := min(from.Row, to.Row), max(from.Row, to.Row)
	values := []any{}
	for row := r0; row <= r1; row++ {
		for col := c0; col <= c1; col++ {
			v, err := ctx.ReadCell(calcsheet.Position{Column: calcsheet.ColumnLabel(col), Row: row})
			if err != nil {
				return nil, err
			}
			if v != nil {
				values = append(values, v)
			}
		}
	}
	return values, nil
}

// row() is the 1-based row number of the evaluated cell.
func (e *Evaluator) row(params ...any) (any, error) {
	ctx, err := e.context()
	if err != nil {
		return nil, err
	}
	return float64(ctx.Cell().Position().Row + 1), nil
}

// column() is the column label of the evaluated cell.
func (e *Evaluator) column(params ...any) (any, error) {
	ctx, err := e.context()
	if err != nil {
		return nil, err
	}
	return ctx.Cell().Position().Column, nil
}

func positionArg(v any) (calcsheet.Position, error) {
	s, ok := v.(string)
	if !ok {
		return calcsheet.Position{}, calcsheet.Errorf(calcsheet.ErrorCodeRef, "want cell name, got %T", v)
	}
	p, ok := calcsheet.ParsePosition(strings.TrimSpace(s))
	if !ok {
		return calcsheet.Position{}, calcsheet.Errorf(calcsheet.ErrorCodeRef, "%q: %v", s, calcsheet.ErrInvalidPosition)
	}
	return p, nil
}

// statFunc adapts a statistics function over all numbers of its arguments.
func statFunc(fn func(stats.Float64Data) (float64, error)) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		data := numbers(nil, params)
		f, err := fn(data)
		if err != nil {
			return nil, statError(err)
		}
		return f, nil
	}
}

// percentile(values..., p) returns the p-th percentile (0 < p <= 100).
func percentile(params ...any) (any, error) {
	if len(params) < 2 {
		return nil, calcsheet.Errorf(calcsheet.ErrorCodeNA, "percentile: want values and percent")
	}
	pct := numbers(nil, params[len(params)-1:])
	if len(pct) != 1 {
		return nil, calcsheet.Errorf(calcsheet.ErrorCodeValue, "percentile: percent must be a number")
	}
	f, err := stats.Percentile(numbers(nil, params[:len(params)-1]), pct[0])
	if err != nil {
		return nil, statError(err)
	}
	return f, nil
}

// numbers appends the numbers of params, flattening arrays.
// Text, booleans and empty values are skipped.
func numbers(dst []float64, params []any) []float64 {
	for _, p := range params {
		switch x := p.(type) {
		case float64:
			dst = append(dst, x)
		case int:
			dst = append(dst, float64(x))
		case int64:
			dst = append(dst, float64(x))
		case []any:
			dst = numbers(dst, x)
		case []float64:
			dst = append(dst, x...)
		case []int:
			for _, i := range x {
				dst = append(dst, float64(i))
			}
		}
	}
	return dst
}

func statError(err error) error {
	if errors.Is(err, stats.ErrEmptyInput) {
		return calcsheet.NewError(calcsheet.ErrorCodeDiv0, "")
	}
	return calcsheet.NewError(calcsheet.ErrorCodeNum, fmt.Sprint(err))
}
