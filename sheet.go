// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package calcsheet

import (
	"errors"
	"log/slog"
	"maps"
	"slices"

	"github.com/google/uuid"
)

// Default extent of a sheet created by New.
const (
	DefaultRows    = 20
	DefaultColumns = 16
)

var (
	ErrInvalidPosition = errors.New("invalid position")
	ErrOutOfRange      = errors.New("position out of range")
)

// Evaluator evaluates formula source text.
//
// Every cell reference met during evaluation must be resolved through
// ctx.ReadCell: that is how the sheet learns the dependencies of a formula.
// An Evaluator belongs to one sheet and is not shared between goroutines.
type Evaluator interface {
	Evaluate(source string, ctx Context) (Value, error)
}

// Context is passed to the Evaluator for one formula evaluation.
type Context interface {
	// ReadCell returns the current value of the cell at p, recomputing it
	// if needed, and records that the evaluated cell depends on it.
	// Error values are returned as the error.
	ReadCell(p Position) (Value, error)
	// Cell is the cell being evaluated.
	Cell() *Cell
	// Sheet is the sheet of the cell being evaluated.
	Sheet() *Sheet
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(source string, ctx Context) (Value, error)

func (f EvaluatorFunc) Evaluate(source string, ctx Context) (Value, error) { return f(source, ctx) }

// Sheet is a grid of cells with incremental recomputation.
//
// A Sheet is not safe for concurrent use.
type Sheet struct {
	id        uuid.UUID
	name      string
	columns   []string
	columnIdx map[string]int
	rows      int
	cells     map[Position]*Cell
	selected  *Position

	evaluator Evaluator
	logger    *slog.Logger

	// recomputation state
	stack    []*Cell
	visited  map[Position]struct{}
	lastPass PassStats
	// cells that read beyond the extent, recomputed when the sheet grows
	outsideReaders map[Position]struct{}
}

// PassStats describes one recomputation pass.
type PassStats struct {
	Evaluations int
	Cycles      int
}

// Option configures a Sheet.
type Option func(*Sheet)

// WithName sets the name of the sheet.
func WithName(name string) Option { return func(s *Sheet) { s.name = name } }

// WithExtent sets the initial number of rows and columns.
func WithExtent(rows, columns int) Option {
	return func(s *Sheet) {
		s.rows = max(rows, 0)
		s.columns, s.columnIdx = nil, make(map[string]int, columns)
		for range max(columns, 0) {
			s.appendColumn()
		}
	}
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sheet) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithID sets the document id; New generates a random one.
func WithID(id uuid.UUID) Option { return func(s *Sheet) { s.id = id } }

// New returns a new sheet of DefaultRows x DefaultColumns, evaluating
// formulas with ev.
func New(ev Evaluator, options ...Option) *Sheet {
	s := &Sheet{
		id:        uuid.New(),
		name:      "Sheet1",
		columnIdx: make(map[string]int, DefaultColumns),
		cells:     make(map[Position]*Cell),
		evaluator: ev,
		logger:    slog.Default(),
		visited:   make(map[Position]struct{}),

		outsideReaders: make(map[Position]struct{}),
	}
	WithExtent(DefaultRows, DefaultColumns)(s)
	for _, o := range options {
		o(s)
	}
	return s
}

// ID of the sheet document.
func (s *Sheet) ID() uuid.UUID { return s.id }

// Name of the sheet.
func (s *Sheet) Name() string { return s.name }

// SetName renames the sheet.
func (s *Sheet) SetName(name string) { s.name = name }

// Evaluator returns the formula evaluator of the sheet.
func (s *Sheet) Evaluator() Evaluator { return s.evaluator }

// RowCount returns the number of rows.
func (s *Sheet) RowCount() int { return s.rows }

// ColumnCount returns the number of columns.
func (s *Sheet) ColumnCount() int { return len(s.columns) }

// Columns returns the column labels in order.
func (s *Sheet) Columns() []string { return slices.Clone(s.columns) }

// ColumnLabel returns the label of the index-th column, or "" if there is no such column.
func (s *Sheet) ColumnLabel(index int) string {
	if index < 0 || index >= len(s.columns) {
		return ""
	}
	return s.columns[index]
}

// AddRow appends a row and returns its index.
// Formulas that read the new row while it was out of range are recomputed.
func (s *Sheet) AddRow() int {
	s.rows++
	s.refreshGrown()
	return s.rows - 1
}

// AddColumn appends a column and returns its label.
// Formulas that read the new column while it was out of range are recomputed.
func (s *Sheet) AddColumn() string {
	label := s.appendColumn()
	s.refreshGrown()
	return label
}

func (s *Sheet) appendColumn() string {
	next := 0
	if n := len(s.columns); n != 0 {
		next = ColumnIndex(s.columns[n-1]) + 1
	}
	label := ColumnLabel(next)
	s.columnIdx[label] = len(s.columns)
	s.columns = append(s.columns, label)
	return label
}

// InRange reports whether p lies within the current rows and columns.
func (s *Sheet) InRange(p Position) bool {
	_, ok := s.columnIdx[p.Column]
	return ok && 0 <= p.Row && p.Row < s.rows
}

// At returns the cell at p, or nil if none has been created there.
func (s *Sheet) At(p Position) *Cell { return s.cells[p] }

// AtName is At with a display name ("B12"). It returns nil for malformed names.
func (s *Sheet) AtName(name string) *Cell {
	p, ok := ParsePosition(name)
	if !ok {
		return nil
	}
	return s.At(p)
}

// Ensure returns the cell at p, creating an empty literal cell if needed.
func (s *Sheet) Ensure(p Position) *Cell {
	if c := s.cells[p]; c != nil {
		return c
	}
	c := newCell(s, p)
	s.cells[p] = c
	return c
}

// Cells returns the positions of all materialized cells in ComparePositions order.
func (s *Sheet) Cells() []Position {
	return slices.SortedFunc(maps.Keys(s.cells), ComparePositions)
}

// Value returns the current value at p, recomputing it if needed.
func (s *Sheet) Value(p Position) Value {
	return s.Ensure(p).CurrentValue()
}

// CellAt returns the display text of the value at p.
func (s *Sheet) CellAt(p Position) string {
	return FormatValue(s.Value(p))
}

// SetCellData sets the entered text of the cell at p and recomputes it
// and its dependents. Setting the current text again does nothing.
func (s *Sheet) SetCellData(p Position, text string) {
	c := s.Ensure(p)
	if !c.SetData(text) {
		return
	}
	s.Update(c)
}

// SetCellValue assigns v to the cell at p and recomputes its dependents.
func (s *Sheet) SetCellValue(p Position, v Value) {
	c := s.Ensure(p)
	c.SetValue(v)
	s.Update(c)
}

// Selected returns the selected position, if any.
func (s *Sheet) Selected() (Position, bool) {
	if s.selected == nil {
		return Position{}, false
	}
	return *s.selected, true
}

// SetSelected stores the selected position; the sheet does not interpret it.
func (s *Sheet) SetSelected(p Position) { s.selected = &p }

// ClearSelected clears the selection.
func (s *Sheet) ClearSelected() { s.selected = nil }
