// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package calcsheet

import (
	"maps"
	"slices"
	"strings"
)

// FormulaPrefix introduces a formula in the entered text of a cell.
const FormulaPrefix = "="

// Kind tells whether a cell holds a literal or a formula.
type Kind uint8

const (
	LiteralString Kind = iota
	Formula
)

func (k Kind) String() string {
	if k == Formula {
		return "formula"
	}
	return "literal"
}

// Cell is one cell of a Sheet. Cells are owned by their Sheet and are
// obtained with Sheet.Ensure or Sheet.At.
type Cell struct {
	sheet *Sheet // owner, not owned
	pos   Position

	kind   Kind
	source string
	value  Value

	dirty               bool
	evaluatedExternally bool

	// cells that read this cell during their own evaluation
	dependents map[Position]struct{}
	// cells this cell read during its last evaluation
	precedents map[Position]struct{}
	// positions beyond the sheet's extent read during the last evaluation
	outside map[Position]struct{}
}

func newCell(sheet *Sheet, pos Position) *Cell {
	return &Cell{sheet: sheet, pos: pos}
}

// Position of the cell in its sheet.
func (c *Cell) Position() Position { return c.pos }

// Sheet returns the owning sheet.
func (c *Cell) Sheet() *Sheet { return c.sheet }

// Kind of the cell's content.
func (c *Cell) Kind() Kind { return c.kind }

// Source returns the cell's source text, without the formula prefix.
func (c *Cell) Source() string { return c.source }

// Data returns the text as it would be entered: formulas carry their prefix.
func (c *Cell) Data() string {
	if c.kind == Formula {
		return FormulaPrefix + c.source
	}
	return c.source
}

// Dirty reports whether the cached value is stale.
func (c *Cell) Dirty() bool { return c.dirty }

// EvaluatedExternally reports whether the value was assigned by SetValue.
func (c *Cell) EvaluatedExternally() bool { return c.evaluatedExternally }

// SetData sets the content of the cell from entered text.
// It reports whether anything changed: setting the current text again is a no-op.
//
// SetData does not recompute anything; use Sheet.SetCellData or Sheet.Update for that.
func (c *Cell) SetData(text string) bool {
	if text == c.Data() {
		return false
	}
	if src, ok := strings.CutPrefix(text, FormulaPrefix); ok {
		c.kind, c.source = Formula, src
	} else {
		c.kind, c.source = LiteralString, text
	}
	c.dirty = true
	c.evaluatedExternally = false
	return true
}

// SetValue assigns a value directly, bypassing formula parsing.
// The source becomes a formula of the value's text, so editing the cell
// shows where the value came from.
func (c *Cell) SetValue(v Value) {
	c.kind = Formula
	c.source = FormatValue(v)
	c.value = v
	c.dirty = true
	c.evaluatedExternally = true
}

// ReferenceFrom records that other read this cell while being evaluated.
func (c *Cell) ReferenceFrom(other *Cell) {
	if other == nil || other.sheet != c.sheet {
		return
	}
	if c.dependents == nil {
		c.dependents = make(map[Position]struct{})
	}
	c.dependents[other.pos] = struct{}{}
	if other.precedents == nil {
		other.precedents = make(map[Position]struct{})
	}
	other.precedents[c.pos] = struct{}{}
}

// Dependents returns the positions of the cells that read this cell,
// in ComparePositions order.
func (c *Cell) Dependents() []Position {
	return slices.SortedFunc(maps.Keys(c.dependents), ComparePositions)
}

// Precedents returns the positions this cell read during its last evaluation.
func (c *Cell) Precedents() []Position {
	return slices.SortedFunc(maps.Keys(c.precedents), ComparePositions)
}

// CurrentValue returns the cached value, evaluating the cell first if it is dirty.
func (c *Cell) CurrentValue() Value {
	if !c.dirty {
		return c.value
	}
	return c.sheet.evaluateRoot(c)
}

// dropPrecedents removes the edges recorded by the previous evaluation.
func (c *Cell) dropPrecedents() {
	for p := range c.precedents {
		if pc := c.sheet.cells[p]; pc != nil {
			delete(pc.dependents, c.pos)
		}
	}
	clear(c.precedents)
	if len(c.outside) != 0 {
		clear(c.outside)
		delete(c.sheet.outsideReaders, c.pos)
	}
}

// readOutside records that c read p while p was outside the sheet.
func (c *Cell) readOutside(p Position) {
	if c.outside == nil {
		c.outside = make(map[Position]struct{})
	}
	c.outside[p] = struct{}{}
	c.sheet.outsideReaders[c.pos] = struct{}{}
}
