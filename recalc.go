// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package calcsheet

import (
	"fmt"
	"maps"
	"slices"
)

// evalContext is the Context of one formula evaluation.
type evalContext struct {
	sheet *Sheet
	cell  *Cell
}

func (ctx evalContext) Cell() *Cell   { return ctx.cell }
func (ctx evalContext) Sheet() *Sheet { return ctx.sheet }

func (ctx evalContext) ReadCell(p Position) (Value, error) {
	if !ctx.sheet.InRange(p) {
		ctx.cell.readOutside(p)
		return nil, Errorf(ErrorCodeRef, "%s: %v", p, ErrOutOfRange)
	}
	v := ctx.sheet.evaluate(ctx.sheet.Ensure(p), ctx.cell)
	if e, ok := AsError(v); ok {
		return nil, e
	}
	return v, nil
}

// CurrentCell returns the cell being evaluated, or nil outside of evaluation.
func (s *Sheet) CurrentCell() *Cell {
	if len(s.stack) == 0 {
		return nil
	}
	return s.stack[len(s.stack)-1]
}

// LastPass returns the statistics of the most recent recomputation pass.
func (s *Sheet) LastPass() PassStats { return s.lastPass }

// Update marks c and everything depending on it, transitively, dirty,
// then recomputes them.
func (s *Sheet) Update(c *Cell) {
	if c == nil || c.sheet != s {
		return
	}
	top := s.beginPass()
	c.dirty = true
	marked := s.markDirty([]*Cell{c})
	for _, d := range marked {
		s.evaluate(d, nil)
	}
	if top {
		s.endPass()
	}
}

// UpdateAll recomputes every dirty cell, and every cell depending on one.
func (s *Sheet) UpdateAll() {
	top := s.beginPass()
	positions := s.Cells()
	roots := make([]*Cell, 0, len(positions))
	for _, p := range positions {
		if c := s.cells[p]; c.dirty {
			roots = append(roots, c)
		}
	}
	s.markDirty(roots)
	for _, p := range positions {
		if c := s.cells[p]; c.dirty {
			s.evaluate(c, nil)
		}
	}
	if top {
		s.endPass()
	}
}

// beginPass starts a new pass unless one is in progress.
func (s *Sheet) beginPass() bool {
	if len(s.stack) != 0 {
		return false
	}
	clear(s.visited)
	s.lastPass = PassStats{}
	return true
}

func (s *Sheet) endPass() {
	s.logger.Debug("recomputed", "sheet", s.name,
		"evaluations", s.lastPass.Evaluations, "cycles", s.lastPass.Cycles)
}

// markDirty marks roots and their transitive dependents dirty, and returns
// them in the order they were reached. Every cell is marked once,
// so cycles in the dependency graph end the walk.
func (s *Sheet) markDirty(roots []*Cell) []*Cell {
	seen := make(map[*Cell]struct{}, len(roots))
	var marked []*Cell
	todo := make([]*Cell, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		todo = append(todo, roots[i])
	}
	for len(todo) != 0 {
		c := todo[len(todo)-1]
		todo = todo[:len(todo)-1]
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		c.dirty = true
		marked = append(marked, c)
		deps := c.Dependents()
		for i := len(deps) - 1; i >= 0; i-- {
			d := s.cells[deps[i]]
			if d == nil {
				delete(c.dependents, deps[i])
				continue
			}
			todo = append(todo, d)
		}
	}
	return marked
}

// refreshGrown recomputes the cells whose last evaluation read a position
// the sheet now covers, and their dependents.
func (s *Sheet) refreshGrown() {
	var roots []*Cell
	for _, p := range slices.SortedFunc(maps.Keys(s.outsideReaders), ComparePositions) {
		c := s.cells[p]
		if c == nil {
			delete(s.outsideReaders, p)
			continue
		}
		for q := range c.outside {
			if s.InRange(q) {
				roots = append(roots, c)
				break
			}
		}
	}
	if len(roots) == 0 {
		return
	}
	top := s.beginPass()
	for _, c := range s.markDirty(roots) {
		s.evaluate(c, nil)
	}
	if top {
		s.endPass()
	}
}

// evaluateRoot evaluates c outside of any formula.
func (s *Sheet) evaluateRoot(c *Cell) Value {
	top := s.beginPass()
	v := s.evaluate(c, nil)
	if top {
		s.endPass()
	}
	return v
}

// evaluate returns the value of c, recomputing it if it is dirty.
// A non-nil caller is recorded as depending on c.
func (s *Sheet) evaluate(c, caller *Cell) Value {
	if caller != nil {
		c.ReferenceFrom(caller)
	}
	if !c.dirty {
		return c.value
	}
	if s.evaluating(c) {
		s.lastPass.Cycles++
		args := []any{"sheet", s.name, "cell", c.pos.String()}
		if caller != nil {
			args = append(args, "from", caller.pos.String())
		}
		s.logger.Warn("circular dependency", args...)
		return Errorf(ErrorCodeCycle, "circular dependency at %s", c.pos)
	}

	s.visited[c.pos] = struct{}{}
	s.stack = append(s.stack, c)
	defer func() { s.stack = s.stack[:len(s.stack)-1] }()

	s.lastPass.Evaluations++
	c.value = s.compute(c)
	c.dirty = false
	return c.value
}

// evaluating reports whether c is on the evaluation stack: visited in this
// pass and not finished yet.
func (s *Sheet) evaluating(c *Cell) bool {
	if _, ok := s.visited[c.pos]; !ok {
		return false
	}
	for _, e := range s.stack {
		if e == c {
			return true
		}
	}
	return false
}

func (s *Sheet) compute(c *Cell) (v Value) {
	c.dropPrecedents()
	switch {
	case c.kind == LiteralString:
		return ParseLiteral(c.source)
	case c.evaluatedExternally:
		return c.value
	case s.evaluator == nil:
		return NewError(ErrorCodeName, "no formula evaluator")
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("formula panicked", "cell", c.pos.String(), "panic", r)
			v = Errorf(ErrorCodeOther, "%s: %v", c.pos, r)
		}
	}()
	v, err := s.evaluator.Evaluate(c.source, evalContext{sheet: s, cell: c})
	if err != nil {
		if e, ok := AsError(err); ok {
			return e
		}
		return NewError(ErrorCodeValue, fmt.Sprintf("%s: %v", c.pos, err))
	}
	if e, ok := AsError(v); ok {
		return e
	}
	return v
}
