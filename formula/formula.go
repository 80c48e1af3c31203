// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

// Package formula evaluates cell formulas written in the expr language
// (github.com/expr-lang/expr).
//
// Identifiers that name a cell (A1, b12) read that cell, so do
// cell("A1") and cells("A1:B3"). Empty cells read as 0 from cell
// references and are left out of cells(). Error values read from other
// cells abort the formula with the same error.
package formula

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/vm"

	"github.com/UNO-SOFT/calcsheet"
)

var _ = calcsheet.Evaluator((*Evaluator)(nil))

// Evaluator is a calcsheet.Evaluator backed by expr.
//
// Compiled programs are cached by source. An Evaluator serves one sheet,
// and is not safe for concurrent use.
type Evaluator struct {
	env      map[string]any
	options  []expr.Option
	programs map[string]compiled

	frame *frame
}

type compiled struct {
	program *vm.Program
	err     error
}

// frame is the state of one (possibly nested) Evaluate call.
type frame struct {
	ctx calcsheet.Context
	err *calcsheet.Error
}

// New returns a new Evaluator.
func New() *Evaluator {
	e := &Evaluator{
		env:      map[string]any{},
		programs: make(map[string]compiled),
	}
	e.options = append([]expr.Option{expr.Env(e.env)}, e.functions()...)
	return e
}

// Evaluate implements calcsheet.Evaluator.
func (e *Evaluator) Evaluate(source string, ctx calcsheet.Context) (calcsheet.Value, error) {
	program, err := e.compile(source)
	if err != nil {
		return nil, err
	}

	f := &frame{ctx: ctx}
	saved := e.frame
	e.frame = f
	defer func() { e.frame = saved }()

	out, err := expr.Run(program, e.env)
	if f.err != nil {
		return nil, f.err
	}
	if err != nil {
		return nil, runtimeError(err)
	}
	return normalize(out)
}

// Check compiles source and returns the error value it would produce, if any.
func (e *Evaluator) Check(source string) error {
	_, err := e.compile(source)
	return err
}

func (e *Evaluator) compile(source string) (*vm.Program, error) {
	if c, ok := e.programs[source]; ok {
		return c.program, c.err
	}
	refs := &cellRefPatcher{callees: make(map[*ast.IdentifierNode]struct{})}
	options := append(e.options[:len(e.options):len(e.options)],
		expr.Patch(calleeCollector{refs}), expr.Patch(refs))
	program, err := expr.Compile(source, options...)
	if err != nil {
		err = compileError(err)
	}
	e.programs[source] = compiled{program: program, err: err}
	return program, err
}

// calleeCollector records the identifiers used as function names,
// so that log10(x) stays a call.
type calleeCollector struct{ p *cellRefPatcher }

func (c calleeCollector) Visit(node *ast.Node) {
	if call, ok := (*node).(*ast.CallNode); ok {
		if id, ok := call.Callee.(*ast.IdentifierNode); ok {
			c.p.callees[id] = struct{}{}
		}
	}
}

// cellRefPatcher rewrites cell names into cell("NAME") calls.
type cellRefPatcher struct {
	callees map[*ast.IdentifierNode]struct{}
}

func (p *cellRefPatcher) Visit(node *ast.Node) {
	id, ok := (*node).(*ast.IdentifierNode)
	if !ok {
		return
	}
	if _, isCallee := p.callees[id]; isCallee {
		return
	}
	pos, ok := calcsheet.ParsePosition(id.Value)
	if !ok {
		return
	}
	ast.Patch(node, &ast.CallNode{
		Callee:    &ast.IdentifierNode{Value: "cell"},
		Arguments: []ast.Node{&ast.StringNode{Value: pos.String()}},
	})
}

func compileError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "unknown name") || strings.Contains(msg, "undefined"):
		return calcsheet.NewError(calcsheet.ErrorCodeName, firstLine(msg))
	case strings.Contains(msg, "divide by zero"):
		// constant folding
		return calcsheet.NewError(calcsheet.ErrorCodeDiv0, firstLine(msg))
	}
	return calcsheet.NewError(calcsheet.ErrorCodeValue, firstLine(msg))
}

func runtimeError(err error) error {
	var ce *calcsheet.Error
	if errors.As(err, &ce) {
		return ce
	}
	msg := err.Error()
	if strings.Contains(msg, "divide by zero") {
		return calcsheet.NewError(calcsheet.ErrorCodeDiv0, firstLine(msg))
	}
	return calcsheet.NewError(calcsheet.ErrorCodeValue, firstLine(msg))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// normalize converts expr results to cell values: all numbers become float64.
func normalize(v any) (calcsheet.Value, error) {
	switch x := v.(type) {
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case float32:
		return normalize(float64(x))
	case float64:
		switch {
		case math.IsInf(x, 0):
			return nil, calcsheet.NewError(calcsheet.ErrorCodeDiv0, "")
		case math.IsNaN(x):
			return nil, calcsheet.NewError(calcsheet.ErrorCodeNum, "")
		}
		return x, nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			var err error
			if out[i], err = normalize(e); err != nil {
				return nil, err
			}
		}
		return out, nil
	case error:
		if ce, ok := calcsheet.AsError(x); ok {
			return nil, ce
		}
		return nil, calcsheet.NewError(calcsheet.ErrorCodeValue, x.Error())
	}
	return v, nil
}

// fail records a cell error value, to be returned by Evaluate even if expr
// wraps the function error.
func (e *Evaluator) fail(err error) error {
	if ce, ok := calcsheet.AsError(err); ok && e.frame != nil && e.frame.err == nil {
		e.frame.err = ce
	}
	return err
}

func (e *Evaluator) context() (calcsheet.Context, error) {
	if e.frame == nil || e.frame.ctx == nil {
		return nil, fmt.Errorf("formula: no evaluation context")
	}
	return e.frame.ctx, nil
}
