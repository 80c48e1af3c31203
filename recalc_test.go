// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package calcsheet

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sumEvaluator evaluates "A1+B2+3" style formulas, counting the
// evaluations per cell.
type sumEvaluator struct {
	calls map[string]int
}

func newSumEvaluator() *sumEvaluator { return &sumEvaluator{calls: make(map[string]int)} }

func (e *sumEvaluator) Evaluate(source string, ctx Context) (Value, error) {
	e.calls[ctx.Cell().Position().String()]++
	var sum float64
	for _, term := range strings.Split(source, "+") {
		term = strings.TrimSpace(term)
		if p, ok := ParsePosition(term); ok {
			v, err := ctx.ReadCell(p)
			if err != nil {
				return nil, err
			}
			switch x := v.(type) {
			case nil:
			case float64:
				sum += x
			default:
				return nil, Errorf(ErrorCodeValue, "%s: %q is not a number", p, x)
			}
			continue
		}
		f, err := strconv.ParseFloat(term, 64)
		if err != nil {
			return nil, Errorf(ErrorCodeName, "unknown name %q", term)
		}
		sum += f
	}
	return sum, nil
}

func (e *sumEvaluator) reset() { clear(e.calls) }

func newTestSheet(t *testing.T, ev Evaluator, data map[string]string, options ...Option) *Sheet {
	t.Helper()
	s := New(ev, options...)
	for name, text := range data {
		p, ok := ParsePosition(name)
		require.True(t, ok, name)
		s.Ensure(p).SetData(text)
	}
	s.UpdateAll()
	return s
}

func valueAt(s *Sheet, name string) Value { return s.Value(MustParsePosition(name)) }

func errorCode(t *testing.T, v Value) ErrorCode {
	t.Helper()
	e, ok := AsError(v)
	require.True(t, ok, "want error value, got %#v", v)
	return e.Code
}

func TestSetDataIdempotent(t *testing.T) {
	s := New(newSumEvaluator())
	c := s.Ensure(MustParsePosition("A1"))
	assert.True(t, c.SetData("x"))
	assert.False(t, c.SetData("x"))
	assert.True(t, c.SetData("=x"))
	assert.Equal(t, Formula, c.Kind())
	assert.Equal(t, "x", c.Source())
	assert.Equal(t, "=x", c.Data())
	assert.False(t, c.SetData("=x"))
	assert.True(t, c.Dirty())

	s.UpdateAll()
	require.False(t, c.Dirty())
	assert.False(t, c.SetData("=x"))
	assert.False(t, c.Dirty(), "no dirty flip on the same text")

	assert.True(t, c.SetData("=1+1"))
	assert.Equal(t, Formula, c.Kind())
	assert.Equal(t, "1+1", c.Source())
	assert.True(t, c.SetData("1+1"))
	assert.Equal(t, LiteralString, c.Kind())
	assert.Equal(t, "1+1", c.Source())
}

func TestLiteralsAndFormulas(t *testing.T) {
	ev := newSumEvaluator()
	s := newTestSheet(t, ev, map[string]string{
		"A1": "12",
		"A2": "abc",
		"A3": "",
		"A4": "=1+2",
		"A5": "= 7",
		"A6": "1e3",
	})
	assert.Equal(t, 12.0, valueAt(s, "A1"))
	assert.Equal(t, "abc", valueAt(s, "A2"))
	assert.Nil(t, valueAt(s, "A3"))
	assert.Equal(t, 3.0, valueAt(s, "A4"))
	assert.Equal(t, 7.0, valueAt(s, "A5"))
	assert.Equal(t, 1000.0, valueAt(s, "A6"))
	assert.Equal(t, "3", s.CellAt(MustParsePosition("A4")))
	// literals never reach the evaluator
	assert.Equal(t, map[string]int{"A4": 1, "A5": 1}, ev.calls)
}

func TestMemoization(t *testing.T) {
	ev := newSumEvaluator()
	s := New(ev)
	s.Ensure(MustParsePosition("A1")).SetData("=B1+1")
	s.Ensure(MustParsePosition("B1")).SetData("=2")
	assert.Equal(t, 3.0, valueAt(s, "A1"))
	assert.Equal(t, 3.0, valueAt(s, "A1"))
	assert.Equal(t, 2.0, valueAt(s, "B1"))
	assert.Equal(t, map[string]int{"A1": 1, "B1": 1}, ev.calls)
	assert.False(t, s.At(MustParsePosition("A1")).Dirty())

	ev.reset()
	s.SetCellData(MustParsePosition("C1"), "=B1+B1+B1")
	s.SetCellData(MustParsePosition("B1"), "=3")
	assert.Equal(t, 9.0, valueAt(s, "C1"))
	assert.Equal(t, map[string]int{"C1": 2, "B1": 1, "A1": 1}, ev.calls)
}

func TestDependencyDiscovery(t *testing.T) {
	s := newTestSheet(t, newSumEvaluator(), map[string]string{
		"A1": "=B1+C2",
		"B1": "1",
		"C2": "=B1",
	})
	a1, b1, c2 := s.AtName("A1"), s.AtName("B1"), s.AtName("C2")
	assert.Equal(t, []Position{MustParsePosition("A1"), MustParsePosition("C2")}, b1.Dependents())
	assert.Equal(t, []Position{MustParsePosition("A1")}, c2.Dependents())
	assert.Empty(t, a1.Dependents())
	assert.Equal(t, []Position{MustParsePosition("B1"), MustParsePosition("C2")}, a1.Precedents())
	assert.Equal(t, 2.0, a1.CurrentValue())
}

func TestPropagation(t *testing.T) {
	ev := newSumEvaluator()
	s := newTestSheet(t, ev, map[string]string{
		"A1": "1",
		"B1": "=A1+1",
		"C1": "=B1+1",
		"D1": "=5",
	})
	assert.Equal(t, 3.0, valueAt(s, "C1"))
	ev.reset()

	s.SetCellData(MustParsePosition("A1"), "10")
	assert.Equal(t, 11.0, valueAt(s, "B1"))
	assert.Equal(t, 12.0, valueAt(s, "C1"))
	assert.Equal(t, 5.0, valueAt(s, "D1"))
	assert.Equal(t, map[string]int{"B1": 1, "C1": 1}, ev.calls)

	ev.reset()
	s.SetCellData(MustParsePosition("A1"), "10")
	assert.Empty(t, ev.calls, "setting the same text again")
}

func TestDiamondEvaluatedOnce(t *testing.T) {
	ev := newSumEvaluator()
	s := newTestSheet(t, ev, map[string]string{
		"A1": "1",
		"B1": "=A1",
		"C1": "=A1+A1",
		"D1": "=B1+C1",
	})
	assert.Equal(t, 3.0, valueAt(s, "D1"))
	ev.reset()

	s.SetCellData(MustParsePosition("A1"), "2")
	assert.Equal(t, 6.0, valueAt(s, "D1"))
	assert.Equal(t, map[string]int{"B1": 1, "C1": 1, "D1": 1}, ev.calls)
	assert.Equal(t, 4, s.LastPass().Evaluations)
}

func TestUnrelatedCellsKeepTheirValue(t *testing.T) {
	ev := newSumEvaluator()
	s := newTestSheet(t, ev, map[string]string{
		"A1": "1",
		"B1": "=A1",
		"A2": "2",
		"B2": "=A2",
	})
	ev.reset()
	s.SetCellData(MustParsePosition("A2"), "20")
	assert.Equal(t, map[string]int{"B2": 1}, ev.calls)
	assert.Equal(t, 1.0, valueAt(s, "B1"))
	assert.Equal(t, 20.0, valueAt(s, "B2"))
}

func TestCycle(t *testing.T) {
	s := newTestSheet(t, newSumEvaluator(), map[string]string{
		"A1": "=B1",
		"B1": "=A1",
		"C1": "=C1",
		"D1": "=A1+1",
		"E1": "4",
	})
	for _, name := range []string{"A1", "B1", "C1", "D1"} {
		assert.Equal(t, ErrorCodeCycle, errorCode(t, valueAt(s, name)), name)
	}
	assert.Equal(t, 4.0, valueAt(s, "E1"))
	assert.Equal(t, "#CYCLE!", s.CellAt(MustParsePosition("A1")))

	// breaking the cycle recomputes both sides
	s.SetCellData(MustParsePosition("B1"), "3")
	assert.Equal(t, 3.0, valueAt(s, "A1"))
	assert.Equal(t, 4.0, valueAt(s, "D1"))
	assert.Zero(t, s.LastPass().Cycles)
}

func TestLongCycleTerminates(t *testing.T) {
	const n = 1000
	ev := newSumEvaluator()
	s := New(ev, WithExtent(n, 1))
	for i := 1; i <= n; i++ {
		next := i%n + 1
		s.Ensure(MustParsePosition(fmt.Sprintf("A%d", i))).SetData(fmt.Sprintf("=A%d", next))
	}
	s.UpdateAll()
	assert.Equal(t, 1, s.LastPass().Cycles)
	assert.Equal(t, n, s.LastPass().Evaluations)
	for i := 1; i <= n; i++ {
		require.Equal(t, ErrorCodeCycle, errorCode(t, valueAt(s, fmt.Sprintf("A%d", i))))
	}
	for name, calls := range ev.calls {
		require.Equal(t, 1, calls, name)
	}
}

func TestErrorPropagation(t *testing.T) {
	s := newTestSheet(t, newSumEvaluator(), map[string]string{
		"A1": "=nonsense",
		"B1": "=A1+1",
		"C1": "word",
		"D1": "=C1+1",
	})
	assert.Equal(t, ErrorCodeName, errorCode(t, valueAt(s, "A1")))
	assert.Equal(t, ErrorCodeName, errorCode(t, valueAt(s, "B1")))
	assert.Equal(t, ErrorCodeValue, errorCode(t, valueAt(s, "D1")))

	s.SetCellData(MustParsePosition("A1"), "=1")
	assert.Equal(t, 2.0, valueAt(s, "B1"))
}

func TestOutOfRange(t *testing.T) {
	s := newTestSheet(t, newSumEvaluator(), map[string]string{
		"A1": "=C1",
		"B1": "=A3",
		"A2": "=B1+1",
	}, WithExtent(2, 2))
	assert.Equal(t, ErrorCodeRef, errorCode(t, valueAt(s, "A1")))
	assert.Equal(t, ErrorCodeRef, errorCode(t, valueAt(s, "B1")))
	assert.Equal(t, ErrorCodeRef, errorCode(t, valueAt(s, "A2")))
	assert.Nil(t, s.AtName("C1"), "out of range reads create no cell")

	// growing brings A3 into range: its readers recompute on their own
	assert.Equal(t, 2, s.AddRow())
	assert.Equal(t, 2, s.LastPass().Evaluations)
	assert.Equal(t, 0.0, valueAt(s, "B1"))
	assert.Equal(t, 1.0, valueAt(s, "A2"))
	assert.Equal(t, []Position{MustParsePosition("B1")}, s.AtName("A3").Dependents())

	s.SetCellData(MustParsePosition("A3"), "5")
	assert.Equal(t, 5.0, valueAt(s, "B1"))
	assert.Equal(t, 6.0, valueAt(s, "A2"))
	assert.Equal(t, ErrorCodeRef, errorCode(t, valueAt(s, "A1")))

	assert.Equal(t, "C", s.AddColumn())
	assert.Equal(t, 0.0, valueAt(s, "A1"))
	s.SetCellData(MustParsePosition("C1"), "7")
	assert.Equal(t, 7.0, valueAt(s, "A1"))
	assert.Empty(t, s.outsideReaders)
}

func TestGrowingKeepsUnrelatedCells(t *testing.T) {
	ev := newSumEvaluator()
	s := newTestSheet(t, ev, map[string]string{
		"A1": "=A5",
		"B1": "=A1+1",
		"B2": "=B1",
	}, WithExtent(2, 2))
	ev.reset()
	s.AddRow()
	assert.Empty(t, ev.calls, "A3 is not read by anyone")
	s.AddColumn()
	assert.Empty(t, ev.calls)
	assert.Equal(t, ErrorCodeRef, errorCode(t, valueAt(s, "B2")))

	s.AddRow()
	s.AddRow()
	assert.Equal(t, map[string]int{"A1": 1, "B1": 1, "B2": 1}, ev.calls)
	assert.Equal(t, 1.0, valueAt(s, "B2"))
}

func TestSetValue(t *testing.T) {
	ev := newSumEvaluator()
	s := newTestSheet(t, ev, map[string]string{"B1": "=A1+1"})
	ev.reset()
	s.SetCellValue(MustParsePosition("A1"), 42.0)
	a1 := s.AtName("A1")
	assert.True(t, a1.EvaluatedExternally())
	assert.Equal(t, Formula, a1.Kind())
	assert.Equal(t, "42", a1.Source())
	assert.Equal(t, 42.0, a1.CurrentValue())
	assert.Equal(t, 43.0, valueAt(s, "B1"))
	assert.Equal(t, map[string]int{"B1": 1}, ev.calls, "an assigned value is not evaluated")

	a1.SetData("7")
	assert.False(t, a1.EvaluatedExternally())
	s.Update(a1)
	assert.Equal(t, 8.0, valueAt(s, "B1"))
}

func TestEditedFormulaDropsOldReferences(t *testing.T) {
	ev := newSumEvaluator()
	s := newTestSheet(t, ev, map[string]string{
		"A1": "=B1",
		"B1": "1",
		"C1": "2",
	})
	s.SetCellData(MustParsePosition("A1"), "=C1")
	assert.Equal(t, 2.0, valueAt(s, "A1"))
	assert.Empty(t, s.AtName("B1").Dependents())
	assert.Equal(t, []Position{MustParsePosition("A1")}, s.AtName("C1").Dependents())

	ev.reset()
	s.SetCellData(MustParsePosition("B1"), "5")
	assert.Empty(t, ev.calls)
}

func TestMissingDependentIsPruned(t *testing.T) {
	s := newTestSheet(t, newSumEvaluator(), map[string]string{"A1": "1", "B1": "=A1"})
	a1 := s.AtName("A1")
	delete(s.cells, MustParsePosition("B1"))
	s.SetCellData(a1.Position(), "2")
	assert.Empty(t, a1.Dependents())
}

func TestCurrentCell(t *testing.T) {
	var s *Sheet
	var seen []string
	s = New(EvaluatorFunc(func(source string, ctx Context) (Value, error) {
		assert.Same(t, ctx.Cell(), s.CurrentCell())
		assert.Same(t, s, ctx.Sheet())
		seen = append(seen, s.CurrentCell().Position().String())
		if source == "B1" {
			return ctx.ReadCell(MustParsePosition("B1"))
		}
		return 1.0, nil
	}))
	s.Ensure(MustParsePosition("A1")).SetData("=B1")
	s.Ensure(MustParsePosition("B1")).SetData("=1")
	assert.Nil(t, s.CurrentCell())
	assert.Equal(t, 1.0, valueAt(s, "A1"))
	assert.Equal(t, []string{"A1", "B1"}, seen)
	assert.Nil(t, s.CurrentCell())
}

func TestEvaluatorFailures(t *testing.T) {
	s := New(EvaluatorFunc(func(source string, ctx Context) (Value, error) {
		switch source {
		case "panic":
			panic("boom")
		case "plain":
			return nil, fmt.Errorf("plain error")
		}
		return NewError(ErrorCodeNA, ""), nil
	}))
	s.SetCellData(MustParsePosition("A1"), "=panic")
	s.SetCellData(MustParsePosition("A2"), "=plain")
	s.SetCellData(MustParsePosition("A3"), "=na")
	assert.Equal(t, ErrorCodeOther, errorCode(t, valueAt(s, "A1")))
	assert.Equal(t, ErrorCodeValue, errorCode(t, valueAt(s, "A2")))
	assert.Equal(t, ErrorCodeNA, errorCode(t, valueAt(s, "A3")))
	assert.Equal(t, "#N/A", s.CellAt(MustParsePosition("A3")))

	noEval := New(nil)
	noEval.SetCellData(MustParsePosition("A1"), "=1")
	assert.Equal(t, ErrorCodeName, errorCode(t, valueAt(noEval, "A1")))
}
