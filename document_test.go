// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package calcsheet

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentRoundTrip(t *testing.T) {
	s := newTestSheet(t, newSumEvaluator(), map[string]string{
		"A1": "1",
		"B1": "=A1+1",
		"C3": "text",
		"D2": "",
	}, WithName("budget"), WithExtent(3, 4))
	doc := s.ToDocument()
	assert.Equal(t, s.ID(), doc.ID)
	assert.Equal(t, "budget", doc.Name)
	assert.Equal(t, []string{"A", "B", "C", "D"}, doc.Columns)
	assert.Equal(t, 3, doc.Rows)
	assert.Equal(t, map[string]string{"A1": "1", "B1": "=A1+1", "C3": "text"}, doc.Cells)

	var buf bytes.Buffer
	require.NoError(t, s.WriteJSON(&buf))
	var raw map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.Contains(t, raw, "cells")
	assert.NotContains(t, buf.String(), `"2"`, "values are not stored")

	got, err := ReadJSON(&buf, newSumEvaluator())
	require.NoError(t, err)
	assert.Equal(t, s.ID(), got.ID())
	assert.Equal(t, "budget", got.Name())
	assert.Equal(t, 3, got.RowCount())
	assert.Equal(t, s.Columns(), got.Columns())
	assert.Equal(t, doc, got.ToDocument())
	assert.Equal(t, 2.0, got.At(MustParsePosition("B1")).value, "computed on load")
	assert.False(t, got.AtName("B1").Dirty())
}

func TestFromDocumentNormalizesColumns(t *testing.T) {
	s, err := FromDocument(Document{
		Columns: []string{"a", "c"},
		Rows:    1,
		Cells:   map[string]string{"c1": "=A1+2", "A1": "1"},
	}, newSumEvaluator())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, s.Columns())
	assert.Equal(t, "Sheet1", s.Name())
	assert.NotEqual(t, uuid.Nil, s.ID())
	assert.Equal(t, 3.0, valueAt(s, "C1"))
	assert.False(t, s.InRange(MustParsePosition("B1")))
	assert.Equal(t, "D", s.AddColumn())
}

func TestFromDocumentErrors(t *testing.T) {
	for name, tc := range map[string]struct {
		Doc  Document
		Want error
	}{
		"rows":      {Document{Rows: -1}, ErrOutOfRange},
		"column":    {Document{Columns: []string{"A1"}}, ErrInvalidPosition},
		"cell":      {Document{Columns: []string{"A"}, Rows: 1, Cells: map[string]string{"1A": "x"}}, ErrInvalidPosition},
		"range":     {Document{Columns: []string{"A"}, Rows: 1, Cells: map[string]string{"B1": "x"}}, ErrOutOfRange},
		"row range": {Document{Columns: []string{"A"}, Rows: 1, Cells: map[string]string{"A2": "x"}}, ErrOutOfRange},
	} {
		_, err := FromDocument(tc.Doc, nil)
		assert.ErrorIs(t, err, tc.Want, name)
	}
	_, err := FromDocument(Document{Columns: []string{"A", "a"}}, nil)
	assert.ErrorContains(t, err, "duplicate")

	_, err = ReadJSON(strings.NewReader("{"), nil)
	assert.Error(t, err)
}

func TestWriteReadFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "sheet.json")
	s := newTestSheet(t, newSumEvaluator(), map[string]string{
		"A1": "2",
		"A2": "=A1+A1",
	})
	require.NoError(t, s.WriteFile(fn))
	// overwrite in place
	s.SetCellData(MustParsePosition("A1"), "3")
	require.NoError(t, s.WriteFile(fn))

	got, err := ReadFile(fn, newSumEvaluator())
	require.NoError(t, err)
	assert.Equal(t, 6.0, valueAt(got, "A2"))
	assert.Equal(t, s.ToDocument(), got.ToDocument())

	entries, err := os.ReadDir(filepath.Dir(fn))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".sheet.json."), "temporary file %q left", e.Name())
	}

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
