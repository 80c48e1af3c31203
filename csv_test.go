// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package calcsheet

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func TestNewCsvReaderSeparator(t *testing.T) {
	for in, want := range map[string]rune{
		"a,b;c\n":   ',',
		"a;b,c\n":   ';',
		"a\tb\n":    '\t',
		"x|=A1+1\n": '|',
		"abc\n":     ',',
	} {
		cr, err := NewCsvReader(strings.NewReader(in), nil)
		require.NoError(t, err, in)
		assert.Equal(t, want, cr.Comma, in)
	}
	_, err := NewCsvReader(strings.NewReader(""), nil)
	assert.Error(t, err)
}

func TestGetEncoding(t *testing.T) {
	enc, err := GetEncoding("UTF-8")
	require.NoError(t, err)
	assert.Nil(t, enc)
	enc, err = GetEncoding("iso-8859-2")
	require.NoError(t, err)
	assert.NotNil(t, enc)
	_, err = GetEncoding("no-such-charset")
	assert.Error(t, err)
}

func TestLoadCSV(t *testing.T) {
	cr, err := NewCsvReader(strings.NewReader("1;2;=A1+B1\n3\n;;=C1+A2\n"), nil)
	require.NoError(t, err)
	s := New(newSumEvaluator(), WithExtent(0, 0))
	require.NoError(t, s.LoadCSV(cr))
	assert.Equal(t, 3, s.RowCount())
	assert.Equal(t, []string{"A", "B", "C"}, s.Columns())
	assert.Equal(t, 3.0, valueAt(s, "C1"))
	assert.Equal(t, 6.0, valueAt(s, "C3"))
	assert.Nil(t, s.AtName("B2"), "empty fields create no cells")
	assert.Equal(t, []Position{MustParsePosition("C3")}, s.AtName("A2").Dependents())

	// loading again onto the same sheet clears emptied cells
	cr, err = NewCsvReader(strings.NewReader("5;;=A1+B1\n"), nil)
	require.NoError(t, err)
	require.NoError(t, s.LoadCSV(cr))
	assert.Equal(t, 5.0, valueAt(s, "C1"))
	assert.Equal(t, 8.0, valueAt(s, "C3"))
}

func TestOpenCsvCharset(t *testing.T) {
	b, err := charmap.ISO8859_2.NewEncoder().Bytes([]byte("név,=B2\nárvíztűrő,2\n"))
	require.NoError(t, err)
	fn := filepath.Join(t.TempDir(), "latin2.csv")
	require.NoError(t, os.WriteFile(fn, b, 0644))

	cr, err := OpenCsv(fn, "iso-8859-2")
	require.NoError(t, err)
	defer cr.Close()
	s := New(newSumEvaluator(), WithExtent(0, 0))
	require.NoError(t, s.LoadCSV(cr.Reader))
	assert.Equal(t, "név", valueAt(s, "A1"))
	assert.Equal(t, "árvíztűrő", valueAt(s, "A2"))
	assert.Equal(t, 2.0, valueAt(s, "B1"))
}
