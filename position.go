// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package calcsheet

import (
	"cmp"
	"strconv"
	"strings"
)

// Position identifies a cell: a column label (A, B, …, Z, AA, …)
// and a zero-based row index.
//
// Position is comparable, so it can be used as a map key.
type Position struct {
	Column string
	Row    int
}

// ParsePosition parses a display name such as "B12" into {B, 11}.
//
// The name must consist of a run of letters followed by a run of digits,
// with a 1-based row number. Letters are upper-cased.
func ParsePosition(s string) (Position, bool) {
	i := 0
	for i < len(s) && isLetter(s[i]) {
		i++
	}
	if i == 0 || i == len(s) {
		return Position{}, false
	}
	digits := s[i:]
	for j := 0; j < len(digits); j++ {
		if digits[j] < '0' || digits[j] > '9' {
			return Position{}, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return Position{}, false
	}
	return Position{Column: strings.ToUpper(s[:i]), Row: n - 1}, true
}

// MustParsePosition is like ParsePosition but panics on malformed input.
func MustParsePosition(s string) Position {
	p, ok := ParsePosition(s)
	if !ok {
		panic("calcsheet: invalid position " + strconv.Quote(s))
	}
	return p
}

// String returns the display name of the position ("B12" for {B, 11}).
func (p Position) String() string {
	return p.Column + strconv.Itoa(p.Row+1)
}

func isLetter(b byte) bool {
	return ('A' <= b && b <= 'Z') || ('a' <= b && b <= 'z')
}

// ColumnLabel returns the label of the zero-based column index:
// 0 is "A", 25 is "Z", 26 is "AA".
func ColumnLabel(index int) string {
	if index < 0 {
		return ""
	}
	var buf [16]byte
	i := len(buf)
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		i--
		buf[i] = byte('A' + (n-1)%26)
	}
	return string(buf[i:])
}

// ColumnIndex is the inverse of ColumnLabel. It returns -1 for labels
// that contain anything but letters.
func ColumnIndex(label string) int {
	if label == "" {
		return -1
	}
	n := 0
	for i := 0; i < len(label); i++ {
		b := label[i]
		if !isLetter(b) {
			return -1
		}
		if b >= 'a' {
			b -= 'a' - 'A'
		}
		n = n*26 + int(b-'A') + 1
	}
	return n - 1
}

// ComparePositions orders positions column by column, then by row.
func ComparePositions(a, b Position) int {
	if c := cmp.Compare(len(a.Column), len(b.Column)); c != 0 {
		return c
	}
	if c := strings.Compare(a.Column, b.Column); c != 0 {
		return c
	}
	return cmp.Compare(a.Row, b.Row)
}
