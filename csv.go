// Copyright 2020, 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package calcsheet

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// EncName is the default CSV charset, taken from $LANG.
var EncName = "utf-8"

func init() {
	EncName = os.Getenv("LANG")
	if i := strings.IndexByte(EncName, '.'); i >= 0 {
		EncName = strings.ToLower(EncName[i+1:])
	} else {
		EncName = ""
	}
	if EncName == "" {
		EncName = "utf-8"
	}
}

// GetEncoding returns the encoding named encName, or nil for UTF-8.
func GetEncoding(encName string) (encoding.Encoding, error) {
	encName = strings.ToLower(encName)
	if encName == "" || encName == "utf-8" || encName == "utf8" {
		return nil, nil
	}
	enc, err := htmlindex.Get(encName)
	if err != nil {
		err = fmt.Errorf("%q: %w", encName, err)
	}
	return enc, err
}

// CsvReadCloser is a csv.Reader with the Closer of the underlying file.
type CsvReadCloser struct {
	*csv.Reader
	io.Closer
}

// OpenCsv opens fn ("" or "-" is stdin) as CSV in the encName charset.
// The field separator is the first of , ; TAB or | in the first KiB.
func OpenCsv(fn, encName string) (CsvReadCloser, error) {
	var enc encoding.Encoding
	if encName != "" {
		var err error
		if enc, err = GetEncoding(encName); err != nil {
			return CsvReadCloser{}, err
		}
	}
	fh := os.Stdin
	if !(fn == "" || fn == "-") {
		var err error
		if fh, err = os.Open(fn); err != nil {
			return CsvReadCloser{}, err
		}
	}
	cr, err := NewCsvReader(fh, enc)
	if err != nil {
		fh.Close()
		return CsvReadCloser{}, err
	}
	return CsvReadCloser{cr, fh}, nil
}

// NewCsvReader returns a csv.Reader decoding r from enc (nil means UTF-8),
// with the separator guessed.
func NewCsvReader(r io.Reader, enc encoding.Encoding) (*csv.Reader, error) {
	if enc != nil {
		r = enc.NewDecoder().Reader(r)
	}
	br := bufio.NewReaderSize(r, 1<<20)
	b, err := br.Peek(1024)
	if err != nil && len(b) == 0 {
		return nil, err
	}
	sep := rune(',')
	if i := strings.IndexAny(string(b), ",;\t|"); i >= 0 {
		sep = rune(b[i])
	}

	cr := csv.NewReader(br)
	cr.ReuseRecord = true
	cr.Comma = sep
	cr.FieldsPerRecord = -1
	return cr, nil
}

// LoadCSV sets the cells of the sheet from the records of cr, starting at
// A1, growing the sheet as needed, then recomputes everything.
// Fields starting with "=" are formulas.
func (s *Sheet) LoadCSV(cr *csv.Reader) error {
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("row %d: %w", row+1, err)
		}
		for s.rows <= row {
			s.AddRow()
		}
		for len(s.columns) < len(rec) {
			s.AddColumn()
		}
		for i, text := range rec {
			if text == "" && s.At(Position{Column: s.columns[i], Row: row}) == nil {
				continue
			}
			s.Ensure(Position{Column: s.columns[i], Row: row}).SetData(text)
		}
	}
	s.UpdateAll()
	return nil
}
