// Copyright 2021, 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

// Package pdf renders calcsheet exports as PDF tables.
package pdf

import (
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontfamily"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/orientation"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/UNO-SOFT/calcsheet"
)

var _ = (calcsheet.Writer)((*PDFWriter)(nil))

// Options of the rendering.
type Options struct {
	Landscape bool
	// FontSize of the table content; the header is 1.375 times bigger.
	FontSize float64
	// AlternateColor is the background of every second row; nil for none.
	AlternateColor *Color
}

// DefaultAlternateColor is a light grey.
var DefaultAlternateColor = Color{Red: 230, Green: 230, Blue: 230}

type PDFWriter struct {
	w      io.Writer
	opts   Options
	sheets []*PDFSheet
	mu     sync.Mutex
}

type PDFSheet struct {
	Name    string
	headers []string
	bold    []bool
	rows    [][]string
	mu      sync.Mutex
}

// NewWriter returns a new calcsheet.Writer producing one PDF document
// of all the sheets, in the order they were created.
//
// This writer allows concurrent writes to separate sheets.
func NewWriter(w io.Writer, opts Options) *PDFWriter {
	if opts.FontSize <= 0 {
		opts.FontSize = 8
	}
	return &PDFWriter{w: w, opts: opts}
}

func (pw *PDFWriter) NewSheet(name string, columns []calcsheet.Column) (calcsheet.RowWriter, error) {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	if pw.w == nil {
		return nil, fmt.Errorf("%s: writer is closed", name)
	}
	sh := &PDFSheet{Name: name, bold: make([]bool, len(columns))}
	var hasHeader bool
	for i, c := range columns {
		sh.bold[i] = c.Column.FontBold
		hasHeader = hasHeader || c.Name != ""
	}
	if hasHeader {
		sh.headers = make([]string, len(columns))
		for i, c := range columns {
			sh.headers[i] = c.Name
		}
	}
	pw.sheets = append(pw.sheets, sh)
	return sh, nil
}

func (sh *PDFSheet) Close() error { return nil }

// AppendRow stores the display text of values as the next row.
func (sh *PDFSheet) AppendRow(values ...any) error {
	row := make([]string, len(values))
	for i, v := range values {
		row[i] = calcsheet.FormatValue(v)
	}
	sh.mu.Lock()
	sh.rows = append(sh.rows, row)
	sh.mu.Unlock()
	return nil
}

// Close renders the document and writes it.
func (pw *PDFWriter) Close() error {
	if pw == nil {
		return nil
	}
	pw.mu.Lock()
	defer pw.mu.Unlock()
	w := pw.w
	pw.w = nil
	if w == nil {
		return nil
	}

	grids := make([][]int, len(pw.sheets))
	maxGrid := 1
	for i, sh := range pw.sheets {
		sh.mu.Lock()
		grids[i] = sh.gridSizes()
		sh.mu.Unlock()
		var total int
		for _, g := range grids[i] {
			total += g
		}
		maxGrid = max(maxGrid, total)
	}

	o := orientation.Vertical
	if pw.opts.Landscape {
		o = orientation.Horizontal
	}
	cfg := config.NewBuilder().
		WithOrientation(o).
		WithMaxGridSize(maxGrid).
		Build()
	m := maroto.New(cfg)

	fontSize := pw.opts.FontSize
	header := props.Text{Family: fontfamily.Arial, Style: fontstyle.Bold, Size: fontSize * 1.375, Align: align.Center}
	content := props.Text{Family: fontfamily.Courier, Style: fontstyle.Normal, Size: fontSize, Align: align.Center}
	height := fontSize * 0.6

	var alternate *props.Cell
	if c := pw.opts.AlternateColor; c != nil {
		alternate = &props.Cell{BackgroundColor: &props.Color{Red: c.Red, Green: c.Green, Blue: c.Blue}}
	}

	for i, sh := range pw.sheets {
		sh.mu.Lock()
		if len(pw.sheets) > 1 {
			m.AddRows(row.New(height * 1.5).Add(text.NewCol(maxGrid, sh.Name, header)))
		}
		if sh.headers != nil {
			m.AddRows(row.New(height * 1.375).Add(columns(sh.headers, grids[i], nil, header)...))
		}
		for j, values := range sh.rows {
			r := row.New(height).Add(columns(values, grids[i], sh.bold, content)...)
			if alternate != nil && j%2 == 1 {
				r = r.WithStyle(alternate)
			}
			m.AddRows(r)
		}
		sh.mu.Unlock()
	}

	doc, err := m.Generate()
	if err != nil {
		return err
	}
	_, err = w.Write(doc.GetBytes())
	return err
}

func columns(values []string, grid []int, bold []bool, prop props.Text) []core.Col {
	cols := make([]core.Col, len(grid))
	for i, size := range grid {
		var s string
		if i < len(values) {
			s = values[i]
		}
		p := prop
		if i < len(bold) && bold[i] {
			p.Style = fontstyle.Bold
		}
		cols[i] = text.NewCol(size, s, p)
	}
	return cols
}

// gridSizes distributes the grid between the columns proportionally
// to their average text width.
func (sh *PDFSheet) gridSizes() []int {
	n := len(sh.headers)
	for _, row := range sh.rows {
		n = max(n, len(row))
	}
	if n == 0 {
		return nil
	}
	widths := make([]float64, n)
	var avg float64
	add := func(row []string) {
		for i, s := range row {
			widths[i] += float64(len(s))
			avg += float64(len(s))
		}
	}
	add(sh.headers)
	for _, row := range sh.rows {
		add(row)
	}
	avg /= float64(n)
	gridSize := make([]int, n)
	for i, w := range widths {
		if avg > 0 {
			gridSize[i] = int(math.Round(4 * w / avg))
		}
		if gridSize[i] == 0 {
			gridSize[i] = 1
		}
	}
	return gridSize
}

// Color is an RGB color, parsed from and printed as hex ("e6e6e6").
type Color struct {
	Red, Green, Blue int
}

func (c *Color) String() string {
	return fmt.Sprintf("%02x%02x%02x", c.Red, c.Green, c.Blue)
}

// Set parses a hex RGB color; it makes *Color a flag.Value.
func (c *Color) Set(s string) error {
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(b) != 3 {
		return fmt.Errorf("%q: want 3 bytes of hex RGB", s)
	}
	c.Red, c.Green, c.Blue = int(b[0]), int(b[1]), int(b[2])
	return nil
}
