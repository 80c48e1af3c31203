// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

// Package ods writes calcsheet exports as OpenDocument spreadsheets.
package ods

import (
	"bufio"
	"database/sql/driver"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/valyala/quicktemplate"

	"github.com/UNO-SOFT/calcsheet"
)

var _ = (calcsheet.Writer)((*ODSWriter)(nil))

const mimeType = "application/vnd.oasis.opendocument.spreadsheet"

// MaxRowCount is the number of maximum rows of a sheet.
const MaxRowCount = 1_048_576

type ODSWriter struct {
	w      io.Writer
	sheets []*ODSSheet
	mu     sync.Mutex
}

type ODSSheet struct {
	Name    string
	columns []calcsheet.Column
	header  bool
	rows    [][]any
	mu      sync.Mutex
}

// NewWriter returns a new calcsheet.Writer.
//
// This writer allows concurrent writes to separate sheets.
//
// The sheets are kept in memory until Close.
func NewWriter(w io.Writer) *ODSWriter {
	return &ODSWriter{w: w}
}

func (ow *ODSWriter) NewSheet(name string, columns []calcsheet.Column) (calcsheet.RowWriter, error) {
	ow.mu.Lock()
	defer ow.mu.Unlock()
	if ow.w == nil {
		return nil, fmt.Errorf("%s: writer is closed", name)
	}
	sh := &ODSSheet{Name: name, columns: columns}
	for _, c := range columns {
		if c.Name != "" {
			sh.header = true
			break
		}
	}
	ow.sheets = append(ow.sheets, sh)
	return sh, nil
}

func (sh *ODSSheet) Close() error { return nil }

// AppendRow stores a copy of values as the next row.
func (sh *ODSSheet) AppendRow(values ...any) error {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if len(sh.rows) >= MaxRowCount {
		return calcsheet.ErrTooManyRows
	}
	sh.rows = append(sh.rows, append([]any(nil), values...))
	return nil
}

// Close writes the document.
func (ow *ODSWriter) Close() error {
	if ow == nil {
		return nil
	}
	ow.mu.Lock()
	defer ow.mu.Unlock()
	w := ow.w
	ow.w = nil
	if w == nil {
		return nil
	}

	zw := zip.NewWriter(w)
	// mimetype must be the first, uncompressed entry
	mw, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return err
	}
	if _, err = io.WriteString(mw, mimeType); err != nil {
		return err
	}
	for _, f := range []struct {
		name  string
		write func(io.Writer)
	}{
		{"META-INF/manifest.xml", writeManifest},
		{"content.xml", ow.writeContent},
	} {
		fw, err := zw.Create(f.name)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		bw := bufio.NewWriter(fw)
		f.write(bw)
		if err = bw.Flush(); err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
	}
	return zw.Close()
}

func writeManifest(w io.Writer) {
	qw := quicktemplate.AcquireWriter(w)
	defer quicktemplate.ReleaseWriter(qw)
	qw.N().S(`<?xml version="1.0" encoding="UTF-8"?>
<manifest:manifest xmlns:manifest="urn:oasis:names:tc:opendocument:xmlns:manifest:1.0" manifest:version="1.2">
 <manifest:file-entry manifest:full-path="/" manifest:media-type="`)
	qw.N().S(mimeType)
	qw.N().S(`"/>
 <manifest:file-entry manifest:full-path="content.xml" manifest:media-type="text/xml"/>
</manifest:manifest>
`)
}

func (ow *ODSWriter) writeContent(w io.Writer) {
	qw := quicktemplate.AcquireWriter(w)
	defer quicktemplate.ReleaseWriter(qw)
	qw.N().S(`<?xml version="1.0" encoding="UTF-8"?>
<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" xmlns:style="urn:oasis:names:tc:opendocument:xmlns:style:1.0" xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0" xmlns:table="urn:oasis:names:tc:opendocument:xmlns:table:1.0" xmlns:fo="urn:oasis:names:tc:opendocument:xmlns:xsl-fo-compatible:1.0" office:version="1.2">
<office:automatic-styles><style:style style:name="bold" style:family="table-cell"><style:text-properties fo:font-weight="bold"/></style:style></office:automatic-styles>
<office:body><office:spreadsheet>
`)
	for _, sh := range ow.sheets {
		sh.mu.Lock()
		sh.writeTable(qw)
		sh.mu.Unlock()
	}
	qw.N().S(`</office:spreadsheet></office:body></office:document-content>
`)
}

func (sh *ODSSheet) writeTable(qw *quicktemplate.Writer) {
	qw.N().S(`<table:table table:name="`)
	qw.E().S(sh.Name)
	qw.N().S(`">`)
	if n := len(sh.columns); n != 0 {
		qw.N().S(`<table:table-column table:number-columns-repeated="`)
		qw.N().D(n)
		qw.N().S(`"/>`)
	}
	qw.N().S("\n")
	if sh.header {
		qw.N().S(`<table:table-row>`)
		for _, c := range sh.columns {
			if c.Header.FontBold {
				writeCell(qw, c.Name, `bold`)
			} else {
				writeCell(qw, c.Name, ``)
			}
		}
		qw.N().S("</table:table-row>\n")
	}
	for _, row := range sh.rows {
		qw.N().S(`<table:table-row>`)
		for i, v := range row {
			var style string
			if i < len(sh.columns) && sh.columns[i].Column.FontBold {
				style = "bold"
			}
			writeCell(qw, v, style)
		}
		qw.N().S("</table:table-row>\n")
	}
	qw.N().S("</table:table>\n")
}

func writeCell(qw *quicktemplate.Writer, v any, style string) {
	if vr, ok := v.(driver.Valuer); ok {
		if vv, err := vr.Value(); err == nil {
			v = vv
		}
	}
	qw.N().S(`<table:table-cell`)
	if style != "" {
		qw.N().S(` table:style-name="`)
		qw.N().S(style)
		qw.N().S(`"`)
	}
	var text string
	switch x := v.(type) {
	case nil:
		qw.N().S(`/>`)
		return
	case float64:
		qw.N().S(` office:value-type="float" office:value="`)
		qw.N().F(x)
		qw.N().S(`"`)
		text = calcsheet.FormatValue(x)
	case int:
		qw.N().S(` office:value-type="float" office:value="`)
		qw.N().D(x)
		qw.N().S(`"`)
		text = calcsheet.FormatValue(x)
	case int64:
		qw.N().S(` office:value-type="float" office:value="`)
		qw.N().S(strconv.FormatInt(x, 10))
		qw.N().S(`"`)
		text = calcsheet.FormatValue(x)
	case bool:
		qw.N().S(` office:value-type="boolean" office:boolean-value="`)
		if x {
			qw.N().S(`true`)
		} else {
			qw.N().S(`false`)
		}
		qw.N().S(`"`)
		text = calcsheet.FormatValue(x)
	case time.Time:
		if x.IsZero() {
			qw.N().S(`/>`)
			return
		}
		qw.N().S(` office:value-type="date" office:date-value="`)
		qw.N().S(x.Format("2006-01-02T15:04:05"))
		qw.N().S(`"`)
		text = x.Format("2006-01-02")
	default:
		qw.N().S(` office:value-type="string"`)
		text = calcsheet.FormatValue(v)
	}
	qw.N().S(`><text:p>`)
	qw.E().S(text)
	qw.N().S("</text:p></table:table-cell>")
}
