// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package calcsheet

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Document is the structured form of a sheet.
// Only entered text is kept: values are always recomputed.
type Document struct {
	ID      uuid.UUID         `json:"id"`
	Name    string            `json:"name"`
	Columns []string          `json:"columns"`
	Rows    int               `json:"rows"`
	Cells   map[string]string `json:"cells"`
}

// ToDocument returns the document of the sheet. Empty cells are omitted.
func (s *Sheet) ToDocument() Document {
	doc := Document{
		ID:      s.id,
		Name:    s.name,
		Columns: s.Columns(),
		Rows:    s.rows,
		Cells:   make(map[string]string, len(s.cells)),
	}
	for p, c := range s.cells {
		if data := c.Data(); data != "" {
			doc.Cells[p.String()] = data
		}
	}
	return doc
}

// FromDocument builds a sheet from doc and computes all of its cells.
func FromDocument(doc Document, ev Evaluator, options ...Option) (*Sheet, error) {
	s := New(ev, append([]Option{WithExtent(0, 0)}, options...)...)
	if doc.ID != uuid.Nil {
		s.id = doc.ID
	}
	if doc.Name != "" {
		s.name = doc.Name
	}
	if doc.Rows < 0 {
		return nil, fmt.Errorf("rows=%d: %w", doc.Rows, ErrOutOfRange)
	}
	s.rows = doc.Rows
	s.columns, s.columnIdx = s.columns[:0], make(map[string]int, len(doc.Columns))
	for i, label := range doc.Columns {
		idx := ColumnIndex(label)
		if idx < 0 {
			return nil, fmt.Errorf("column %q: %w", label, ErrInvalidPosition)
		}
		label = ColumnLabel(idx)
		if _, dup := s.columnIdx[label]; dup {
			return nil, fmt.Errorf("duplicate column %q", label)
		}
		s.columnIdx[label] = i
		s.columns = append(s.columns, label)
	}
	for name, data := range doc.Cells {
		p, ok := ParsePosition(name)
		if !ok {
			return nil, fmt.Errorf("cell %q: %w", name, ErrInvalidPosition)
		}
		if !s.InRange(p) {
			return nil, fmt.Errorf("cell %q: %w", name, ErrOutOfRange)
		}
		s.Ensure(p).SetData(data)
	}
	s.UpdateAll()
	return s, nil
}

// WriteJSON writes the document of the sheet as indented JSON.
func (s *Sheet) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s.ToDocument())
}

// ReadJSON reads a JSON document and builds a sheet from it.
func ReadJSON(r io.Reader, ev Evaluator, options ...Option) (*Sheet, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return FromDocument(doc, ev, options...)
}
