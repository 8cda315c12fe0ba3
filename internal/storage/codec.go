/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"knitchart/internal/domain"
	"knitchart/internal/grid"
	"knitchart/internal/legend"
	"knitchart/internal/symbol"
)

const (
	rootTag       = "knitchart"
	formatVersion = "1"
)

// ParseError is a malformed project document. Line and Column point at the
// offending element when the decoder could tell.
type ParseError struct {
	Path         string
	Line, Column int
	Err          error
}

func (e *ParseError) Error() string {
	loc := fmt.Sprintf("%d:%d", e.Line, e.Column)
	if e.Path != "" {
		loc = e.Path + ":" + loc
	}
	return loc + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

type xmlGrid struct {
	XMLName xml.Name `xml:"grid"`
	Columns int      `xml:"columns,attr"`
	Rows    int      `xml:"rows,attr"`
}

type xmlCell struct {
	XMLName  xml.Name `xml:"cell"`
	Column   int      `xml:"column"`
	Row      int      `xml:"row"`
	Width    int      `xml:"width"`
	Height   int      `xml:"height"`
	Color    int      `xml:"color"`
	Category string   `xml:"category"`
	Name     string   `xml:"name"`
}

type xmlLegendItem struct {
	XMLName xml.Name `xml:"legendItem"`
	ID      string   `xml:"id"`
	IconX   float64  `xml:"iconX"`
	IconY   float64  `xml:"iconY"`
	LabelX  float64  `xml:"labelX"`
	LabelY  float64  `xml:"labelY"`
	Text    string   `xml:"text"`
}

type xmlMarker struct {
	XMLName xml.Name `xml:"marker"`
	Column  int      `xml:"column"`
	Row     int      `xml:"row"`
	Width   int      `xml:"width"`
	Height  int      `xml:"height"`
	Color   int      `xml:"color"`
}

type xmlPalette struct {
	XMLName xml.Name `xml:"palette"`
	Colors  []string `xml:"color"`
}

// Encode writes doc as an XML project document.
func Encode(w io.Writer, doc Document) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	root := xml.StartElement{
		Name: xml.Name{Local: rootTag},
		Attr: []xml.Attr{{Name: xml.Name{Local: "version"}, Value: formatVersion}},
	}
	if err := enc.EncodeToken(root); err != nil {
		return err
	}
	items := []any{xmlGrid{Columns: doc.Columns, Rows: doc.Rows}}
	for _, c := range doc.Cells {
		items = append(items, xmlCell{
			Column:   c.Column,
			Row:      c.Row,
			Width:    c.Width,
			Height:   1,
			Color:    c.Color.RGB(),
			Category: c.Symbol.Category,
			Name:     c.Symbol.Name,
		})
	}
	for _, p := range doc.Legend {
		items = append(items, xmlLegendItem{
			ID:     p.Key.String(),
			IconX:  p.Icon.X,
			IconY:  p.Icon.Y,
			LabelX: p.Label.X,
			LabelY: p.Label.Y,
			Text:   p.Text,
		})
	}
	for _, m := range doc.Markers {
		items = append(items, xmlMarker{
			Column: m.Rect.Column,
			Row:    m.Rect.Row,
			Width:  m.Rect.Width,
			Height: m.Rect.Height,
			Color:  m.Color.RGB(),
		})
	}
	pal := xmlPalette{Colors: make([]string, 0, len(doc.Palette))}
	for _, c := range doc.Palette {
		pal.Colors = append(pal.Colors, c.Name())
	}
	items = append(items, pal)
	for _, it := range items {
		if err := enc.Encode(it); err != nil {
			return fmt.Errorf("encode chart: %w", err)
		}
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// Marshal is Encode into a byte slice.
func Marshal(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a project document and resolves every cell symbol against
// cat. Unknown elements are skipped. A symbol that cannot be resolved fails
// the whole decode.
func Decode(r io.Reader, cat *symbol.Catalog) (Document, error) {
	dec := xml.NewDecoder(r)
	fail := func(err error) (Document, error) {
		line, col := dec.InputPos()
		return Document{}, &ParseError{Line: line, Column: col, Err: err}
	}
	var (
		doc      Document
		rootSeen bool
		sawGrid  bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail(err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !rootSeen {
			if se.Name.Local != rootTag {
				return fail(fmt.Errorf("root element <%s>, want <%s>", se.Name.Local, rootTag))
			}
			rootSeen = true
			continue
		}
		switch se.Name.Local {
		case "grid":
			var g xmlGrid
			if err := dec.DecodeElement(&g, &se); err != nil {
				return fail(err)
			}
			if g.Columns < 0 || g.Rows < 0 {
				return fail(fmt.Errorf("%w: grid %dx%d", ErrInvalidDocument, g.Columns, g.Rows))
			}
			doc.Columns, doc.Rows, sawGrid = g.Columns, g.Rows, true
		case "cell":
			var xc xmlCell
			if err := dec.DecodeElement(&xc, &se); err != nil {
				return fail(err)
			}
			c, err := xc.resolve(cat)
			if err != nil {
				return fail(err)
			}
			doc.Cells = append(doc.Cells, c)
		case "legendItem":
			var xl xmlLegendItem
			if err := dec.DecodeElement(&xl, &se); err != nil {
				return fail(err)
			}
			k, err := legend.ParseKey(xl.ID)
			if err != nil {
				return fail(err)
			}
			doc.Legend = append(doc.Legend, legend.Placement{
				Key:   k,
				Icon:  domain.Point{X: xl.IconX, Y: xl.IconY},
				Label: domain.Point{X: xl.LabelX, Y: xl.LabelY},
				Text:  xl.Text,
			})
		case "marker":
			var xm xmlMarker
			if err := dec.DecodeElement(&xm, &se); err != nil {
				return fail(err)
			}
			doc.Markers = append(doc.Markers, grid.Marker{
				Rect:  domain.CellRect{Column: xm.Column, Row: xm.Row, Width: xm.Width, Height: xm.Height},
				Color: domain.ColorFromRGB(xm.Color),
			})
		case "palette":
			var xp xmlPalette
			if err := dec.DecodeElement(&xp, &se); err != nil {
				return fail(err)
			}
			if doc.Palette == nil {
				doc.Palette = []domain.Color{}
			}
			for _, name := range xp.Colors {
				c, err := domain.ParseColor(name)
				if err != nil {
					return fail(err)
				}
				doc.Palette = append(doc.Palette, c)
			}
		default:
			if err := dec.Skip(); err != nil {
				return fail(err)
			}
		}
	}
	if !rootSeen {
		return fail(errors.New("no root element"))
	}
	if !sawGrid {
		doc.Columns, doc.Rows = inferDims(doc.Cells)
	}
	return doc, nil
}

// Unmarshal is Decode from a byte slice.
func Unmarshal(data []byte, cat *symbol.Catalog) (Document, error) {
	return Decode(bytes.NewReader(data), cat)
}

func (xc xmlCell) resolve(cat *symbol.Catalog) (grid.Cell, error) {
	if xc.Height != 0 && xc.Height != 1 {
		return grid.Cell{}, fmt.Errorf("%w: cell (%d,%d) is %d rows high", ErrInvalidDocument, xc.Column, xc.Row, xc.Height)
	}
	if xc.Width < 1 {
		return grid.Cell{}, fmt.Errorf("%w: cell (%d,%d) has width %d", ErrInvalidDocument, xc.Column, xc.Row, xc.Width)
	}
	sym := symbol.Empty()
	if xc.Category != "" || xc.Name != "" {
		s, err := cat.Lookup(xc.Category, xc.Name)
		if err != nil {
			return grid.Cell{}, fmt.Errorf("cell (%d,%d): %w", xc.Column, xc.Row, err)
		}
		sym = s
	}
	return grid.Cell{
		Column: xc.Column,
		Row:    xc.Row,
		Width:  xc.Width,
		Color:  domain.ColorFromRGB(xc.Color),
		Symbol: sym,
	}, nil
}
