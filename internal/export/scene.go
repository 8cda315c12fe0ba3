/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"math"
	"strings"
	"unicode"

	"knitchart/internal/domain"
	"knitchart/internal/legend"
	"knitchart/internal/storage"
)

// Scene is a chart laid out in scene units (pixels at 1x), independent of
// the output format. The origin is the top-left corner of the output.
type Scene struct {
	Width, Height float64
	Grid          domain.Rect
	Cols, Rows    int
	Layout        domain.Layout
	Cells         []CellShape
	Markers       []MarkerShape
	Legend        []LegendShape
}

// CellShape is one grid cell.
type CellShape struct {
	Rect   domain.Rect
	Fill   domain.Color
	Abbrev string
	Image  string // icon file of the symbol, if any
}

// MarkerShape is a rectangle outline over the grid.
type MarkerShape struct {
	Rect  domain.Rect
	Color domain.Color
}

// LegendShape is a legend swatch followed by its label.
type LegendShape struct {
	Icon   domain.Rect
	Fill   domain.Color
	Abbrev string
	Image  string
	Text   domain.Point
	Label  string
}

// margin around everything drawn
const margin = 10.0

// BuildScene lays out doc with l. Legend items may sit anywhere, including
// left of or above the grid; the scene is shifted so that all content is
// visible.
func BuildScene(doc storage.Document, l domain.Layout) Scene {
	l = l.Normalized()
	s := Scene{Cols: doc.Columns, Rows: doc.Rows, Layout: l}
	gridRect := l.GridRect(doc.Columns, doc.Rows)

	widths := make(map[legend.Key]int)
	images := make(map[legend.Key]string)
	for _, c := range doc.Cells {
		s.Cells = append(s.Cells, CellShape{
			Rect:   l.PixelRect(domain.CellRect{Column: c.Column, Row: c.Row, Width: c.Width, Height: 1}),
			Fill:   c.Color,
			Abbrev: Abbrev(c.Symbol.Name),
			Image:  c.Symbol.Path,
		})
		if !c.Symbol.IsEmpty() {
			k := legend.Key{Category: c.Symbol.Category, Name: c.Symbol.Name, Color: c.Color.Name()}
			widths[k] = c.Width
			images[k] = c.Symbol.Path
		}
	}
	for _, m := range doc.Markers {
		s.Markers = append(s.Markers, MarkerShape{Rect: l.PixelRect(m.Rect), Color: m.Color})
	}
	for _, p := range doc.Legend {
		w, ok := widths[p.Key]
		if !ok {
			continue
		}
		fill, err := domain.ParseColor(p.Key.Color)
		if err != nil {
			fill = domain.White
		}
		s.Legend = append(s.Legend, LegendShape{
			Icon:   domain.Rect{X: p.Icon.X, Y: p.Icon.Y, Width: float64(w) * l.CellWidth, Height: l.CellHeight},
			Fill:   fill,
			Abbrev: Abbrev(p.Key.Name),
			Image:  images[p.Key],
			Text:   p.Label,
			Label:  p.Text,
		})
	}

	// Bounding box of everything, then translate it to (margin, margin).
	minX, minY := gridRect.X, gridRect.Y
	maxX, maxY := gridRect.Right(), gridRect.Bottom()
	for _, it := range s.Legend {
		minX = math.Min(minX, math.Min(it.Icon.X, it.Text.X))
		minY = math.Min(minY, math.Min(it.Icon.Y, it.Text.Y))
		maxX = math.Max(maxX, math.Max(it.Icon.Right(), it.Text.X+TextWidth(it.Label, l.FontSize)))
		maxY = math.Max(maxY, math.Max(it.Icon.Bottom(), it.Text.Y+l.CellHeight))
	}
	dx, dy := margin-minX, margin-minY
	move := func(r domain.Rect) domain.Rect {
		r.X += dx
		r.Y += dy
		return r
	}
	s.Grid = move(gridRect)
	for i := range s.Cells {
		s.Cells[i].Rect = move(s.Cells[i].Rect)
	}
	for i := range s.Markers {
		s.Markers[i].Rect = move(s.Markers[i].Rect)
	}
	for i := range s.Legend {
		s.Legend[i].Icon = move(s.Legend[i].Icon)
		s.Legend[i].Text.X += dx
		s.Legend[i].Text.Y += dy
	}
	s.Width = maxX - minX + 2*margin
	s.Height = maxY - minY + 2*margin
	return s
}

// TextWidth estimates the rendered width of s at the given font size.
func TextWidth(s string, size float64) float64 {
	return float64(len([]rune(s))) * size * 0.6
}

// Abbrev shortens a symbol name to the few characters drawn inside a cell:
// short names are kept, longer ones become their initials or first three
// letters.
func Abbrev(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if len([]rune(name)) <= 3 {
		return name
	}
	words := strings.FieldsFunc(name, func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_'
	})
	if len(words) > 1 {
		var b strings.Builder
		for _, w := range words {
			b.WriteRune([]rune(w)[0])
			if b.Len() >= 3 {
				break
			}
		}
		return b.String()
	}
	return string([]rune(name)[:3])
}
