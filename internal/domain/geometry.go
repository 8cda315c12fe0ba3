/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// Geometry primitives. Cell coordinates are integers counted in unit cells,
// scene coordinates are float64 pixels as laid out by Layout.

// Rect is an axis-aligned rectangle in scene coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Bottom returns the largest y covered by the rectangle.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Right returns the largest x covered by the rectangle.
func (r Rect) Right() float64 { return r.X + r.Width }

// Point is a position in scene coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CellRect is a block of unit cells: Column/Row of the top-left cell and the
// extent in cells.
type CellRect struct {
	Column int `json:"column"`
	Row    int `json:"row"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether the block covers no cells.
func (r CellRect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Contains reports whether the unit cell (col, row) lies in the block.
func (r CellRect) Contains(col, row int) bool {
	return col >= r.Column && col < r.Column+r.Width && row >= r.Row && row < r.Row+r.Height
}

// Layout carries the geometric settings of a chart scene. It replaces the
// ambient settings lookups of a desktop toolkit: whoever needs pixel
// positions gets a Layout passed in.
type Layout struct {
	CellWidth  float64 `json:"cellWidth"`
	CellHeight float64 `json:"cellHeight"`
	// LegendSpacing is the vertical gap between the grid and the first
	// legend item and between consecutive legend items.
	LegendSpacing float64 `json:"legendSpacing"`
	// LabelGap is the horizontal gap between a legend icon and its label.
	LabelGap float64 `json:"labelGap"`
	// FontSize is the nominal point size of legend labels.
	FontSize float64 `json:"fontSize"`
}

// DefaultLayout mirrors the defaults of the desktop application.
func DefaultLayout() Layout {
	return Layout{CellWidth: 30, CellHeight: 30, LegendSpacing: 10, LabelGap: 20, FontSize: 10}
}

// Normalized fills zero fields with defaults.
func (l Layout) Normalized() Layout {
	d := DefaultLayout()
	if l.CellWidth <= 0 {
		l.CellWidth = d.CellWidth
	}
	if l.CellHeight <= 0 {
		l.CellHeight = d.CellHeight
	}
	if l.LegendSpacing <= 0 {
		l.LegendSpacing = d.LegendSpacing
	}
	if l.LabelGap <= 0 {
		l.LabelGap = d.LabelGap
	}
	if l.FontSize <= 0 {
		l.FontSize = d.FontSize
	}
	return l
}

// PixelRect converts a block of cells into scene coordinates.
func (l Layout) PixelRect(r CellRect) Rect {
	return Rect{
		X:      float64(r.Column) * l.CellWidth,
		Y:      float64(r.Row) * l.CellHeight,
		Width:  float64(r.Width) * l.CellWidth,
		Height: float64(r.Height) * l.CellHeight,
	}
}

// GridRect returns the scene rectangle covered by a cols x rows grid.
func (l Layout) GridRect(cols, rows int) Rect {
	return l.PixelRect(CellRect{Width: cols, Height: rows})
}
