/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package grid

import (
	"fmt"
	"sort"

	"knitchart/internal/domain"
	"knitchart/internal/symbol"
)

// IsSelected reports whether the cell covering (col, row) is selected.
func (g *Grid) IsSelected(col, row int) bool {
	c := g.find(col, row)
	if c == nil {
		return false
	}
	_, ok := g.selected[c.ID]
	return ok
}

// Select adds the cell covering (col, row) to the selection.
func (g *Grid) Select(col, row int) error {
	c := g.find(col, row)
	if c == nil {
		return fmt.Errorf("%w: no cell at (%d,%d)", ErrOutOfRange, col, row)
	}
	g.selected[c.ID] = struct{}{}
	return nil
}

// Deselect removes the cell covering (col, row) from the selection.
func (g *Grid) Deselect(col, row int) error {
	c := g.find(col, row)
	if c == nil {
		return fmt.Errorf("%w: no cell at (%d,%d)", ErrOutOfRange, col, row)
	}
	delete(g.selected, c.ID)
	return nil
}

// Toggle flips the selection state of the cell covering (col, row) and
// returns the new state.
func (g *Grid) Toggle(col, row int) (bool, error) {
	c := g.find(col, row)
	if c == nil {
		return false, fmt.Errorf("%w: no cell at (%d,%d)", ErrOutOfRange, col, row)
	}
	if _, ok := g.selected[c.ID]; ok {
		delete(g.selected, c.ID)
		return false, nil
	}
	g.selected[c.ID] = struct{}{}
	return true, nil
}

// SelectRect selects every cell touching the block r.
func (g *Grid) SelectRect(r domain.CellRect) error {
	if r.Empty() || r.Column < 0 || r.Row < 0 || r.Column+r.Width > g.cols || r.Row+r.Height > g.rows {
		return fmt.Errorf("%w: block %+v in %dx%d grid", ErrOutOfRange, r, g.cols, g.rows)
	}
	for id, c := range g.cells {
		if c.Row >= r.Row && c.Row < r.Row+r.Height && c.Column < r.Column+r.Width && c.End() > r.Column {
			g.selected[id] = struct{}{}
		}
	}
	return nil
}

// ClearSelection deselects everything.
func (g *Grid) ClearSelection() {
	clear(g.selected)
}

// SelectionLen returns the number of selected cells.
func (g *Grid) SelectionLen() int { return len(g.selected) }

// Selection returns the selected cells ordered by row*cols+column.
func (g *Grid) Selection() []Cell {
	out := make([]Cell, 0, len(g.selected))
	for id := range g.selected {
		if c, ok := g.cells[id]; ok {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Row*g.cols+out[i].Column < out[j].Row*g.cols+out[j].Column
	})
	return out
}

// span is a maximal run of adjacent selected cells in one row.
type span struct {
	row, start, width int
}

// selectionSpans buckets the selection by row and merges adjacent cells.
// The result is indexed by row; rows without selection have no spans.
func (g *Grid) selectionSpans() [][]span {
	buckets := make([][]Cell, g.rows)
	for _, c := range g.Selection() {
		buckets[c.Row] = append(buckets[c.Row], c)
	}
	out := make([][]span, g.rows)
	for row, cells := range buckets {
		for _, c := range cells {
			if k := len(out[row]); k > 0 && out[row][k-1].start+out[row][k-1].width == c.Column {
				out[row][k-1].width += c.Width
				continue
			}
			out[row] = append(out[row], span{row: row, start: c.Column, width: c.Width})
		}
	}
	return out
}

// Place fills the selection with sym. The selection is cut, row by row,
// into contiguous spans; every span must be a multiple of the symbol width
// and is replaced by span/width cells of that width. Any failing row aborts
// the whole placement, leaving grid and selection unchanged.
//
// Placing the empty symbol is a no-op.
func (g *Grid) Place(sym symbol.Symbol, color domain.Color) error {
	w := sym.Width
	if w <= 0 || len(g.selected) == 0 {
		return nil
	}
	units := 0
	for id := range g.selected {
		units += g.cells[id].Width
	}
	if units%w != 0 {
		return fmt.Errorf("%w: %d cells for width %d", ErrSelectionCount, units, w)
	}

	var planned []Cell
	for _, spans := range g.selectionSpans() {
		for _, s := range spans {
			if s.width%w != 0 {
				return &BlockSizeError{Row: s.row, SpanWidth: s.width, SymbolWidth: w}
			}
			for k := 0; k < s.width/w; k++ {
				planned = append(planned, Cell{Column: s.start + k*w, Row: s.row, Width: w, Color: color, Symbol: sym})
			}
		}
	}

	// Additions go out before removals, so a key the new cells still cover
	// never reaches a count of zero.
	n := notifier{l: g.listener}
	old := g.Selection()
	for _, c := range planned {
		g.add(c, &n)
	}
	for _, c := range old {
		g.drop(c.ID, &n)
	}
	g.ClearSelection()
	return n.err()
}

// Recolor changes the background of every selected cell, keeping symbols.
func (g *Grid) Recolor(color domain.Color) error {
	if len(g.selected) == 0 {
		return ErrEmptySelection
	}
	n := notifier{l: g.listener}
	for _, c := range g.Selection() {
		if c.Color == color {
			continue
		}
		g.cells[c.ID].Color = color
		n.added(*g.cells[c.ID])
		n.removed(c)
	}
	g.ClearSelection()
	return n.err()
}

// SelectionRectangle checks that the selection forms one solid rectangle and
// returns it. Empty rows before and after the selection are ignored; every
// row in between must hold exactly one span with the same start and width.
func (g *Grid) SelectionRectangle() (domain.CellRect, error) {
	if len(g.selected) == 0 {
		return domain.CellRect{}, ErrEmptySelection
	}
	rows := g.selectionSpans()
	first, last := -1, -1
	for r, s := range rows {
		if len(s) == 0 {
			continue
		}
		if first < 0 {
			first = r
		}
		last = r
	}
	ref := rows[first]
	if len(ref) != 1 {
		return domain.CellRect{}, fmt.Errorf("%w: row %d is not contiguous", ErrNotRectangle, first+1)
	}
	for r := first + 1; r <= last; r++ {
		if len(rows[r]) != 1 || rows[r][0].start != ref[0].start || rows[r][0].width != ref[0].width {
			return domain.CellRect{}, fmt.Errorf("%w: row %d differs", ErrNotRectangle, r+1)
		}
	}
	return domain.CellRect{Column: ref[0].start, Row: first, Width: ref[0].width, Height: last - first + 1}, nil
}
