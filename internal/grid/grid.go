/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package grid implements the pattern grid of a knitting chart: a rows x
// columns field of unit cells covered by cells that span one or more unit
// columns. Cells live in an arena keyed by CellID; callers only ever see
// copies, so a removed cell can never be reached through a stale pointer.
//
// A Grid is not safe for concurrent use. It is meant to be owned by a single
// mutator (the editor session).
package grid

import (
	"errors"
	"fmt"
	"sort"

	"knitchart/internal/domain"
	"knitchart/internal/symbol"
)

var (
	ErrOutOfRange     = errors.New("position out of range")
	ErrWouldBisect    = errors.New("edit would split a multi-cell symbol")
	ErrSelectionCount = errors.New("selection count not a multiple of symbol width")
	ErrNotRectangle   = errors.New("selection is not a rectangle")
	ErrEmptySelection = errors.New("nothing selected")
	ErrOverlap        = errors.New("cells overlap")
	// ErrInternal wraps listener failures. It signals a bookkeeping bug,
	// never a user error.
	ErrInternal = errors.New("internal grid inconsistency")
)

// BlockSizeError reports a row whose contiguous selected span cannot be cut
// into blocks of the symbol width.
type BlockSizeError struct {
	Row         int
	SpanWidth   int
	SymbolWidth int
}

func (e *BlockSizeError) Error() string {
	return fmt.Sprintf("row %d: non-matching block size (%d cells for width %d)", e.Row+1, e.SpanWidth, e.SymbolWidth)
}

// CellID is the stable arena key of a cell.
type CellID uint64

// Cell is one occupied span of a row.
type Cell struct {
	ID     CellID
	Column int
	Row    int
	Width  int
	Color  domain.Color
	Symbol symbol.Symbol
}

// End returns the first column after the cell.
func (c Cell) End() int { return c.Column + c.Width }

// Covers reports whether the cell covers unit position (col, row).
func (c Cell) Covers(col, row int) bool {
	return row == c.Row && col >= c.Column && col < c.End()
}

// Axis selects columns or rows for structural edits.
type Axis int

const (
	Columns Axis = iota
	Rows
)

func (a Axis) String() string {
	if a == Rows {
		return "row"
	}
	return "column"
}

// Listener observes cell membership and geometry changes. The legend
// registry is the main implementation.
type Listener interface {
	CellAdded(c Cell) error
	CellRemoved(c Cell) error
	// Shifted is called after a line was inserted (delta 1) or deleted
	// (delta -1) at pivot.
	Shifted(axis Axis, pivot, delta int)
	// Resized is called whenever the grid dimensions change.
	Resized(cols, rows int)
}

// Options configures a Grid.
type Options struct {
	// DefaultSymbol fills new cells; the zero value is the empty symbol.
	DefaultSymbol symbol.Symbol
	// DefaultColor is the background of new cells; white when unset.
	DefaultColor *domain.Color
	Listener     Listener
}

// Marker is a decorative rectangle drawn over a block of cells.
type Marker struct {
	Rect  domain.CellRect
	Color domain.Color
}

// Grid is the pattern grid.
type Grid struct {
	cols, rows int
	cells      map[CellID]*Cell
	nextID     CellID
	selected   map[CellID]struct{}
	markers    []Marker

	defSymbol symbol.Symbol
	defColor  domain.Color
	listener  Listener
}

// New returns a cols x rows grid filled with default cells.
func New(cols, rows int, opts Options) (*Grid, error) {
	g := &Grid{
		cells:     make(map[CellID]*Cell),
		selected:  make(map[CellID]struct{}),
		defSymbol: opts.DefaultSymbol,
		defColor:  domain.White,
		listener:  opts.Listener,
	}
	if opts.DefaultColor != nil {
		g.defColor = *opts.DefaultColor
	}
	if err := g.Reset(cols, rows); err != nil {
		return nil, err
	}
	return g, nil
}

// Dims returns the number of columns and rows.
func (g *Grid) Dims() (cols, rows int) { return g.cols, g.rows }

// Len returns the number of cells.
func (g *Grid) Len() int { return len(g.cells) }

// DefaultSymbol returns the symbol new cells are filled with.
func (g *Grid) DefaultSymbol() symbol.Symbol { return g.defSymbol }

// DefaultColor returns the background of new cells.
func (g *Grid) DefaultColor() domain.Color { return g.defColor }

// Cell returns a copy of the cell with the given id.
func (g *Grid) Cell(id CellID) (Cell, bool) {
	c, ok := g.cells[id]
	if !ok {
		return Cell{}, false
	}
	return *c, true
}

// CellAt returns the cell covering unit position (col, row).
func (g *Grid) CellAt(col, row int) (Cell, bool) {
	if c := g.find(col, row); c != nil {
		return *c, true
	}
	return Cell{}, false
}

// Cells returns copies of all cells ordered by row, then column.
func (g *Grid) Cells() []Cell {
	out := make([]Cell, 0, len(g.cells))
	for _, c := range g.cells {
		out = append(out, *c)
	}
	sortCells(out)
	return out
}

// Row returns the cells of one row ordered by column.
func (g *Grid) Row(row int) []Cell {
	var out []Cell
	for _, c := range g.cells {
		if c.Row == row {
			out = append(out, *c)
		}
	}
	sortCells(out)
	return out
}

func sortCells(cs []Cell) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Row != cs[j].Row {
			return cs[i].Row < cs[j].Row
		}
		return cs[i].Column < cs[j].Column
	})
}

func (g *Grid) find(col, row int) *Cell {
	if col < 0 || row < 0 || col >= g.cols || row >= g.rows {
		return nil
	}
	for _, c := range g.cells {
		if c.Covers(col, row) {
			return c
		}
	}
	return nil
}

// Reset discards all cells, the selection and markers, and refills the grid
// with cols x rows default cells.
func (g *Grid) Reset(cols, rows int) error {
	if cols < 0 || rows < 0 {
		return fmt.Errorf("%w: %dx%d", ErrOutOfRange, cols, rows)
	}
	n := notifier{l: g.listener}
	for _, c := range g.Cells() {
		g.drop(c.ID, &n)
	}
	g.markers = nil
	g.cols, g.rows = cols, rows
	n.resized(cols, rows)
	for r := 0; r < rows; r++ {
		for col := 0; col < cols; col++ {
			g.add(Cell{Column: col, Row: r, Width: 1, Color: g.defColor, Symbol: g.defSymbol}, &n)
		}
	}
	return n.err()
}

// Load replaces the grid content with the given cells and markers. Cell ids
// are assigned by the grid. The new content is validated completely before
// the current one is touched; on error the grid is unchanged.
func (g *Grid) Load(cols, rows int, cells []Cell, markers []Marker) error {
	if cols < 0 || rows < 0 {
		return fmt.Errorf("%w: %dx%d", ErrOutOfRange, cols, rows)
	}
	if err := validateLayout(cols, rows, cells); err != nil {
		return err
	}
	for _, m := range markers {
		if m.Rect.Empty() || m.Rect.Column < 0 || m.Rect.Row < 0 ||
			m.Rect.Column+m.Rect.Width > cols || m.Rect.Row+m.Rect.Height > rows {
			return fmt.Errorf("%w: marker %+v", ErrOutOfRange, m.Rect)
		}
	}
	n := notifier{l: g.listener}
	for _, c := range g.Cells() {
		g.drop(c.ID, &n)
	}
	g.cols, g.rows = cols, rows
	g.markers = append([]Marker(nil), markers...)
	n.resized(cols, rows)
	for _, c := range cells {
		g.add(c, &n)
	}
	return n.err()
}

// Validate checks the row-partition invariant of the current content.
func (g *Grid) Validate() error {
	return validateLayout(g.cols, g.rows, g.Cells())
}

func validateLayout(cols, rows int, cells []Cell) error {
	byRow := make(map[int][]Cell)
	for _, c := range cells {
		if c.Width < 1 || c.Column < 0 || c.Row < 0 || c.End() > cols || c.Row >= rows {
			return fmt.Errorf("%w: cell at (%d,%d) width %d in %dx%d grid", ErrOutOfRange, c.Column, c.Row, c.Width, cols, rows)
		}
		byRow[c.Row] = append(byRow[c.Row], c)
	}
	for row, rc := range byRow {
		sort.Slice(rc, func(i, j int) bool { return rc[i].Column < rc[j].Column })
		for i := 1; i < len(rc); i++ {
			if rc[i].Column < rc[i-1].End() {
				return fmt.Errorf("%w: row %d columns %d and %d", ErrOverlap, row, rc[i-1].Column, rc[i].Column)
			}
		}
	}
	return nil
}

// add stores a new cell and announces it.
func (g *Grid) add(c Cell, n *notifier) CellID {
	g.nextID++
	c.ID = g.nextID
	cc := c
	g.cells[c.ID] = &cc
	n.added(cc)
	return c.ID
}

// drop removes a cell, deselects it and announces the removal.
func (g *Grid) drop(id CellID, n *notifier) {
	c, ok := g.cells[id]
	if !ok {
		return
	}
	delete(g.cells, id)
	delete(g.selected, id)
	n.removed(*c)
}

// notifier forwards to the listener and keeps the first error. Grid
// mutations always run to completion so the arena stays consistent.
type notifier struct {
	l     Listener
	first error
}

func (n *notifier) added(c Cell) {
	if n.l == nil {
		return
	}
	if err := n.l.CellAdded(c); err != nil && n.first == nil {
		n.first = err
	}
}

func (n *notifier) removed(c Cell) {
	if n.l == nil {
		return
	}
	if err := n.l.CellRemoved(c); err != nil && n.first == nil {
		n.first = err
	}
}

func (n *notifier) shifted(axis Axis, pivot, delta int) {
	if n.l != nil {
		n.l.Shifted(axis, pivot, delta)
	}
}

func (n *notifier) resized(cols, rows int) {
	if n.l != nil {
		n.l.Resized(cols, rows)
	}
}

func (n *notifier) err() error {
	if n.first == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInternal, n.first)
}
