/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package grid

import "fmt"

// InsertColumn inserts a column of default cells before column pivot.
// pivot == number of columns appends. Inserting between the unit columns of
// a wide cell is rejected with ErrWouldBisect and leaves the grid untouched.
func (g *Grid) InsertColumn(pivot int) error {
	if pivot < 0 || pivot > g.cols {
		return fmt.Errorf("%w: column %d of %d", ErrOutOfRange, pivot, g.cols)
	}
	if pivot > 0 && pivot < g.cols {
		for _, c := range g.cells {
			if c.Column < pivot && c.End() > pivot {
				return fmt.Errorf("%w: column %d splits the cell at (%d,%d)", ErrWouldBisect, pivot, c.Column, c.Row)
			}
		}
	}
	n := notifier{l: g.listener}
	for _, c := range g.cells {
		if c.Column >= pivot {
			c.Column++
		}
	}
	g.cols++
	g.shiftMarkers(Columns, pivot, 1)
	n.resized(g.cols, g.rows)
	n.shifted(Columns, pivot, 1)
	for r := 0; r < g.rows; r++ {
		g.add(Cell{Column: pivot, Row: r, Width: 1, Color: g.defColor, Symbol: g.defSymbol}, &n)
	}
	return n.err()
}

// InsertRow inserts a row of default cells before row pivot. Cells are one
// row high, so a row insertion never splits a cell.
func (g *Grid) InsertRow(pivot int) error {
	if pivot < 0 || pivot > g.rows {
		return fmt.Errorf("%w: row %d of %d", ErrOutOfRange, pivot, g.rows)
	}
	n := notifier{l: g.listener}
	for _, c := range g.cells {
		if c.Row >= pivot {
			c.Row++
		}
	}
	g.rows++
	g.shiftMarkers(Rows, pivot, 1)
	n.resized(g.cols, g.rows)
	n.shifted(Rows, pivot, 1)
	for col := 0; col < g.cols; col++ {
		g.add(Cell{Column: col, Row: pivot, Width: 1, Color: g.defColor, Symbol: g.defSymbol}, &n)
	}
	return n.err()
}

// DeleteColumn removes column target. Deleting a column covered by a wide
// cell would silently destroy part of that cell and is rejected with
// ErrWouldBisect.
func (g *Grid) DeleteColumn(target int) error {
	if target < 0 || target >= g.cols {
		return fmt.Errorf("%w: column %d of %d", ErrOutOfRange, target, g.cols)
	}
	var doomed []CellID
	for id, c := range g.cells {
		if !c.Covers(target, c.Row) {
			continue
		}
		if c.Width > 1 {
			return fmt.Errorf("%w: column %d is part of the cell at (%d,%d)", ErrWouldBisect, target, c.Column, c.Row)
		}
		doomed = append(doomed, id)
	}
	n := notifier{l: g.listener}
	for _, id := range sortedIDs(g, doomed) {
		g.drop(id, &n)
	}
	for _, c := range g.cells {
		if c.Column > target {
			c.Column--
		}
	}
	g.cols--
	g.shiftMarkers(Columns, target, -1)
	n.resized(g.cols, g.rows)
	n.shifted(Columns, target, -1)
	return n.err()
}

// DeleteRow removes row target with all its cells.
func (g *Grid) DeleteRow(target int) error {
	if target < 0 || target >= g.rows {
		return fmt.Errorf("%w: row %d of %d", ErrOutOfRange, target, g.rows)
	}
	var doomed []CellID
	for id, c := range g.cells {
		if c.Row == target {
			doomed = append(doomed, id)
		}
	}
	n := notifier{l: g.listener}
	for _, id := range sortedIDs(g, doomed) {
		g.drop(id, &n)
	}
	for _, c := range g.cells {
		if c.Row > target {
			c.Row--
		}
	}
	g.rows--
	g.shiftMarkers(Rows, target, -1)
	n.resized(g.cols, g.rows)
	n.shifted(Rows, target, -1)
	return n.err()
}

// Insert and Delete dispatch on axis; front-ends use them to share code
// between row and column commands.
func (g *Grid) Insert(axis Axis, pivot int) error {
	if axis == Rows {
		return g.InsertRow(pivot)
	}
	return g.InsertColumn(pivot)
}

func (g *Grid) Delete(axis Axis, target int) error {
	if axis == Rows {
		return g.DeleteRow(target)
	}
	return g.DeleteColumn(target)
}

// sortedIDs orders ids by cell position so listeners see removals in a
// deterministic order.
func sortedIDs(g *Grid, ids []CellID) []CellID {
	cs := make([]Cell, 0, len(ids))
	for _, id := range ids {
		cs = append(cs, *g.cells[id])
	}
	sortCells(cs)
	out := make([]CellID, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}
