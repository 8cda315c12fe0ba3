/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"fmt"

	"knitchart/internal/domain"
	"knitchart/internal/grid"
	"knitchart/internal/legend"
)

// ErrInvalidDocument reports a well-formed document whose content does not
// describe a valid chart.
var ErrInvalidDocument = errors.New("invalid chart document")

// Document is a chart detached from any live grid: the result of parsing a
// project file, or a snapshot about to be written.
type Document struct {
	Columns, Rows int
	Cells         []grid.Cell
	Legend        []legend.Placement
	Markers       []grid.Marker
	Palette       []domain.Color
}

// Snapshot captures the current state of a chart.
func Snapshot(g *grid.Grid, r *legend.Registry, p *domain.Palette) Document {
	cols, rows := g.Dims()
	doc := Document{
		Columns: cols,
		Rows:    rows,
		Cells:   g.Cells(),
		Markers: g.Markers(),
	}
	if r != nil {
		doc.Legend = r.Placements()
	}
	if p != nil {
		doc.Palette = p.Colors()
	}
	return doc
}

// Apply replaces the live chart with doc. The grid validates the whole
// document before touching its content, so on a validation error nothing
// changes. Legend placements for keys no cell uses are dropped.
func Apply(doc Document, g *grid.Grid, r *legend.Registry, p *domain.Palette) error {
	if err := g.Load(doc.Columns, doc.Rows, doc.Cells, doc.Markers); err != nil {
		if errors.Is(err, grid.ErrInternal) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if r != nil {
		r.Apply(doc.Legend)
	}
	if p != nil && doc.Palette != nil {
		p.Replace(doc.Palette...)
	}
	return nil
}

// inferDims derives grid dimensions from the cells when a document does
// not state them.
func inferDims(cells []grid.Cell) (cols, rows int) {
	for _, c := range cells {
		cols = max(cols, c.End())
		rows = max(rows, c.Row+1)
	}
	return cols, rows
}
