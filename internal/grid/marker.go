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

	"knitchart/internal/domain"
)

// MarkSelection stores a marker around the selection, which must be a
// rectangle. The cells themselves are not changed; the selection is cleared.
func (g *Grid) MarkSelection(color domain.Color) (Marker, error) {
	r, err := g.SelectionRectangle()
	if err != nil {
		return Marker{}, err
	}
	m := Marker{Rect: r, Color: color}
	g.markers = append(g.markers, m)
	g.ClearSelection()
	return m, nil
}

// Markers returns the markers in creation order.
func (g *Grid) Markers() []Marker {
	return append([]Marker(nil), g.markers...)
}

// RemoveMarker deletes the marker at index i.
func (g *Grid) RemoveMarker(i int) error {
	if i < 0 || i >= len(g.markers) {
		return fmt.Errorf("%w: marker %d of %d", ErrOutOfRange, i, len(g.markers))
	}
	g.markers = append(g.markers[:i], g.markers[i+1:]...)
	return nil
}

// shiftMarkers keeps markers attached to their cells across a structural
// edit. Inserting inside a marker grows it, deleting inside shrinks it and a
// marker that loses its last line disappears.
func (g *Grid) shiftMarkers(axis Axis, pivot, delta int) {
	kept := g.markers[:0]
	for _, m := range g.markers {
		start, extent := &m.Rect.Column, &m.Rect.Width
		if axis == Rows {
			start, extent = &m.Rect.Row, &m.Rect.Height
		}
		switch {
		case delta > 0 && *start >= pivot:
			*start++
		case delta > 0 && pivot < *start+*extent:
			*extent++
		case delta < 0 && *start > pivot:
			*start--
		case delta < 0 && pivot < *start+*extent:
			*extent--
		}
		if *extent > 0 {
			kept = append(kept, m)
		}
	}
	g.markers = kept
}
