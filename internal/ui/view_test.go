/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"testing"

	"knitchart/internal/domain"
	"knitchart/internal/legend"
	"knitchart/internal/symbol"
)

func TestViewRoundTrip(t *testing.T) {
	v := view{zoom: 2, offsetX: 10, offsetY: -5}
	px, py := v.toScreen(30, 45)
	if px != 70 || py != 85 {
		t.Fatalf("toScreen = %v,%v", px, py)
	}
	x, y := v.toScene(px, py)
	if x != 30 || y != 45 {
		t.Fatalf("toScene = %v,%v", x, y)
	}
}

func TestZoomKeepsPointUnderCursor(t *testing.T) {
	v := view{zoom: 1}
	x0, y0 := v.toScene(200, 100)
	v.zoomAt(0.5, 200, 100)
	x1, y1 := v.toScene(200, 100)
	if v.zoom != 1.5 || x0 != x1 || y0 != y1 {
		t.Fatalf("zoom %v moved (%v,%v) to (%v,%v)", v.zoom, x0, y0, x1, y1)
	}
	v.zoomAt(10, 0, 0)
	if v.zoom != maxZoom {
		t.Fatalf("zoom not clamped: %v", v.zoom)
	}
}

func TestCellAt(t *testing.T) {
	l := domain.DefaultLayout()
	cases := []struct {
		x, y     float64
		col, row int
		ok       bool
	}{
		{0, 0, 0, 0, true},
		{59, 31, 1, 1, true},
		{-1, 5, 0, 0, false},
		{150, 0, 0, 0, false},
		{0, 90, 0, 0, false},
	}
	for _, c := range cases {
		col, row, ok := cellAt(l, 5, 3, c.x, c.y)
		if ok != c.ok || (ok && (col != c.col || row != c.row)) {
			t.Fatalf("cellAt(%v,%v) = %d,%d,%v", c.x, c.y, col, row, ok)
		}
	}
}

func TestLegendAt(t *testing.T) {
	l := domain.DefaultLayout()
	entries := []legend.Entry{
		{Symbol: symbol.Symbol{Name: "c4", Width: 4}, Icon: domain.Point{X: 0, Y: 100}, Label: domain.Point{X: 140, Y: 100}, Text: "cable"},
		{Symbol: symbol.Symbol{Name: "k", Width: 1}, Icon: domain.Point{X: 0, Y: 140}, Label: domain.Point{X: 50, Y: 140}, Text: "knit"},
	}
	if i := legendAt(entries, l, 100, 110); i != 0 {
		t.Fatalf("wide icon hit = %d", i)
	}
	if i := legendAt(entries, l, 60, 150); i != 1 {
		t.Fatalf("label hit = %d", i)
	}
	if i := legendAt(entries, l, 100, 150); i != -1 {
		t.Fatalf("miss = %d", i)
	}
}
