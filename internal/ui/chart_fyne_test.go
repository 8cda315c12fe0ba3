//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// These tests exercise the Fyne chart canvas. They are gated behind the
// "fyne" build tag so headless CI does not need Fyne or a display:
//
//	go test -tags fyne ./internal/ui
package ui

import (
	"os"
	"path/filepath"
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/test"

	"knitchart/internal/domain"
	"knitchart/internal/editor"
	"knitchart/internal/symbol"
)

func newCanvas(t *testing.T) (*ChartCanvas, *editor.Session) {
	t.Helper()
	test.NewApp()
	purl := symbol.Symbol{Category: "basic", Name: "purl", Width: 1}
	s, err := editor.New(4, 3, editor.Options{Catalog: symbol.NewCatalog(purl)})
	if err != nil {
		t.Fatalf("editor.New: %v", err)
	}
	c := NewChartCanvas(s)
	c.Resize(fyne.NewSize(600, 400))
	return c, s
}

func TestTapTogglesSelection(t *testing.T) {
	c, s := newCanvas(t)
	// Offset 20 and 30px cells: (65,55) is column 1, row 1.
	c.Tapped(&fyne.PointEvent{Position: fyne.NewPos(65, 55)})
	if !s.Grid().IsSelected(1, 1) {
		t.Fatalf("cell (1,1) not selected")
	}
	c.Tapped(&fyne.PointEvent{Position: fyne.NewPos(65, 55)})
	if s.Grid().SelectionLen() != 0 {
		t.Fatalf("second tap should deselect")
	}
	c.Tapped(&fyne.PointEvent{Position: fyne.NewPos(5, 5)})
	if s.Grid().SelectionLen() != 0 {
		t.Fatalf("tap outside the grid selected something")
	}
}

func TestDragMovesLegendItem(t *testing.T) {
	c, s := newCanvas(t)
	if err := s.Grid().Select(0, 0); err != nil {
		t.Fatal(err)
	}
	purl, _ := s.Catalog().Lookup("basic", "purl")
	if err := s.Place(purl, domain.Black); err != nil {
		t.Fatalf("Place: %v", err)
	}
	e := s.Legend().Entries()[0]
	changed := false
	c.OnChanged = func() { changed = true }

	px, py := c.view.toScreen(e.Icon.X+5, e.Icon.Y+5)
	c.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(px+10, py+20)}, Dragged: fyne.Delta{DX: 10, DY: 20}})
	c.DragEnd()

	got, _ := s.Legend().Lookup(e.Key)
	if got.Icon.X != e.Icon.X+10 || got.Icon.Y != e.Icon.Y+20 || got.Label.X != e.Label.X+10 {
		t.Fatalf("legend item not moved: %+v -> %+v", e, got)
	}
	if !changed {
		t.Fatalf("OnChanged not called")
	}
	if ok, err := s.Undo(); !ok || err != nil {
		t.Fatalf("move should be undoable: %v %v", ok, err)
	}
}

func TestDragElsewherePans(t *testing.T) {
	c, _ := newCanvas(t)
	c.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(300, 300)}, Dragged: fyne.Delta{DX: 15, DY: -5}})
	c.DragEnd()
	if c.view.offsetX != 35 || c.view.offsetY != 15 {
		t.Fatalf("unexpected offset %v,%v", c.view.offsetX, c.view.offsetY)
	}
}

func TestSymbolIconsAreDrawn(t *testing.T) {
	test.NewApp()
	path := filepath.Join(t.TempDir(), "yo.svg")
	svg := `<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"><circle cx="5" cy="5" r="4"/></svg>`
	if err := os.WriteFile(path, []byte(svg), 0o644); err != nil {
		t.Fatal(err)
	}
	yo := symbol.Symbol{Category: "basic", Name: "yarn over", Width: 1, Path: path}
	s, err := editor.New(2, 1, editor.Options{Catalog: symbol.NewCatalog(yo)})
	if err != nil {
		t.Fatalf("editor.New: %v", err)
	}
	if err := s.Grid().Select(0, 0); err != nil {
		t.Fatal(err)
	}
	if err := s.Place(yo, domain.White); err != nil {
		t.Fatalf("Place: %v", err)
	}
	c := NewChartCanvas(s)
	c.Resize(fyne.NewSize(600, 400))

	r := test.WidgetRenderer(c)
	r.Layout(c.Size())
	images := 0
	for _, o := range r.Objects() {
		if img, ok := o.(*canvas.Image); ok && img.File == path {
			images++
		}
		if txt, ok := o.(*canvas.Text); ok && txt.Text == "yo" {
			t.Fatalf("abbreviation drawn although the symbol has an icon")
		}
	}
	// The cell and its legend swatch.
	if images != 2 {
		t.Fatalf("want 2 icon images, got %d", images)
	}
}
