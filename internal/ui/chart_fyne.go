//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"image/color"
	"os"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"knitchart/internal/domain"
	"knitchart/internal/editor"
	"knitchart/internal/export"
	"knitchart/internal/legend"
)

var (
	backdrop  = color.NRGBA{R: 235, G: 235, B: 238, A: 255}
	gridLine  = color.NRGBA{R: 96, G: 96, B: 96, A: 255}
	selection = color.NRGBA{R: 0, G: 120, B: 255, A: 90}
	selStroke = color.NRGBA{R: 0, G: 120, B: 255, A: 255}
)

type dragMode int

const (
	dragNone dragMode = iota
	dragPan
	dragLegend
)

// ChartCanvas draws the grid, markers and legend of a session. A tap
// toggles the selection of the cell under the pointer, dragging a legend
// item moves it, dragging elsewhere pans and the wheel zooms.
type ChartCanvas struct {
	widget.BaseWidget
	sess *editor.Session
	view view

	drag     dragMode
	dragKey  legend.Key
	dragDX   float64
	dragDY   float64
	dragging bool

	// OnChanged is called after the canvas changed the chart itself.
	OnChanged func()
	OnError   func(error)
}

func NewChartCanvas(s *editor.Session) *ChartCanvas {
	c := &ChartCanvas{sess: s, view: view{zoom: 1, offsetX: 20, offsetY: 20}}
	c.ExtendBaseWidget(c)
	return c
}

// SetSession shows another chart and resets the viewport.
func (c *ChartCanvas) SetSession(s *editor.Session) {
	c.sess = s
	c.view = view{zoom: 1, offsetX: 20, offsetY: 20}
	c.drag = dragNone
	c.Refresh()
}

// Zoom changes the zoom around the widget center.
func (c *ChartCanvas) Zoom(step float32) {
	sz := c.Size()
	c.view.zoomAt(step, sz.Width/2, sz.Height/2)
	c.Refresh()
}

func (c *ChartCanvas) CreateRenderer() fyne.WidgetRenderer {
	return &chartRenderer{c: c, bg: canvas.NewRectangle(backdrop)}
}

func (c *ChartCanvas) Tapped(e *fyne.PointEvent) {
	x, y := c.view.toScene(e.Position.X, e.Position.Y)
	l := c.sess.Layout()
	if legendAt(c.sess.Legend().Entries(), l, x, y) >= 0 {
		return
	}
	cols, rows := c.sess.Grid().Dims()
	col, row, ok := cellAt(l, cols, rows, x, y)
	if !ok {
		return
	}
	if _, err := c.sess.Grid().Toggle(col, row); err != nil && c.OnError != nil {
		c.OnError(err)
	}
	c.Refresh()
}

func (c *ChartCanvas) Dragged(e *fyne.DragEvent) {
	if c.drag == dragNone {
		// The event position is already past the first delta.
		x, y := c.view.toScene(e.Position.X-e.Dragged.DX, e.Position.Y-e.Dragged.DY)
		entries := c.sess.Legend().Entries()
		if i := legendAt(entries, c.sess.Layout(), x, y); i >= 0 {
			c.drag = dragLegend
			c.dragKey = entries[i].Key
			c.dragDX, c.dragDY = 0, 0
		} else {
			c.drag = dragPan
		}
	}
	switch c.drag {
	case dragPan:
		c.view.offsetX += e.Dragged.DX
		c.view.offsetY += e.Dragged.DY
	case dragLegend:
		c.dragDX += float64(e.Dragged.DX / c.view.zoom)
		c.dragDY += float64(e.Dragged.DY / c.view.zoom)
	}
	c.Refresh()
}

func (c *ChartCanvas) DragEnd() {
	mode := c.drag
	c.drag = dragNone
	if mode != dragLegend || (c.dragDX == 0 && c.dragDY == 0) {
		return
	}
	e, ok := c.sess.Legend().Lookup(c.dragKey)
	if !ok {
		return
	}
	icon := domain.Point{X: e.Icon.X + c.dragDX, Y: e.Icon.Y + c.dragDY}
	label := domain.Point{X: e.Label.X + c.dragDX, Y: e.Label.Y + c.dragDY}
	if err := c.sess.MoveLegend(c.dragKey, icon, label); err != nil && c.OnError != nil {
		c.OnError(err)
	}
	c.dragDX, c.dragDY = 0, 0
	if c.OnChanged != nil {
		c.OnChanged()
	}
}

func (c *ChartCanvas) Scrolled(e *fyne.ScrollEvent) {
	c.view.zoomAt(e.Scrolled.DY*0.01, e.Position.X, e.Position.Y)
	c.Refresh()
}

// chartRenderer rebuilds its objects from the session on every refresh.
type chartRenderer struct {
	c       *ChartCanvas
	bg      *canvas.Rectangle
	objects []fyne.CanvasObject
}

func (r *chartRenderer) Destroy()                     {}
func (r *chartRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *chartRenderer) MinSize() fyne.Size           { return fyne.NewSize(400, 300) }
func (r *chartRenderer) Refresh()                     { r.Layout(r.c.Size()); canvas.Refresh(r.c) }

func (r *chartRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	r.bg.Move(fyne.NewPos(0, 0))
	objs := []fyne.CanvasObject{r.bg}

	c := r.c
	v := c.view
	l := c.sess.Layout()
	g := c.sess.Grid()
	textSize := float32(l.FontSize) * v.zoom * 1.2

	box := func(rc domain.Rect, fill, stroke color.Color, width float32) *canvas.Rectangle {
		x, y := v.toScreen(rc.X, rc.Y)
		rect := canvas.NewRectangle(fill)
		rect.StrokeColor = stroke
		rect.StrokeWidth = width
		rect.Resize(fyne.NewSize(float32(rc.Width)*v.zoom, float32(rc.Height)*v.zoom))
		rect.Move(fyne.NewPos(x, y))
		return rect
	}
	centered := func(rc domain.Rect, s string, bg domain.Color) fyne.CanvasObject {
		t := canvas.NewText(s, inkFor(bg))
		t.TextSize = textSize
		t.Alignment = fyne.TextAlignCenter
		x, y := v.toScreen(rc.X, rc.Y)
		h := fyne.MeasureText(s, textSize, t.TextStyle).Height
		t.Resize(fyne.NewSize(float32(rc.Width)*v.zoom, h))
		t.Move(fyne.NewPos(x, y+(float32(rc.Height)*v.zoom-h)/2))
		return t
	}

	place := func(o fyne.CanvasObject, rc domain.Rect) fyne.CanvasObject {
		x, y := v.toScreen(rc.X, rc.Y)
		o.Resize(fyne.NewSize(float32(rc.Width)*v.zoom, float32(rc.Height)*v.zoom))
		o.Move(fyne.NewPos(x, y))
		return o
	}

	for _, cell := range g.Cells() {
		rc := l.PixelRect(domain.CellRect{Column: cell.Column, Row: cell.Row, Width: cell.Width, Height: 1})
		objs = append(objs, box(rc, toColor(cell.Color), gridLine, 1))
		if img := iconImage(cell.Symbol.Path); img != nil {
			objs = append(objs, place(img, rc))
		} else if ab := export.Abbrev(cell.Symbol.Name); ab != "" {
			objs = append(objs, centered(rc, ab, cell.Color))
		}
		if g.IsSelected(cell.Column, cell.Row) {
			objs = append(objs, box(rc, selection, selStroke, 2))
		}
	}
	for _, m := range g.Markers() {
		objs = append(objs, box(l.PixelRect(m.Rect), color.Transparent, toColor(m.Color), 2))
	}
	for _, e := range c.sess.Legend().Entries() {
		dx, dy := 0.0, 0.0
		if c.drag == dragLegend && e.Key == c.dragKey {
			dx, dy = c.dragDX, c.dragDY
		}
		icon := domain.Rect{X: e.Icon.X + dx, Y: e.Icon.Y + dy, Width: float64(e.Symbol.Width) * l.CellWidth, Height: l.CellHeight}
		objs = append(objs, box(icon, toColor(e.Color), gridLine, 1))
		if img := iconImage(e.Symbol.Path); img != nil {
			objs = append(objs, place(img, icon))
		} else if ab := export.Abbrev(e.Symbol.Name); ab != "" {
			objs = append(objs, centered(icon, ab, e.Color))
		}
		t := canvas.NewText(e.Text, color.Black)
		t.TextSize = textSize
		h := fyne.MeasureText(e.Text, textSize, t.TextStyle).Height
		x, y := v.toScreen(e.Label.X+dx, e.Label.Y+dy)
		t.Move(fyne.NewPos(x, y+(float32(l.CellHeight)*v.zoom-h)/2))
		objs = append(objs, t)
	}
	r.objects = objs
}

// iconImage loads a symbol icon; symbols without a readable icon file are
// drawn by abbreviation.
func iconImage(path string) *canvas.Image {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	img := canvas.NewImageFromFile(path)
	img.FillMode = canvas.ImageFillContain
	return img
}

func inkFor(bg domain.Color) color.Color {
	if 0.299*float64(bg.R)+0.587*float64(bg.G)+0.114*float64(bg.B) < 128 {
		return color.White
	}
	return color.Black
}
