/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package ui is the desktop front-end. The Fyne implementation is only
// compiled with the "fyne" build tag; other builds get a stub Run.
package ui

import (
	"knitchart/internal/domain"
	"knitchart/internal/editor"
	"knitchart/internal/export"
	"knitchart/internal/legend"
)

// Options configures Run.
type Options struct {
	Editor editor.Options
	// Columns and Rows size the chart created when no file is given.
	Columns, Rows int
	// ExportPreset selects the formats of File > Export all.
	ExportPreset export.PresetName
}

const (
	minZoom = 0.2
	maxZoom = 4.0
)

// view maps between widget and scene coordinates.
type view struct {
	zoom             float32
	offsetX, offsetY float32
}

func (v view) toScreen(x, y float64) (float32, float32) {
	return float32(x)*v.zoom + v.offsetX, float32(y)*v.zoom + v.offsetY
}

func (v view) toScene(px, py float32) (float64, float64) {
	return float64((px - v.offsetX) / v.zoom), float64((py - v.offsetY) / v.zoom)
}

// zoomAt changes the zoom by step keeping the scene point under (px, py)
// in place.
func (v *view) zoomAt(step, px, py float32) {
	x, y := v.toScene(px, py)
	z := v.zoom + step
	if z < minZoom {
		z = minZoom
	}
	if z > maxZoom {
		z = maxZoom
	}
	v.zoom = z
	v.offsetX = px - float32(x)*z
	v.offsetY = py - float32(y)*z
}

// cellAt returns the unit position under the scene point.
func cellAt(l domain.Layout, cols, rows int, x, y float64) (col, row int, ok bool) {
	if x < 0 || y < 0 {
		return 0, 0, false
	}
	col, row = int(x/l.CellWidth), int(y/l.CellHeight)
	if col >= cols || row >= rows {
		return 0, 0, false
	}
	return col, row, true
}

// legendAt returns the index of the entry whose icon or label contains the
// scene point, or -1. Later entries win, matching the draw order.
func legendAt(entries []legend.Entry, l domain.Layout, x, y float64) int {
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		icon := domain.Rect{X: e.Icon.X, Y: e.Icon.Y, Width: float64(e.Symbol.Width) * l.CellWidth, Height: l.CellHeight}
		label := domain.Rect{X: e.Label.X, Y: e.Label.Y, Width: export.TextWidth(e.Text, l.FontSize), Height: l.CellHeight}
		if contains(icon, x, y) || contains(label, x, y) {
			return i
		}
	}
	return -1
}

func contains(r domain.Rect, x, y float64) bool {
	return x >= r.X && x < r.Right() && y >= r.Y && y < r.Bottom()
}
