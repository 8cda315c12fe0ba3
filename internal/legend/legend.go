/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package legend maintains the chart key: one reference-counted entry per
// (symbol, color) combination in use on the grid, with an editable label and
// freely movable icon and label positions.
package legend

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"knitchart/internal/domain"
	"knitchart/internal/grid"
	"knitchart/internal/symbol"
)

var (
	// ErrRefcountUnderflow means a cell was removed that was never added.
	// The grid makes it unreachable; seeing it is a bookkeeping bug.
	ErrRefcountUnderflow = errors.New("legend refcount underflow")
	ErrUnknownKey        = errors.New("unknown legend entry")
)

// Key identifies a legend entry.
type Key struct {
	Category string
	Name     string
	Color    string // domain.Color.Name()
}

// KeyOf returns the legend key of a cell.
func KeyOf(c grid.Cell) Key {
	return Key{Category: c.Symbol.Category, Name: c.Symbol.Name, Color: c.Color.Name()}
}

// String renders the key as "category/name@#rrggbb"; it is the id used in
// project files.
func (k Key) String() string {
	return k.Category + "/" + k.Name + "@" + k.Color
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	at := strings.LastIndex(s, "@")
	if at < 0 {
		return Key{}, fmt.Errorf("legend id %q: missing color", s)
	}
	ref, err := symbol.ParseRef(s[:at])
	if err != nil {
		return Key{}, fmt.Errorf("legend id %q: %w", s, err)
	}
	c, err := domain.ParseColor(s[at+1:])
	if err != nil {
		return Key{}, fmt.Errorf("legend id %q: %w", s, err)
	}
	return Key{Category: ref.Category, Name: ref.Name, Color: c.Name()}, nil
}

// Entry is one legend item.
type Entry struct {
	Key    Key
	Symbol symbol.Symbol
	Color  domain.Color
	Count  int
	Icon   domain.Point
	Label  domain.Point
	Text   string

	seq int
}

// Placement restores a saved entry position and label.
type Placement struct {
	Key   Key
	Icon  domain.Point
	Label domain.Point
	Text  string
}

// Registry is the legend. It implements grid.Listener and is updated only
// as a consequence of grid changes. Not safe for concurrent use.
type Registry struct {
	layout     domain.Layout
	cols, rows int
	entries    map[Key]*Entry
	seq        int
}

var _ grid.Listener = (*Registry)(nil)

// New returns an empty registry laying out items with l.
func New(l domain.Layout) *Registry {
	return &Registry{
		layout:  l.Normalized(),
		entries: make(map[Key]*Entry),
	}
}

// DefaultText is the label of a fresh entry: the symbol name followed by
// its instructions.
func DefaultText(s symbol.Symbol) string {
	if strings.TrimSpace(s.Instructions) == "" {
		return s.Name
	}
	return s.Name + ": " + s.Instructions
}

// CellAdded counts a cell in. The first cell of a key creates its entry
// below everything else on the scene.
func (r *Registry) CellAdded(c grid.Cell) error {
	if c.Symbol.IsEmpty() {
		return nil
	}
	k := KeyOf(c)
	if e, ok := r.entries[k]; ok {
		e.Count++
		return nil
	}
	y := r.nextFreeY()
	r.seq++
	iconW := float64(max(c.Symbol.Width, 1)) * r.layout.CellWidth
	r.entries[k] = &Entry{
		Key:    k,
		Symbol: c.Symbol,
		Color:  c.Color,
		Count:  1,
		Icon:   domain.Point{X: 0, Y: y},
		Label:  domain.Point{X: iconW + r.layout.LabelGap, Y: y},
		Text:   DefaultText(c.Symbol),
		seq:    r.seq,
	}
	return nil
}

// CellRemoved counts a cell out and drops the entry with its last cell.
func (r *Registry) CellRemoved(c grid.Cell) error {
	if c.Symbol.IsEmpty() {
		return nil
	}
	k := KeyOf(c)
	e, ok := r.entries[k]
	if !ok || e.Count <= 0 {
		return fmt.Errorf("%w: %s", ErrRefcountUnderflow, k)
	}
	e.Count--
	if e.Count == 0 {
		delete(r.entries, k)
	}
	return nil
}

// Shifted moves items lying past a structural edit by one cell so that
// items the user placed beside or below the grid keep their distance to it.
func (r *Registry) Shifted(axis grid.Axis, pivot, delta int) {
	size := r.layout.CellWidth
	if axis == grid.Rows {
		size = r.layout.CellHeight
	}
	threshold := float64(pivot) * size
	if delta < 0 {
		threshold = float64(pivot+1) * size
	}
	move := float64(delta) * size
	shift := func(p *domain.Point) {
		v := &p.X
		if axis == grid.Rows {
			v = &p.Y
		}
		if *v >= threshold {
			*v += move
		}
	}
	for _, e := range r.entries {
		shift(&e.Icon)
		shift(&e.Label)
	}
}

// Resized records the grid dimensions used for default placement.
func (r *Registry) Resized(cols, rows int) {
	r.cols, r.rows = cols, rows
}

// nextFreeY is the y of the next default item: below the lowest existing
// item or the grid, whichever is lower.
func (r *Registry) nextFreeY() float64 {
	bottom := r.layout.GridRect(r.cols, r.rows).Bottom()
	for _, e := range r.entries {
		bottom = math.Max(bottom, math.Max(e.Icon.Y, e.Label.Y)+r.layout.CellHeight)
	}
	return bottom + r.layout.LegendSpacing
}

// Len returns the number of entries.
func (r *Registry) Len() int { return len(r.entries) }

// Lookup returns a copy of the entry for k.
func (r *Registry) Lookup(k Key) (Entry, bool) {
	e, ok := r.entries[k]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Entries returns copies of all entries in creation order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// SetLabel replaces the label text of an entry.
func (r *Registry) SetLabel(k Key, text string) error {
	e, ok := r.entries[k]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, k)
	}
	e.Text = text
	return nil
}

// Move repositions the icon and label of an entry.
func (r *Registry) Move(k Key, icon, label domain.Point) error {
	e, ok := r.entries[k]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, k)
	}
	e.Icon, e.Label = icon, label
	return nil
}

// Apply restores saved placements and their order. Placements for keys
// that are not in use are ignored; the number of applied placements is
// returned.
func (r *Registry) Apply(ps []Placement) int {
	n := 0
	for _, p := range ps {
		e, ok := r.entries[p.Key]
		if !ok {
			continue
		}
		e.Icon, e.Label, e.Text = p.Icon, p.Label, p.Text
		r.seq++
		e.seq = r.seq
		n++
	}
	return n
}

// Placements returns the current placements in creation order.
func (r *Registry) Placements() []Placement {
	es := r.Entries()
	out := make([]Placement, len(es))
	for i, e := range es {
		out[i] = Placement{Key: e.Key, Icon: e.Icon, Label: e.Label, Text: e.Text}
	}
	return out
}

// Bounds returns the scene rectangle covered by all items, or false when
// the legend is empty. Label extents are estimated from the font size.
func (r *Registry) Bounds() (domain.Rect, bool) {
	if len(r.entries) == 0 {
		return domain.Rect{}, false
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, e := range r.entries {
		iconW := float64(max(e.Symbol.Width, 1)) * r.layout.CellWidth
		labelW := float64(len(e.Text)) * r.layout.FontSize * 0.6
		minX = math.Min(minX, math.Min(e.Icon.X, e.Label.X))
		minY = math.Min(minY, math.Min(e.Icon.Y, e.Label.Y))
		maxX = math.Max(maxX, math.Max(e.Icon.X+iconW, e.Label.X+labelW))
		maxY = math.Max(maxY, math.Max(e.Icon.Y, e.Label.Y)+r.layout.CellHeight)
	}
	return domain.Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, true
}

// Layout returns the layout used for placement.
func (r *Registry) Layout() domain.Layout { return r.layout }
