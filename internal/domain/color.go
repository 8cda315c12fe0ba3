/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package domain holds the plain value types shared by the chart model,
// the serializer and the exporters. Nothing in here knows about a GUI toolkit.
package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Color is an opaque RGB background color. Its Name is the canonical
// "#rrggbb" form used as part of legend keys and in project files.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

var (
	White = Color{R: 255, G: 255, B: 255}
	Black = Color{R: 0, G: 0, B: 0}
)

// named colors accepted by ParseColor in addition to hex notation.
var namedColors = map[string]Color{
	"white":     White,
	"black":     Black,
	"red":       {R: 255, G: 0, B: 0},
	"green":     {R: 0, G: 128, B: 0},
	"blue":      {R: 0, G: 0, B: 255},
	"yellow":    {R: 255, G: 255, B: 0},
	"cyan":      {R: 0, G: 255, B: 255},
	"magenta":   {R: 255, G: 0, B: 255},
	"gray":      {R: 160, G: 160, B: 164},
	"lightgray": {R: 192, G: 192, B: 192},
	"darkgray":  {R: 128, G: 128, B: 128},
}

var errBadColor = errors.New("invalid color")

// Name returns the color as "#rrggbb".
func (c Color) Name() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c Color) String() string { return c.Name() }

// RGB packs the color into a 0xRRGGBB integer.
func (c Color) RGB() int {
	return int(c.R)<<16 | int(c.G)<<8 | int(c.B)
}

// ColorFromRGB unpacks a 0xRRGGBB integer. Higher bits (an alpha channel
// written by other tools) are ignored.
func ColorFromRGB(v int) Color {
	v &= 0xffffff
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}
}

// ParseColor accepts "#rgb", "#rrggbb" and a handful of color names.
func ParseColor(s string) (Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c, nil
	}
	if !strings.HasPrefix(s, "#") {
		return Color{}, fmt.Errorf("%w: %q", errBadColor, s)
	}
	hex := s[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("%w: %q", errBadColor, s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w: %q", errBadColor, s)
	}
	return ColorFromRGB(int(v)), nil
}

// MustColor is ParseColor for literals known to be valid.
func MustColor(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Palette is the ordered list of colors offered by the color picker.
// Duplicates are not kept.
type Palette struct {
	colors []Color
}

// DefaultPalette returns the palette of a fresh project.
func DefaultPalette() *Palette {
	p := &Palette{}
	for _, n := range []string{"#ffffff", "#000000", "#ff0000", "#00ff00", "#0000ff",
		"#ffff00", "#ff00ff", "#00ffff", "#808080", "#c0c0c0"} {
		p.Add(MustColor(n))
	}
	return p
}

// NewPalette builds a palette from colors, dropping duplicates.
func NewPalette(colors ...Color) *Palette {
	p := &Palette{}
	for _, c := range colors {
		p.Add(c)
	}
	return p
}

// Colors returns a copy of the palette in order.
func (p *Palette) Colors() []Color {
	return append([]Color(nil), p.colors...)
}

// Len reports the number of colors.
func (p *Palette) Len() int { return len(p.colors) }

// Contains reports whether c is in the palette.
func (p *Palette) Contains(c Color) bool {
	return p.index(c) >= 0
}

// Add appends c unless present. It reports whether the palette changed.
func (p *Palette) Add(c Color) bool {
	if p.index(c) >= 0 {
		return false
	}
	p.colors = append(p.colors, c)
	return true
}

// Remove drops c from the palette. It reports whether c was present.
func (p *Palette) Remove(c Color) bool {
	i := p.index(c)
	if i < 0 {
		return false
	}
	p.colors = append(p.colors[:i], p.colors[i+1:]...)
	return true
}

// Replace swaps the whole palette for colors, dropping duplicates.
func (p *Palette) Replace(colors ...Color) {
	p.colors = nil
	for _, c := range colors {
		p.Add(c)
	}
}

// Set replaces the color at position i.
func (p *Palette) Set(i int, c Color) error {
	if i < 0 || i >= len(p.colors) {
		return fmt.Errorf("palette index %d out of range", i)
	}
	if j := p.index(c); j >= 0 && j != i {
		return fmt.Errorf("color %s already in palette", c.Name())
	}
	p.colors[i] = c
	return nil
}

func (p *Palette) index(c Color) int {
	for i, pc := range p.colors {
		if pc == c {
			return i
		}
	}
	return -1
}
