/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/bmp"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/tiff"

	"knitchart/internal/domain"
)

var (
	gridLine = domain.Color{R: 96, G: 96, B: 96}
	ink      = domain.Black
)

// Rasterize draws the scene into a new image at the given scale (1 means
// one pixel per scene unit).
func Rasterize(s Scene, scale float64) *image.RGBA {
	if scale <= 0 {
		scale = 1
	}
	px := func(v float64) int { return int(math.Round(v * scale)) }
	img := image.NewRGBA(image.Rect(0, 0, max(px(s.Width), 1), max(px(s.Height), 1)))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: toRGBA(domain.White)}, image.Point{}, draw.Src)

	face := basicfont.Face7x13
	for _, c := range s.Cells {
		x0, y0 := px(c.Rect.X), px(c.Rect.Y)
		x1, y1 := px(c.Rect.Right())-1, px(c.Rect.Bottom())-1
		fillRect(img, x0, y0, x1, y1, toRGBA(c.Fill))
		strokeRect(img, x0, y0, x1, y1, toRGBA(gridLine))
		drawCentered(img, face, c.Abbrev, x0, y0, x1, y1, contrast(c.Fill))
	}
	for _, m := range s.Markers {
		x0, y0 := px(m.Rect.X), px(m.Rect.Y)
		x1, y1 := px(m.Rect.Right())-1, px(m.Rect.Bottom())-1
		mc := toRGBA(m.Color)
		strokeRect(img, x0, y0, x1, y1, mc)
		strokeRect(img, x0+1, y0+1, x1-1, y1-1, mc)
	}
	for _, it := range s.Legend {
		x0, y0 := px(it.Icon.X), px(it.Icon.Y)
		x1, y1 := px(it.Icon.Right())-1, px(it.Icon.Bottom())-1
		fillRect(img, x0, y0, x1, y1, toRGBA(it.Fill))
		strokeRect(img, x0, y0, x1, y1, toRGBA(gridLine))
		drawCentered(img, face, it.Abbrev, x0, y0, x1, y1, contrast(it.Fill))
		// Label baseline sits on the vertical middle of the icon row.
		base := px(it.Text.Y + s.Layout.CellHeight/2) + face.Ascent/2
		drawText(img, face, it.Label, px(it.Text.X), base, toRGBA(ink))
	}
	return img
}

// EncodeImage writes img in one of the raster formats.
func EncodeImage(w io.Writer, img image.Image, format Format) error {
	switch format {
	case PNG:
		return png.Encode(w, img)
	case JPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 92})
	case BMP:
		return bmp.Encode(w, img)
	case TIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("%w: %s is not a raster format", ErrFormat, format)
	}
}

func toRGBA(c domain.Color) color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

// contrast picks black or white text for a background.
func contrast(bg domain.Color) color.RGBA {
	lum := 0.299*float64(bg.R) + 0.587*float64(bg.G) + 0.114*float64(bg.B)
	if lum < 128 {
		return toRGBA(domain.White)
	}
	return toRGBA(domain.Black)
}

func drawText(img *image.RGBA, face font.Face, s string, x, baseline int, col color.RGBA) {
	if s == "" {
		return
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(s)
}

func drawCentered(img *image.RGBA, face *basicfont.Face, s string, x0, y0, x1, y1 int, col color.RGBA) {
	if s == "" {
		return
	}
	w := font.MeasureString(face, s).Ceil()
	x := x0 + (x1-x0+1-w)/2
	base := y0 + (y1-y0+1+face.Ascent)/2
	drawText(img, face, s, x, base, col)
}

// strokeRect draws a 1px axis-aligned rectangle border inclusive of endpoints.
func strokeRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	if x1 < x0 || y1 < y0 {
		return
	}
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y0, col)
		img.SetRGBA(x, y1, col)
	}
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x0, y, col)
		img.SetRGBA(x1, y, col)
	}
}

func fillRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	draw.Draw(img, image.Rect(x0, y0, x1+1, y1+1), &image.Uniform{C: col}, image.Point{}, draw.Src)
}
