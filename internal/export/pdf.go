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
	"io"
	"math"

	"github.com/jung-kurt/gofpdf"

	"knitchart/internal/domain"
)

// A4 portrait in points.
const (
	pageW      = 595.28
	pageH      = 841.89
	pageMargin = 36.0
	headerH    = 18.0
	// pxToPt keeps a 30px cell at roughly 8mm when the chart fits the page.
	pxToPt = 0.75
)

// WritePDF writes the scene as print output: the chart is fitted to the
// page width and split over as many A4 pages as its height needs. Each page
// carries the title and a page counter.
func WritePDF(w io.Writer, s Scene, title string) error {
	availW := pageW - 2*pageMargin
	availH := pageH - 2*pageMargin - headerH
	scale := pxToPt
	if s.Width*scale > availW {
		scale = availW / s.Width
	}
	pages := int(math.Ceil(s.Height * scale / availH))
	if pages < 1 {
		pages = 1
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: pageW, Ht: pageH},
	})
	pdf.SetTitle(title, true)
	pdf.SetCreator("knitchart", false)
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for page := 0; page < pages; page++ {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetTextColor(0, 0, 0)
		head := title
		if pages > 1 {
			head = fmt.Sprintf("%s (page %d/%d)", title, page+1, pages)
		}
		pdf.Text(pageMargin, pageMargin+10, tr(head))

		top := pageMargin + headerH
		offY := top - float64(page)*availH
		pdf.ClipRect(pageMargin, top, availW, availH, false)
		drawPDFScene(pdf, s, tr, pageMargin, offY, scale)
		pdf.ClipEnd()
	}
	if pdf.Err() {
		return fmt.Errorf("render pdf: %w", pdf.Error())
	}
	return pdf.Output(w)
}

func drawPDFScene(pdf *gofpdf.Fpdf, s Scene, tr func(string) string, ox, oy, scale float64) {
	at := func(r domain.Rect) (x, y, w, h float64) {
		return ox + r.X*scale, oy + r.Y*scale, r.Width * scale, r.Height * scale
	}
	fontPt := s.Layout.FontSize * scale * 1.2

	pdf.SetLineWidth(0.5)
	setDrawColor(pdf, gridLine)
	for _, c := range s.Cells {
		x, y, cw, ch := at(c.Rect)
		setFillColor(pdf, c.Fill)
		pdf.Rect(x, y, cw, ch, "FD")
		centeredText(pdf, tr(c.Abbrev), x, y, cw, ch, fontPt, c.Fill)
	}

	pdf.SetLineWidth(1.5)
	for _, m := range s.Markers {
		x, y, mw, mh := at(m.Rect)
		setDrawColor(pdf, m.Color)
		pdf.Rect(x, y, mw, mh, "D")
	}

	pdf.SetLineWidth(0.5)
	for _, it := range s.Legend {
		x, y, iw, ih := at(it.Icon)
		setDrawColor(pdf, gridLine)
		setFillColor(pdf, it.Fill)
		pdf.Rect(x, y, iw, ih, "FD")
		centeredText(pdf, tr(it.Abbrev), x, y, iw, ih, fontPt, it.Fill)

		pdf.SetFont("Helvetica", "", fontPt)
		pdf.SetTextColor(0, 0, 0)
		ty := oy + (it.Text.Y+s.Layout.CellHeight/2)*scale + fontPt*0.35
		pdf.Text(ox+it.Text.X*scale, ty, tr(it.Label))
	}
}

func centeredText(pdf *gofpdf.Fpdf, txt string, x, y, w, h, size float64, bg domain.Color) {
	if txt == "" {
		return
	}
	pdf.SetFont("Helvetica", "", size)
	ink := contrast(bg)
	pdf.SetTextColor(int(ink.R), int(ink.G), int(ink.B))
	tw := pdf.GetStringWidth(txt)
	pdf.Text(x+(w-tw)/2, y+h/2+size*0.35, txt)
}

func setDrawColor(pdf *gofpdf.Fpdf, c domain.Color) {
	pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
}

func setFillColor(pdf *gofpdf.Fpdf, c domain.Color) {
	pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
}
