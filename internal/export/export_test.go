/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"knitchart/internal/domain"
	"knitchart/internal/grid"
	"knitchart/internal/legend"
	"knitchart/internal/storage"
	"knitchart/internal/symbol"
)

var (
	purl = symbol.Symbol{Category: "basic", Name: "purl", Width: 1, Instructions: "purl"}
	c2   = symbol.Symbol{Category: "cables", Name: "c2", Width: 2}
	red  = domain.Color{R: 255}
)

// sampleDoc is a 6x4 chart with two red cables in row 0, one black purl
// stitch at (5,3), a marker and a custom label.
func sampleDoc(t *testing.T, cols, rows int) storage.Document {
	t.Helper()
	r := legend.New(domain.DefaultLayout())
	g, err := grid.New(cols, rows, grid.Options{Listener: r})
	if err != nil {
		t.Fatalf("grid.New: %v", err)
	}
	for c := 0; c < 4; c++ {
		if err := g.Select(c, 0); err != nil {
			t.Fatalf("Select: %v", err)
		}
	}
	if err := g.Place(c2, red); err != nil {
		t.Fatalf("Place c2: %v", err)
	}
	if err := g.Select(5, 3); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := g.Place(purl, domain.Black); err != nil {
		t.Fatalf("Place purl: %v", err)
	}
	if err := g.SelectRect(domain.CellRect{Column: 1, Row: 1, Width: 2, Height: 2}); err != nil {
		t.Fatalf("SelectRect: %v", err)
	}
	if _, err := g.MarkSelection(domain.MustColor("blue")); err != nil {
		t.Fatalf("MarkSelection: %v", err)
	}
	if err := r.SetLabel(legend.Key{Category: "cables", Name: "c2", Color: red.Name()}, "cable <2> & more"); err != nil {
		t.Fatalf("SetLabel: %v", err)
	}
	return storage.Snapshot(g, r, domain.DefaultPalette())
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"png": PNG, ".JPEG": JPEG, "jpg": JPEG, "tif": TIFF, " svg ": SVG, "Pdf": PDF, "xlsx": XLSX, "bmp": BMP}
	for in, want := range cases {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("gif"); !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat for gif, got %v", err)
	}
}

func TestAbbrev(t *testing.T) {
	cases := map[string]string{"": "", "k": "k", "c2": "c2", "purl": "pur", "knit two together": "ktt", "slip-slip": "ss"}
	for in, want := range cases {
		if got := Abbrev(in); got != want {
			t.Fatalf("Abbrev(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildSceneKeepsLegendVisible(t *testing.T) {
	doc := sampleDoc(t, 6, 4)
	for i := range doc.Legend {
		doc.Legend[i].Icon = domain.Point{X: -200, Y: -50}
		doc.Legend[i].Label = domain.Point{X: -150, Y: -50}
	}
	s := BuildScene(doc, domain.DefaultLayout())
	if len(s.Cells) != len(doc.Cells) || len(s.Markers) != 1 || len(s.Legend) != 2 {
		t.Fatalf("unexpected scene content: %d cells, %d markers, %d legend", len(s.Cells), len(s.Markers), len(s.Legend))
	}
	for _, it := range s.Legend {
		if it.Icon.X < margin || it.Icon.Y < margin {
			t.Fatalf("legend icon outside the scene: %+v", it.Icon)
		}
	}
	if s.Grid.X != 210 || s.Grid.Y != 60 {
		t.Fatalf("grid should move right and down, got %+v", s.Grid)
	}
	if s.Grid.Right() > s.Width || s.Grid.Bottom() > s.Height {
		t.Fatalf("grid exceeds scene %gx%g: %+v", s.Width, s.Height, s.Grid)
	}
}

func TestPNGHasCellColors(t *testing.T) {
	doc := sampleDoc(t, 6, 4)
	var buf bytes.Buffer
	if err := Write(&buf, doc, domain.DefaultLayout(), Options{Format: PNG}); err != nil {
		t.Fatalf("Write png: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	// Cell (0,0) spans x 10..70 and y 10..40 after the margin.
	r, g, b, _ := img.At(14, 14).RGBA()
	if r>>8 != 255 || g>>8 != 0 || b>>8 != 0 {
		t.Fatalf("expected red cable cell, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
	r, g, b, _ = img.At(14, 44).RGBA()
	if r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Fatalf("expected white background cell, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestRasterScale(t *testing.T) {
	s := BuildScene(sampleDoc(t, 6, 4), domain.DefaultLayout())
	a := Rasterize(s, 1).Bounds()
	b := Rasterize(s, 2).Bounds()
	if b.Dx() < 2*a.Dx()-1 || b.Dy() < 2*a.Dy()-1 {
		t.Fatalf("scale 2 should double the size: %v vs %v", a, b)
	}
}

func TestSVGContent(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleDoc(t, 6, 4), domain.DefaultLayout(), Options{Format: SVG}); err != nil {
		t.Fatalf("Write svg: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"<svg ",
		`fill="#ff0000"`,
		`stroke="#0000ff"`,
		"cable &lt;2&gt; &amp; more",
		">c2</text>",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("svg misses %q:\n%s", want, out)
		}
	}
}

func TestSVGEmbedsSymbolIcons(t *testing.T) {
	icon := filepath.Join(t.TempDir(), "yo.svg")
	if err := os.WriteFile(icon, []byte(`<svg xmlns="http://www.w3.org/2000/svg"/>`), 0o644); err != nil {
		t.Fatal(err)
	}
	yo := symbol.Symbol{Category: "basic", Name: "yarn over", Width: 1, Path: icon}
	missing := symbol.Symbol{Category: "basic", Name: "slip", Width: 1, Path: filepath.Join(t.TempDir(), "gone.svg")}

	r := legend.New(domain.DefaultLayout())
	g, err := grid.New(3, 1, grid.Options{Listener: r})
	if err != nil {
		t.Fatalf("grid.New: %v", err)
	}
	for i, sym := range []symbol.Symbol{yo, missing} {
		if err := g.Select(i, 0); err != nil {
			t.Fatalf("Select: %v", err)
		}
		if err := g.Place(sym, domain.White); err != nil {
			t.Fatalf("Place %s: %v", sym.Name, err)
		}
	}

	var buf bytes.Buffer
	if err := Write(&buf, storage.Snapshot(g, r, nil), domain.DefaultLayout(), Options{Format: SVG}); err != nil {
		t.Fatalf("Write svg: %v", err)
	}
	out := buf.String()
	// One image in the cell and one in the legend swatch.
	if n := strings.Count(out, `href="data:image/svg+xml;base64,`); n != 2 {
		t.Fatalf("want 2 embedded icons, got %d:\n%s", n, out)
	}
	if strings.Contains(out, ">yo</text>") {
		t.Fatalf("abbreviation drawn over an icon:\n%s", out)
	}
	// An unreadable icon falls back to the abbreviation.
	if !strings.Contains(out, ">sli</text>") {
		t.Fatalf("missing icon has no abbreviation:\n%s", out)
	}
}

func TestPDFSplitsTallCharts(t *testing.T) {
	var small, tall bytes.Buffer
	if err := Write(&small, sampleDoc(t, 6, 4), domain.DefaultLayout(), Options{Format: PDF, Title: "sample"}); err != nil {
		t.Fatalf("Write pdf: %v", err)
	}
	if err := Write(&tall, sampleDoc(t, 6, 120), domain.DefaultLayout(), Options{Format: PDF, Title: "tall"}); err != nil {
		t.Fatalf("Write tall pdf: %v", err)
	}
	pages := func(b []byte) int {
		return bytes.Count(b, []byte("<</Type /Page")) - bytes.Count(b, []byte("<</Type /Pages"))
	}
	if !bytes.HasPrefix(small.Bytes(), []byte("%PDF-")) {
		t.Fatalf("not a pdf")
	}
	if n := pages(small.Bytes()); n != 1 {
		t.Fatalf("small chart should fit one page, got %d", n)
	}
	if n := pages(tall.Bytes()); n < 2 {
		t.Fatalf("tall chart should span several pages, got %d", n)
	}
}

func TestXLSXWorkbook(t *testing.T) {
	out := filepath.Join(t.TempDir(), "chart.xlsx")
	if err := File(sampleDoc(t, 6, 4), domain.DefaultLayout(), out, Options{}); err != nil {
		t.Fatalf("File xlsx: %v", err)
	}
	f, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	if v, err := f.GetCellValue(chartSheet, "A1"); err != nil || v != "c2" {
		t.Fatalf("A1 = %q, %v; want c2", v, err)
	}
	if v, err := f.GetCellValue(chartSheet, "F4"); err != nil || v != "pur" {
		t.Fatalf("F4 = %q, %v; want pur", v, err)
	}
	merged, err := f.GetMergeCells(chartSheet)
	if err != nil {
		t.Fatalf("GetMergeCells: %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("expected both cables merged, got %d", len(merged))
	}
	if v, _ := f.GetCellValue(legendSheet, "C2"); v != "c2" {
		t.Fatalf("legend C2 = %q, want c2", v)
	}
	if v, _ := f.GetCellValue(legendSheet, "E2"); v != "2" {
		t.Fatalf("legend E2 = %q, want 2", v)
	}
	if v, _ := f.GetCellValue(legendSheet, "F2"); v != "cable <2> & more" {
		t.Fatalf("legend F2 = %q", v)
	}
	if v, _ := f.GetCellValue(legendSheet, "C3"); v != "purl" {
		t.Fatalf("legend C3 = %q, want purl", v)
	}
}

func TestFileUsesExtension(t *testing.T) {
	dir := t.TempDir()
	doc := sampleDoc(t, 6, 4)
	for _, f := range Formats() {
		out := filepath.Join(dir, "nested", "chart."+string(f))
		if err := File(doc, domain.DefaultLayout(), out, Options{}); err != nil {
			t.Fatalf("File %s: %v", f, err)
		}
		st, err := os.Stat(out)
		if err != nil || st.Size() == 0 {
			t.Fatalf("missing or empty %s: %v", out, err)
		}
	}
	bad := filepath.Join(dir, "chart.gif")
	if err := File(doc, domain.DefaultLayout(), bad, Options{}); !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
	if _, err := os.Stat(bad); !os.IsNotExist(err) {
		t.Fatalf("unsupported format must not leave a file")
	}
}
