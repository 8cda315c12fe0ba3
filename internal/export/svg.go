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
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"knitchart/internal/domain"
)

var (
	attrEscaper = strings.NewReplacer(`&`, "&amp;", `"`, "&quot;", "<", "&lt;", "\n", " ", "\r", "")
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
)

// WriteSVG writes the scene as an SVG document. The coordinate system is
// the scene's; width and height are given in pixels.
func WriteSVG(w io.Writer, s Scene) error {
	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}
	fontSize := s.Layout.FontSize
	icons := iconCache{}

	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\" width=\"%dpx\" height=\"%dpx\" viewBox=\"0 0 %g %g\">\n",
		int(math.Ceil(s.Width)), int(math.Ceil(s.Height)), s.Width, s.Height)
	wf("  <rect x=\"0\" y=\"0\" width=\"%g\" height=\"%g\" fill=\"#ffffff\"/>\n", s.Width, s.Height)

	wf("  <g id=\"cells\" stroke=\"%s\" stroke-width=\"1\">\n", gridLine.Name())
	for _, c := range s.Cells {
		wf("    <rect x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" fill=\"%s\"/>\n", c.Rect.X, c.Rect.Y, c.Rect.Width, c.Rect.Height, c.Fill.Name())
		if uri := icons.dataURI(c.Image); uri != "" {
			wf("    <image x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" preserveAspectRatio=\"xMidYMid meet\" href=\"%s\"/>\n", c.Rect.X, c.Rect.Y, c.Rect.Width, c.Rect.Height, uri)
		} else if c.Abbrev != "" {
			wf("    <text x=\"%g\" y=\"%g\" font-family=\"Helvetica, Arial, sans-serif\" font-size=\"%g\" text-anchor=\"middle\" dominant-baseline=\"central\" stroke=\"none\" fill=\"%s\">%s</text>\n",
				c.Rect.X+c.Rect.Width/2, c.Rect.Y+c.Rect.Height/2, fontSize, svgInk(c.Fill), textEscaper.Replace(c.Abbrev))
		}
	}
	wf("  </g>\n")

	if len(s.Markers) > 0 {
		wf("  <g id=\"markers\" fill=\"none\" stroke-width=\"2\">\n")
		for _, m := range s.Markers {
			wf("    <rect x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" stroke=\"%s\"/>\n", m.Rect.X, m.Rect.Y, m.Rect.Width, m.Rect.Height, m.Color.Name())
		}
		wf("  </g>\n")
	}

	if len(s.Legend) > 0 {
		wf("  <g id=\"legend\" font-family=\"Helvetica, Arial, sans-serif\" font-size=\"%g\">\n", fontSize)
		for _, it := range s.Legend {
			wf("    <rect x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" fill=\"%s\" stroke=\"%s\"/>\n",
				it.Icon.X, it.Icon.Y, it.Icon.Width, it.Icon.Height, it.Fill.Name(), gridLine.Name())
			if uri := icons.dataURI(it.Image); uri != "" {
				wf("    <image x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" preserveAspectRatio=\"xMidYMid meet\" href=\"%s\"/>\n", it.Icon.X, it.Icon.Y, it.Icon.Width, it.Icon.Height, uri)
			} else if it.Abbrev != "" {
				wf("    <text x=\"%g\" y=\"%g\" text-anchor=\"middle\" dominant-baseline=\"central\" fill=\"%s\">%s</text>\n",
					it.Icon.X+it.Icon.Width/2, it.Icon.Y+it.Icon.Height/2, svgInk(it.Fill), textEscaper.Replace(it.Abbrev))
			}
			wf("    <text x=\"%g\" y=\"%g\" dominant-baseline=\"central\" fill=\"#000000\" xml:space=\"preserve\" data-label=\"%s\">%s</text>\n",
				it.Text.X, it.Text.Y+s.Layout.CellHeight/2, attrEscaper.Replace(it.Label), textEscaper.Replace(it.Label))
		}
		wf("  </g>\n")
	}
	wf("</svg>\n")

	if werr != nil {
		return fmt.Errorf("build svg: %w", werr)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// svgInk is the text color drawn on bg.
func svgInk(bg domain.Color) string {
	c := contrast(bg)
	return domain.Color{R: c.R, G: c.G, B: c.B}.Name()
}

// iconCache embeds symbol icon files as data URIs, reading each file once.
// Unreadable icons yield "" and the abbreviation is drawn instead.
type iconCache map[string]string

func (ic iconCache) dataURI(path string) string {
	if path == "" {
		return ""
	}
	if uri, ok := ic[path]; ok {
		return uri
	}
	uri := ""
	if data, err := os.ReadFile(path); err == nil {
		typ := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
		if typ == "" {
			typ = "image/svg+xml"
		}
		if i := strings.IndexByte(typ, ';'); i >= 0 {
			typ = typ[:i]
		}
		uri = "data:" + typ + ";base64," + base64.StdEncoding.EncodeToString(data)
	}
	ic[path] = uri
	return uri
}
