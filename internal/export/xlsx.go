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
	"strings"

	"github.com/xuri/excelize/v2"

	"knitchart/internal/domain"
	"knitchart/internal/legend"
	"knitchart/internal/storage"
)

const (
	chartSheet  = "Chart"
	legendSheet = "Legend"
)

// WriteXLSX writes the chart as a workbook: the "Chart" sheet holds one
// square worksheet cell per unit cell, filled with the cell color and
// labelled with the symbol abbreviation; wide symbols are merged cells. The
// "Legend" sheet lists every symbol and color combination with its count
// and label. Markers are not represented.
func WriteXLSX(w io.Writer, doc storage.Document) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", chartSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	sw := &sheetWriter{f: f, styles: make(map[string]int)}
	if err := sw.chart(doc); err != nil {
		return fmt.Errorf("chart sheet: %w", err)
	}
	if _, err := f.NewSheet(legendSheet); err != nil {
		return fmt.Errorf("add legend sheet: %w", err)
	}
	if err := sw.legend(doc); err != nil {
		return fmt.Errorf("legend sheet: %w", err)
	}
	return f.Write(w)
}

type sheetWriter struct {
	f      *excelize.File
	styles map[string]int
}

// fill returns a cached style id for a cell filled with c.
func (sw *sheetWriter) fill(c domain.Color) (int, error) {
	key := c.Name()
	if id, ok := sw.styles[key]; ok {
		return id, nil
	}
	ink := contrast(c)
	border := func(side string) excelize.Border {
		return excelize.Border{Type: side, Color: hexRGB(gridLine), Style: 1}
	}
	id, err := sw.f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{hexRGB(c)}},
		Font: &excelize.Font{Color: hexRGB(domain.Color{R: ink.R, G: ink.G, B: ink.B}), Size: 8},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{border("left"), border("top"), border("right"), border("bottom")},
	})
	if err != nil {
		return 0, err
	}
	sw.styles[key] = id
	return id, nil
}

func (sw *sheetWriter) chart(doc storage.Document) error {
	if doc.Columns > 0 {
		last, err := excelize.ColumnNumberToName(doc.Columns)
		if err != nil {
			return err
		}
		if err := sw.f.SetColWidth(chartSheet, "A", last, 3.5); err != nil {
			return err
		}
	}
	for r := 1; r <= doc.Rows; r++ {
		if err := sw.f.SetRowHeight(chartSheet, r, 20); err != nil {
			return err
		}
	}
	for _, c := range doc.Cells {
		tl, err := excelize.CoordinatesToCellName(c.Column+1, c.Row+1)
		if err != nil {
			return err
		}
		br := tl
		if c.Width > 1 {
			if br, err = excelize.CoordinatesToCellName(c.Column+c.Width, c.Row+1); err != nil {
				return err
			}
			if err := sw.f.MergeCell(chartSheet, tl, br); err != nil {
				return err
			}
		}
		style, err := sw.fill(c.Color)
		if err != nil {
			return err
		}
		if err := sw.f.SetCellStyle(chartSheet, tl, br, style); err != nil {
			return err
		}
		if ab := Abbrev(c.Symbol.Name); ab != "" {
			if err := sw.f.SetCellValue(chartSheet, tl, ab); err != nil {
				return err
			}
		}
	}
	return nil
}

func (sw *sheetWriter) legend(doc storage.Document) error {
	counts := make(map[legend.Key]int)
	var order []legend.Key
	for _, c := range doc.Cells {
		if c.Symbol.IsEmpty() {
			continue
		}
		k := legend.KeyOf(c)
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}
	labels := make(map[legend.Key]string, len(doc.Legend))
	for _, p := range doc.Legend {
		labels[p.Key] = p.Text
	}
	// Keep the document's legend order and append keys it does not mention.
	var keys []legend.Key
	seen := make(map[legend.Key]bool)
	for _, p := range doc.Legend {
		if counts[p.Key] > 0 && !seen[p.Key] {
			keys = append(keys, p.Key)
			seen[p.Key] = true
		}
	}
	for _, k := range order {
		if !seen[k] {
			keys = append(keys, k)
		}
	}

	header := []any{"Symbol", "Category", "Name", "Color", "Cells", "Label"}
	if err := sw.f.SetSheetRow(legendSheet, "A1", &header); err != nil {
		return err
	}
	if err := sw.f.SetColWidth(legendSheet, "F", "F", 48); err != nil {
		return err
	}
	for i, k := range keys {
		row := i + 2
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		c, err := domain.ParseColor(k.Color)
		if err != nil {
			c = domain.White
		}
		style, err := sw.fill(c)
		if err != nil {
			return err
		}
		if err := sw.f.SetCellStyle(legendSheet, cell, cell, style); err != nil {
			return err
		}
		label, ok := labels[k]
		if !ok {
			label = k.Name
		}
		values := []any{Abbrev(k.Name), k.Category, k.Name, k.Color, counts[k], label}
		if err := sw.f.SetSheetRow(legendSheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

func hexRGB(c domain.Color) string {
	return strings.ToUpper(strings.TrimPrefix(c.Name(), "#"))
}
