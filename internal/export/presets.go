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
	"path/filepath"
	"strings"

	"knitchart/internal/domain"
	"knitchart/internal/storage"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
	PresetSheet PresetName = "sheet"
)

// BatchOptions controls batch export of one chart into several formats.
//
// Path semantics:
//   - If OutDir is empty or relative, it is resolved under
//     <chart dir>/exports/<OutDir or preset>/.
//   - Every format produces one file named <BaseName>.<ext>; BaseName
//     defaults to the chart file name without extension.
type BatchOptions struct {
	Preset   PresetName
	Formats  []Format // empty means preset defaults
	Scale    float64  // raster scale; 0 means the preset's
	OutDir   string
	BaseName string
	Title    string
}

// BatchExport writes doc in every format of the preset and returns the
// paths written, in format order.
func BatchExport(doc storage.Document, l domain.Layout, chartPath string, opt BatchOptions) ([]string, error) {
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	scale := opt.Scale
	if scale <= 0 {
		scale = presetScale(opt.Preset)
	}

	baseOut := opt.OutDir
	if baseOut == "" {
		baseOut = string(opt.Preset)
		if baseOut == "" {
			baseOut = "default"
		}
	}
	if !filepath.IsAbs(baseOut) {
		baseOut = filepath.Join(filepath.Dir(chartPath), "exports", baseOut)
	}
	base := opt.BaseName
	if base == "" {
		base = strings.TrimSuffix(filepath.Base(chartPath), filepath.Ext(chartPath))
	}

	var written []string
	for _, f := range formats {
		out := filepath.Join(baseOut, base+"."+string(f))
		o := Options{Format: f, Title: opt.Title}
		if f.IsRaster() {
			o.Scale = scale
		}
		if err := File(doc, l, out, o); err != nil {
			return written, fmt.Errorf("%s: %w", f, err)
		}
		written = append(written, out)
	}
	return written, nil
}

// ParsePreset accepts a preset name.
func ParsePreset(s string) (PresetName, error) {
	switch p := PresetName(strings.ToLower(strings.TrimSpace(s))); p {
	case PresetWeb, PresetPrint, PresetSheet:
		return p, nil
	default:
		return "", fmt.Errorf("unknown preset: %q", s)
	}
}

func presetDefaultFormats(p PresetName) []Format {
	switch p {
	case PresetWeb:
		return []Format{PNG, SVG}
	case PresetPrint:
		return []Format{PDF, PNG}
	case PresetSheet:
		return []Format{XLSX}
	default:
		return []Format{PDF}
	}
}

func presetScale(p PresetName) float64 {
	if p == PresetPrint {
		return 3
	}
	return 1
}
