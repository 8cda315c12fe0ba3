/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders a chart and its legend to image, vector, print
// and spreadsheet files.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"knitchart/internal/domain"
	"knitchart/internal/storage"
)

// Format is an export file format.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpg"
	BMP  Format = "bmp"
	TIFF Format = "tiff"
	SVG  Format = "svg"
	PDF  Format = "pdf"
	XLSX Format = "xlsx"
)

// ErrFormat reports an unknown or unusable export format.
var ErrFormat = errors.New("unsupported export format")

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{PNG, JPEG, BMP, TIFF, SVG, PDF, XLSX}
}

// ParseFormat accepts a format name or file extension, e.g. "PNG", ".jpeg"
// or "tif".
func ParseFormat(s string) (Format, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")
	switch s {
	case "jpeg":
		return JPEG, nil
	case "tif":
		return TIFF, nil
	}
	for _, f := range Formats() {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrFormat, s)
}

// IsRaster reports whether f is a bitmap format.
func (f Format) IsRaster() bool {
	return f == PNG || f == JPEG || f == BMP || f == TIFF
}

// Options controls an export.
type Options struct {
	// Format overrides the format derived from the file extension.
	Format Format
	// Scale multiplies raster output size; 0 means 1.
	Scale float64
	// Title is printed on PDF pages and stored as document metadata.
	Title string
}

// Write renders doc in the requested format to w.
func Write(w io.Writer, doc storage.Document, l domain.Layout, opt Options) error {
	s := BuildScene(doc, l)
	switch {
	case opt.Format.IsRaster():
		return EncodeImage(w, Rasterize(s, opt.Scale), opt.Format)
	case opt.Format == SVG:
		return WriteSVG(w, s)
	case opt.Format == PDF:
		return WritePDF(w, s, opt.Title)
	case opt.Format == XLSX:
		return WriteXLSX(w, doc)
	default:
		return fmt.Errorf("%w: %q", ErrFormat, opt.Format)
	}
}

// File renders doc to path. The format comes from opt.Format or, when that
// is empty, from the extension of path.
func File(doc storage.Document, l domain.Layout, path string, opt Options) (err error) {
	if opt.Format == "" {
		f, ferr := ParseFormat(filepath.Ext(path))
		if ferr != nil {
			return ferr
		}
		opt.Format = f
	}
	if opt.Title == "" {
		opt.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", opt.Format, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", opt.Format, cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	bw := bufio.NewWriter(f)
	if err := Write(bw, doc, l, opt); err != nil {
		return fmt.Errorf("encode %s: %w", opt.Format, err)
	}
	return bw.Flush()
}
