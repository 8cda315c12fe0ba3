/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package symbol

import (
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	applog "knitchart/internal/log"
)

const (
	// DescriptorFileName is the descriptor expected in every symbol directory.
	DescriptorFileName = "symbol.xml"
	iconExt            = ".svg"
)

// ErrNoCatalog is returned by LoadAll when none of the search paths could be read.
var ErrNoCatalog = errors.New("no symbol path available")

// descriptor mirrors symbol.xml:
//
//	<knittingSymbol>
//	  <svgName>k2tog</svgName>
//	  <category>decreases</category>
//	  <symbolName>k2tog</symbolName>
//	  <symbolDescription>knit two stitches together</symbolDescription>
//	  <symbolWidth>1</symbolWidth>
//	</knittingSymbol>
type descriptor struct {
	XMLName     xml.Name `xml:"knittingSymbol"`
	SVGName     string   `xml:"svgName"`
	Category    string   `xml:"category"`
	Name        string   `xml:"symbolName"`
	Description string   `xml:"symbolDescription"`
	Width       string   `xml:"symbolWidth"`
}

// Catalog is an in-memory registry of symbols. It is read-only after loading.
type Catalog struct {
	symbols []Symbol
	byRef   map[Ref]int
}

// NewCatalog builds a catalog from already parsed symbols. Later duplicates
// of a (category, name) pair replace earlier ones, so user symbol paths can
// override shipped symbols.
func NewCatalog(symbols ...Symbol) *Catalog {
	c := &Catalog{byRef: make(map[Ref]int)}
	for _, s := range symbols {
		c.add(s)
	}
	return c
}

func (c *Catalog) add(s Symbol) {
	if i, ok := c.byRef[s.Ref()]; ok {
		c.symbols[i] = s
		return
	}
	c.byRef[s.Ref()] = len(c.symbols)
	c.symbols = append(c.symbols, s)
}

// LoadAll scans every directory below each path for symbol descriptors.
// Broken symbols are logged and skipped; a missing path is logged and skipped.
// It fails only when no path could be read at all.
func LoadAll(paths []string) (*Catalog, error) {
	l := applog.WithOperation(applog.WithComponent("symbol"), "load")
	c := NewCatalog()
	readable := 0
	for _, root := range paths {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		ents, err := os.ReadDir(root)
		if err != nil {
			l.Warn("symbol path unavailable", slog.String("path", root), slog.Any("err", err))
			continue
		}
		readable++
		for _, e := range ents {
			if !e.IsDir() {
				continue
			}
			dir := filepath.Join(root, e.Name())
			s, err := LoadDir(dir)
			if err != nil {
				l.Warn("skip symbol", slog.String("dir", dir), slog.Any("err", err))
				continue
			}
			c.add(s)
		}
	}
	if readable == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoCatalog, strings.Join(paths, string(os.PathListSeparator)))
	}
	l.Info("symbols loaded", slog.Int("count", len(c.symbols)), slog.Int("paths", readable))
	return c, nil
}

// LoadDir parses the descriptor in dir and checks that its icon exists.
func LoadDir(dir string) (Symbol, error) {
	data, err := os.ReadFile(filepath.Join(dir, DescriptorFileName))
	if err != nil {
		return Symbol{}, fmt.Errorf("read descriptor: %w", err)
	}
	var d descriptor
	if err := xml.Unmarshal(data, &d); err != nil {
		return Symbol{}, fmt.Errorf("parse descriptor: %w", err)
	}
	d.SVGName = strings.TrimSpace(d.SVGName)
	d.Category = strings.TrimSpace(d.Category)
	d.Name = strings.TrimSpace(d.Name)
	if d.SVGName == "" || d.Category == "" || d.Name == "" {
		return Symbol{}, errors.New("descriptor lacks svgName, category or symbolName")
	}
	width, err := strconv.Atoi(strings.TrimSpace(d.Width))
	if err != nil || width < 1 {
		return Symbol{}, fmt.Errorf("descriptor width %q: must be a positive integer", d.Width)
	}
	icon := filepath.Join(dir, d.SVGName+iconExt)
	if _, err := os.Stat(icon); err != nil {
		return Symbol{}, fmt.Errorf("icon: %w", err)
	}
	return Symbol{
		Path:         icon,
		Name:         d.Name,
		Category:     d.Category,
		Width:        width,
		Instructions: strings.TrimSpace(d.Description),
	}, nil
}

// WriteDir writes a descriptor for s into dir together with the given icon
// bytes. It is used to author custom symbols.
func WriteDir(dir string, s Symbol, svgName string, icon []byte) error {
	if s.IsEmpty() || s.Width < 1 || strings.TrimSpace(svgName) == "" {
		return errors.New("symbol needs category, name, svg name and a positive width")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create symbol dir: %w", err)
	}
	d := descriptor{
		SVGName:     svgName,
		Category:    s.Category,
		Name:        s.Name,
		Description: s.Instructions,
		Width:       strconv.Itoa(s.Width),
	}
	data, err := xml.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal descriptor: %w", err)
	}
	data = append([]byte(xml.Header), append(data, '\n')...)
	if err := os.WriteFile(filepath.Join(dir, DescriptorFileName), data, 0o644); err != nil {
		return fmt.Errorf("write descriptor: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, svgName+iconExt), icon, 0o644); err != nil {
		return fmt.Errorf("write icon: %w", err)
	}
	return nil
}

// Lookup finds a symbol by category and name.
func (c *Catalog) Lookup(category, name string) (Symbol, error) {
	if c != nil {
		if i, ok := c.byRef[Ref{Category: category, Name: name}]; ok {
			return c.symbols[i], nil
		}
	}
	return Symbol{}, fmt.Errorf("%w: %s/%s", ErrNotFound, category, name)
}

// LookupRef is Lookup for a parsed reference.
func (c *Catalog) LookupRef(r Ref) (Symbol, error) { return c.Lookup(r.Category, r.Name) }

// LookupOr returns the symbol or fallback when it is unknown.
func (c *Catalog) LookupOr(category, name string, fallback Symbol) Symbol {
	s, err := c.Lookup(category, name)
	if err != nil {
		return fallback
	}
	return s
}

// Len reports the number of symbols.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.symbols)
}

// Symbols returns all symbols sorted by category, then name.
func (c *Catalog) Symbols() []Symbol {
	if c == nil {
		return nil
	}
	out := append([]Symbol(nil), c.symbols...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Categories returns the sorted set of categories.
func (c *Catalog) Categories() []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range c.Symbols() {
		if !seen[s.Category] {
			seen[s.Category] = true
			out = append(out, s.Category)
		}
	}
	return out
}

// ByCategory returns the symbols of one category sorted by name.
func (c *Catalog) ByCategory(category string) []Symbol {
	var out []Symbol
	for _, s := range c.Symbols() {
		if s.Category == category {
			out = append(out, s)
		}
	}
	return out
}
