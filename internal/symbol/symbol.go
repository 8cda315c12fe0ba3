/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package symbol implements the catalog of knitting symbols. Each symbol
// lives in its own directory holding a symbol.xml descriptor and the SVG icon
// the descriptor names.
package symbol

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a catalog has no symbol for a category/name.
var ErrNotFound = errors.New("symbol not found")

// Symbol is an immutable knitting-symbol definition.
type Symbol struct {
	Path         string // icon file
	Name         string
	Category     string
	Width        int // in unit cells; the height is always one cell
	Instructions string
}

// Empty returns the symbol of unfilled cells. It has no identity and zero
// width, so placing it is a no-op and it never shows up in a legend.
func Empty() Symbol { return Symbol{} }

// IsEmpty reports whether s is the empty symbol.
func (s Symbol) IsEmpty() bool { return s.Name == "" && s.Category == "" }

// Ref identifies a symbol by (category, name).
type Ref struct {
	Category string
	Name     string
}

// Ref returns the identity of s.
func (s Symbol) Ref() Ref { return Ref{Category: s.Category, Name: s.Name} }

// String renders the reference as "category/name".
func (r Ref) String() string { return r.Category + "/" + r.Name }

// ParseRef parses "category/name".
func ParseRef(s string) (Ref, error) {
	cat, name, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || strings.TrimSpace(cat) == "" || strings.TrimSpace(name) == "" {
		return Ref{}, fmt.Errorf("symbol reference %q: want category/name", s)
	}
	return Ref{Category: strings.TrimSpace(cat), Name: strings.TrimSpace(name)}, nil
}
