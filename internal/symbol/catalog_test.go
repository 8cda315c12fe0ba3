/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package symbol

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeSymbol(t *testing.T, root, dir string, s Symbol) {
	t.Helper()
	if err := WriteDir(filepath.Join(root, dir), s, dir, []byte("<svg/>")); err != nil {
		t.Fatalf("WriteDir(%s): %v", dir, err)
	}
}

func TestLoadAllSkipsBrokenSymbols(t *testing.T) {
	root := t.TempDir()
	writeSymbol(t, root, "knit", Symbol{Category: "basic", Name: "knit", Width: 1, Instructions: "knit"})
	writeSymbol(t, root, "c4f", Symbol{Category: "cables", Name: "4-st front cross", Width: 4})

	// descriptor without icon
	writeSymbol(t, root, "purl", Symbol{Category: "basic", Name: "purl", Width: 1})
	if err := os.Remove(filepath.Join(root, "purl", "purl.svg")); err != nil {
		t.Fatalf("remove icon: %v", err)
	}
	// malformed descriptor
	if err := os.MkdirAll(filepath.Join(root, "broken"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "broken", DescriptorFileName), []byte("<knittingSymbol><svgName>"), 0o644); err != nil {
		t.Fatal(err)
	}
	// directory without descriptor and a stray file
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "README"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadAll([]string{root, filepath.Join(root, "does-not-exist")})
	if err != nil {
		t.Fatalf("LoadAll error: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 symbols, got %d: %+v", c.Len(), c.Symbols())
	}
	s, err := c.Lookup("cables", "4-st front cross")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if s.Width != 4 || filepath.Base(s.Path) != "c4f.svg" {
		t.Fatalf("unexpected symbol: %+v", s)
	}
	if _, err := c.Lookup("basic", "purl"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for symbol without icon, got %v", err)
	}
	if got := c.Categories(); len(got) != 2 || got[0] != "basic" || got[1] != "cables" {
		t.Fatalf("Categories() = %v", got)
	}
}

func TestLoadAllFailsWithoutAnyPath(t *testing.T) {
	_, err := LoadAll([]string{filepath.Join(t.TempDir(), "missing")})
	if !errors.Is(err, ErrNoCatalog) {
		t.Fatalf("expected ErrNoCatalog, got %v", err)
	}
}

func TestLoadDirRejectsBadWidth(t *testing.T) {
	dir := t.TempDir()
	data := `<knittingSymbol><svgName>x</svgName><category>c</category><symbolName>n</symbolName><symbolWidth>0</symbolWidth></knittingSymbol>`
	if err := os.WriteFile(filepath.Join(dir, DescriptorFileName), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "x.svg"), []byte("<svg/>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDir(dir); err == nil {
		t.Fatalf("expected width error")
	}
}

func TestLaterPathsOverrideEarlier(t *testing.T) {
	shipped, custom := t.TempDir(), t.TempDir()
	writeSymbol(t, shipped, "knit", Symbol{Category: "basic", Name: "knit", Width: 1, Instructions: "old"})
	writeSymbol(t, custom, "knit", Symbol{Category: "basic", Name: "knit", Width: 1, Instructions: "new"})
	c, err := LoadAll([]string{shipped, custom})
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	s := c.LookupOr("basic", "knit", Empty())
	if s.Instructions != "new" || c.Len() != 1 {
		t.Fatalf("override failed: %+v (len %d)", s, c.Len())
	}
}

func TestParseRef(t *testing.T) {
	r, err := ParseRef(" cables / c4f ")
	if err != nil || r != (Ref{Category: "cables", Name: "c4f"}) {
		t.Fatalf("ParseRef = %+v, %v", r, err)
	}
	for _, bad := range []string{"knit", "/knit", "basic/"} {
		if _, err := ParseRef(bad); err == nil {
			t.Fatalf("ParseRef(%q) expected error", bad)
		}
	}
	if !Empty().IsEmpty() || Empty().Width != 0 {
		t.Fatalf("Empty() should be empty with zero width")
	}
}
